// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcFSFactorExponential(t *testing.T) {
	fe := NewFairShareEvaluator(nil, false)
	// equal usage and shares -> 2^-1 = 0.5
	assert.InDelta(t, 0.5, fe.CalcFSFactor(1.0, 1.0), 1e-9)
	assert.Equal(t, 0.0, fe.CalcFSFactor(1.0, 0))
}

func TestCalcFSFactorTicketBased(t *testing.T) {
	fe := NewFairShareEvaluator(nil, true)
	assert.InDelta(t, 2.0, fe.CalcFSFactor(0.5, 1.0), 1e-9)
	assert.Equal(t, 1.0, fe.CalcFSFactor(0, 1.0))
	assert.Equal(t, 0.0, fe.CalcFSFactor(0.5, 0))
}

func TestMarkActiveTagsAncestorChain(t *testing.T) {
	root := &Association{ID: 1, Kind: KindAccount}
	acct := &Association{ID: 2, Kind: KindAccount, Parent: root}
	user := &Association{ID: 3, Kind: KindUser, Parent: acct}
	root.Children = []*Association{acct}
	acct.Children = []*Association{user}

	fe := NewFairShareEvaluator(nil, true)
	fe.NextCycle()
	fe.MarkActive([]*Job{{Assoc: user}}, root)

	assert.Equal(t, fe.cycle.Load(), acct.ActiveSeqno)
	assert.Equal(t, fe.cycle.Load(), root.ActiveSeqno)
}

func TestDistributeTicketsAllocatesProportionally(t *testing.T) {
	root := &Association{ID: 1, Kind: KindAccount}
	a := &Association{ID: 2, Kind: KindUser, Parent: root, SharesNorm: 0.5, UsageEfctv: 0.1}
	b := &Association{ID: 3, Kind: KindUser, Parent: root, SharesNorm: 0.5, UsageEfctv: 0.1}
	root.Children = []*Association{a, b}

	fe := NewFairShareEvaluator(nil, true)
	fe.NextCycle()
	fe.MarkActive([]*Job{{Assoc: a}, {Assoc: b}}, root)

	fe.DistributeTickets(root.Children, 1000)

	assert.InDelta(t, 500, int(a.Tickets), 2)
	assert.InDelta(t, 500, int(b.Tickets), 2)
	assert.Greater(t, fe.MaxTickets(), uint32(0))
}

func TestDistributeTicketsWeightsBySharesNorm(t *testing.T) {
	root := &Association{ID: 1, Kind: KindAccount}
	// equal usage_efctv but unequal shares_norm: tickets must follow
	// shares_norm, not just the raw fair-share factor.
	a := &Association{ID: 2, Kind: KindAccount, Parent: root, SharesNorm: 0.25, UsageEfctv: 0.1}
	b := &Association{ID: 3, Kind: KindAccount, Parent: root, SharesNorm: 0.75, UsageEfctv: 0.1}
	root.Children = []*Association{a, b}

	fe := NewFairShareEvaluator(nil, true)
	fe.NextCycle()
	fe.MarkActive([]*Job{{Assoc: a}, {Assoc: b}}, root)

	fe.DistributeTickets(root.Children, 1000)

	assert.InDelta(t, 100, int(a.Tickets), 2)
	assert.InDelta(t, 900, int(b.Tickets), 2)
}

func TestDistributeTicketsSkipsInactiveChildren(t *testing.T) {
	root := &Association{ID: 1, Kind: KindAccount}
	a := &Association{ID: 2, Kind: KindAccount, Parent: root, SharesNorm: 0.5, UsageEfctv: 0.1}
	b := &Association{ID: 3, Kind: KindAccount, Parent: root, SharesNorm: 0.5, UsageEfctv: 0.1}
	root.Children = []*Association{a, b}

	fe := NewFairShareEvaluator(nil, true)
	fe.NextCycle()
	fe.MarkActive([]*Job{{Assoc: a}}, root)

	fe.DistributeTickets(root.Children, 1000)

	assert.Equal(t, uint32(1000), a.Tickets)
	assert.Equal(t, uint32(0), b.Tickets)
}
