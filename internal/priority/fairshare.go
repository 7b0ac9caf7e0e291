// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"math"

	"go.uber.org/atomic"
)

// FairShareEvaluator computes the fair-share priority factor, either by the
// classical exponential formula or by ticket-based apportionment (C4, §4.4).
// cycle and maxTickets are atomic because calc_fs_factor (§6) is callable
// concurrently with the decay loop's own tick.
type FairShareEvaluator struct {
	tree        *ShareTree
	ticketBased bool

	// cycle is the current active_seqno generation; MarkActive tags every
	// association on an active job's ancestor chain with this value.
	cycle atomic.Uint64
	// maxTickets is the high-water mark of tickets assigned to any single
	// user association during the most recent DistributeTickets pass.
	maxTickets atomic.Uint32
}

// NewFairShareEvaluator builds an evaluator over tree, selecting the
// ticket-based formula when ticketBased is true.
func NewFairShareEvaluator(tree *ShareTree, ticketBased bool) *FairShareEvaluator {
	return &FairShareEvaluator{tree: tree, ticketBased: ticketBased}
}

// CalcFSFactor returns the fair-share factor for one association given its
// effective usage and normalized shares (§4.4). In exponential mode this is
// 2^(-usage_efctv/shares_norm); in ticket mode it is the simpler ratio
// shares_norm/usage_efctv used to seed ticket apportionment. Either mode
// returns 0 when shares_norm is non-positive (no entitlement, no priority).
func (fe *FairShareEvaluator) CalcFSFactor(usageEfctv, sharesNorm float64) float64 {
	if sharesNorm <= 0 {
		return 0
	}
	if fe.ticketBased {
		if usageEfctv <= 0 {
			return sharesNorm
		}
		return sharesNorm / usageEfctv
	}
	return math.Pow(2.0, -usageEfctv/sharesNorm)
}

// NextCycle advances the active-association generation and returns it; call
// once per decay tick before MarkActive. Zero is reserved as "never
// active", so a wraparound skips back to 1 (§4.4).
func (fe *FairShareEvaluator) NextCycle() uint64 {
	c := fe.cycle.Inc()
	if c == 0 {
		c = fe.cycle.Inc()
	}
	return c
}

// ResetTicketPass clears the max-tickets high-water mark before a fresh
// DistributeTickets pass.
func (fe *FairShareEvaluator) ResetTicketPass() {
	fe.maxTickets.Store(0)
}

// MarkActive tags every association on each job's ancestor chain as active
// for the current cycle, stopping early at the root or at an ancestor
// already tagged this cycle (§4.4: only active subtrees receive tickets).
func (fe *FairShareEvaluator) MarkActive(jobs []*Job, root *Association) {
	cycle := fe.cycle.Load()
	for _, job := range jobs {
		if job.Assoc == nil {
			continue
		}
		for a := job.Assoc; a != nil && a != root; a = a.Parent {
			if a.ActiveSeqno == cycle {
				break
			}
			a.ActiveSeqno = cycle
		}
	}
	if root != nil {
		root.ActiveSeqno = cycle
	}
}

// DistributeTickets recursively apportions tickets among active children in
// proportion to shares_norm·f(shares_norm, usage_efctv), matching the
// controller's ticket-cascade: a child inactive this cycle receives no
// tickets and its share goes to its active siblings (§4.4).
func (fe *FairShareEvaluator) DistributeTickets(children []*Association, tickets uint32) {
	cycle := fe.cycle.Load()
	var totalFactor float64
	for _, c := range children {
		if c.ActiveSeqno != cycle {
			continue
		}
		totalFactor += c.SharesNorm * fe.CalcFSFactor(c.UsageEfctv, c.SharesNorm)
	}
	if totalFactor <= 0 {
		return
	}
	for _, c := range children {
		if c.ActiveSeqno != cycle {
			c.Tickets = 0
			continue
		}
		factor := c.SharesNorm * fe.CalcFSFactor(c.UsageEfctv, c.SharesNorm)
		share := factor / totalFactor
		c.Tickets = uint32(share * float64(tickets))
		if c.Kind == KindUser && c.Tickets > fe.maxTickets.Load() {
			fe.maxTickets.Store(c.Tickets)
		}
		if len(c.Children) > 0 {
			fe.DistributeTickets(c.Children, c.Tickets)
		}
	}
}

// MaxTickets returns the high-water mark from the most recent
// DistributeTickets pass.
func (fe *FairShareEvaluator) MaxTickets() uint32 { return fe.maxTickets.Load() }
