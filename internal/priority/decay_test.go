// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"testing"
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDecayFixture() (*ShareTree, []*QoS) {
	root := &Association{ID: 1, Kind: KindAccount}
	acct := &Association{ID: 2, Kind: KindAccount, ParentID: 1, SharesRaw: 1, UsageRaw: 10, GrpUsedWall: 10}
	tree := NewShareTree([]*Association{root, acct})
	tree.Root().UsageRaw = 20
	tree.Root().GrpUsedWall = 20
	qos := []*QoS{{ID: 1, Name: "normal", UsageRaw: 5, GrpUsedWall: 5}}
	return tree, qos
}

func TestDecayApplyMultipliesUsage(t *testing.T) {
	tree, qos := buildDecayFixture()
	d := NewDecayEngine(tree, qos)

	err := d.Apply(0.5)
	require.NoError(t, err)

	a, _ := tree.Lookup(2)
	assert.Equal(t, 5.0, a.UsageRaw)
	assert.Equal(t, 2.5, qos[0].UsageRaw)
}

func TestDecayApplyRejectsZeroFactor(t *testing.T) {
	tree, qos := buildDecayFixture()
	d := NewDecayEngine(tree, qos)

	err := d.Apply(0)
	assert.Error(t, err)

	a, _ := tree.Lookup(2)
	assert.Equal(t, 10.0, a.UsageRaw) // unchanged
}

func TestDecayApplyOneIsNoop(t *testing.T) {
	tree, qos := buildDecayFixture()
	d := NewDecayEngine(tree, qos)

	err := d.Apply(1)
	require.NoError(t, err)

	a, _ := tree.Lookup(2)
	assert.Equal(t, 10.0, a.UsageRaw)
}

func TestDecayResetAllZeroesUsage(t *testing.T) {
	tree, qos := buildDecayFixture()
	d := NewDecayEngine(tree, qos)

	d.ResetAll()

	for _, a := range tree.Associations() {
		assert.Equal(t, 0.0, a.UsageRaw)
		assert.Equal(t, 0.0, a.GrpUsedWall)
	}
	assert.Equal(t, 0.0, qos[0].UsageRaw)
}

func TestNextResetDaily(t *testing.T) {
	last := time.Date(2026, 7, 30, 14, 0, 0, 0, time.Local)
	next := NextReset(config.ResetDaily, last)
	assert.Equal(t, time.Date(2026, 7, 31, 0, 0, 0, 0, time.Local), next)
}

func TestNextResetMonthly(t *testing.T) {
	last := time.Date(2026, 7, 15, 0, 0, 0, 0, time.Local)
	next := NextReset(config.ResetMonthly, last)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.Local), next)
}

func TestNextResetYearly(t *testing.T) {
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local)
	next := NextReset(config.ResetYearly, last)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.Local), next)
}

func TestNextResetQuarterly(t *testing.T) {
	last := time.Date(2026, 5, 10, 0, 0, 0, 0, time.Local)
	next := NextReset(config.ResetQuarterly, last)
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.Local), next)
}

func TestNextResetNoneNeverFires(t *testing.T) {
	last := time.Date(2026, 5, 10, 0, 0, 0, 0, time.Local)
	next := NextReset(config.ResetNone, last)
	assert.True(t, next.After(last.AddDate(50, 0, 0)))
}
