// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"context"
	"testing"
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/jontk/slurm-priority/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLoopFixture(t *testing.T, ticketBased bool) (*DecayLoop, *SliceJobStore, *ShareTree) {
	t.Helper()
	root := &Association{ID: 1, Kind: KindAccount}
	acct := &Association{ID: 2, Kind: KindAccount, ParentID: 1, SharesRaw: 1}
	user := &Association{ID: 3, Kind: KindUser, ParentID: 2, SharesRaw: 1}
	tree := NewShareTree([]*Association{root, acct, user})
	tree.Root().UsageRaw = 1

	runningJob := testJob(4, time.Now().Add(-time.Minute))
	runningJob.Assoc = user
	pendingJob := &Job{JobID: 99, State: JobPending, Assoc: user, Details: JobDetails{BeginTime: time.Now().Add(-time.Hour)}}
	store := NewSliceJobStore([]*Job{runningJob, pendingJob})

	cfg := config.NewDefault()
	cfg.CalcPeriod = 20 * time.Millisecond
	cfg.WeightAge = 10
	cfg.WeightFS = 10
	cfg.MaxAge = time.Hour
	if ticketBased {
		cfg.Flags |= config.FlagTicketBased
	}

	accountant := NewAccountant(tree)
	decay := NewDecayEngine(tree, nil)
	fe := NewFairShareEvaluator(tree, ticketBased)
	calc := NewCalculator(cfg, fe, 100, 10)
	recovery := NewRecoveryStore(t.TempDir(), false)

	loop := NewDecayLoop(cfg, tree, nil, store, accountant, decay, fe, calc, recovery, nil, metrics.NoOpCollector{})
	return loop, store, tree
}

func TestDecayLoopRecoverIsNonFatalWithNoPriorState(t *testing.T) {
	loop, _, _ := buildLoopFixture(t, false)
	require.NoError(t, loop.Recover())
	assert.True(t, loop.lastRan.IsZero())
}

func TestDecayLoopTicksAndPrioritizesPendingJobs(t *testing.T) {
	loop, store, _ := buildLoopFixture(t, false)
	require.NoError(t, loop.Recover())

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	cancel()
	loop.Stop()

	store.RLock()
	defer store.RUnlock()
	for _, job := range store.Jobs() {
		if job.State == JobPending {
			assert.NotNil(t, job.PrioFactors)
			assert.Greater(t, job.Priority, uint32(0))
		}
	}
}

func TestDecayLoopTicketModeDistributesTickets(t *testing.T) {
	loop, _, tree := buildLoopFixture(t, true)
	require.NoError(t, loop.Recover())

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(80 * time.Millisecond)
	cancel()
	loop.Stop()

	root := tree.Root()
	assert.Equal(t, config.MaxTicketsPool, root.Tickets)
}

func TestDecayLoopStopIsIdempotentAfterJoin(t *testing.T) {
	loop, _, _ := buildLoopFixture(t, false)
	require.NoError(t, loop.Recover())

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	time.Sleep(25 * time.Millisecond)
	cancel()
	loop.Stop()
	loop.Stop()
	assert.False(t, loop.IsRunning())
}

func TestDecayLoopReconfigChangesTickerPeriod(t *testing.T) {
	loop, _, _ := buildLoopFixture(t, false)
	require.NoError(t, loop.Recover())

	ctx, cancel := context.WithCancel(context.Background())
	loop.Start(ctx)
	defer func() {
		cancel()
		loop.Stop()
	}()

	newCfg := *loop.currentConfig()
	newCfg.CalcPeriod = 5 * time.Millisecond
	loop.Reconfig(&newCfg)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, loop.currentConfig().CalcPeriod)
}
