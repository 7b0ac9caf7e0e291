// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/jontk/slurm-priority/pkg/logging"
	"github.com/jontk/slurm-priority/pkg/metrics"
	"go.uber.org/atomic"
)

// JobStore is the externally-owned job list this subsystem reads each tick
// and writes priority/prio_factors back into. Lock/RLock model the
// slurmctld job-list lock from §5: RLock for read-only iteration,
// Lock for iteration that mutates job.Priority/PrioFactors.
type JobStore interface {
	Lock()
	Unlock()
	RLock()
	RUnlock()
	Jobs() []*Job
}

// SliceJobStore is a sync.RWMutex-guarded JobStore over an in-memory slice,
// used by tests and the decay-ctl demonstration CLI.
type SliceJobStore struct {
	mu   sync.RWMutex
	jobs []*Job
}

// NewSliceJobStore wraps jobs in a lockable JobStore.
func NewSliceJobStore(jobs []*Job) *SliceJobStore {
	return &SliceJobStore{jobs: jobs}
}

func (s *SliceJobStore) Lock()          { s.mu.Lock() }
func (s *SliceJobStore) Unlock()        { s.mu.Unlock() }
func (s *SliceJobStore) RLock()         { s.mu.RLock() }
func (s *SliceJobStore) RUnlock()       { s.mu.RUnlock() }
func (s *SliceJobStore) Jobs() []*Job   { return s.jobs }

// DecayLoop is the single long-running background task orchestrating
// C2-C5 and C7 on a periodic tick (C6, §4.6).
type DecayLoop struct {
	// runningDecay mirrors decay_lock's "is a tick in flight" bit (§5); it
	// is atomic because the shutdown path reads it from outside the tick
	// goroutine without blocking on a full mutex.
	runningDecay atomic.Bool

	tree       *ShareTree
	qos        []*QoS
	jobs       JobStore
	accountant *Accountant
	decay      *DecayEngine
	fairShare  *FairShareEvaluator
	calc       *Calculator
	recovery   *RecoveryStore

	cfgMu sync.RWMutex
	cfg   *config.Config

	logger  logging.Logger
	metrics metrics.Collector

	lastRan   time.Time
	lastReset time.Time

	reconfigCh chan struct{}
	done       chan struct{}
	joinDone   chan struct{}
	cancel     context.CancelFunc
}

// NewDecayLoop wires one tick's worth of collaborators together.
func NewDecayLoop(
	cfg *config.Config,
	tree *ShareTree,
	qos []*QoS,
	jobs JobStore,
	accountant *Accountant,
	decay *DecayEngine,
	fairShare *FairShareEvaluator,
	calc *Calculator,
	recovery *RecoveryStore,
	logger logging.Logger,
	collector metrics.Collector,
) *DecayLoop {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &DecayLoop{
		cfg:        cfg,
		tree:       tree,
		qos:        qos,
		jobs:       jobs,
		accountant: accountant,
		decay:      decay,
		fairShare:  fairShare,
		calc:       calc,
		recovery:   recovery,
		logger:     logger,
		metrics:    collector,
		reconfigCh: make(chan struct{}, 1),
	}
}

// Recover loads the persisted {last_ran, last_reset} and rewinds reserved
// runtime for currently-running jobs (§4.2 Initialization, §4.7). Call
// before Start.
func (l *DecayLoop) Recover() error {
	lastRan, lastReset, err := l.recovery.Read()
	if err != nil {
		return err
	}
	l.lastRan = lastRan
	l.lastReset = lastReset

	l.jobs.RLock()
	jobs := l.jobs.Jobs()
	l.accountant.RewindReservation(jobs, lastRan)
	l.jobs.RUnlock()
	return nil
}

// Start launches the tick goroutine and a dedicated joiner goroutine that
// waits on its termination, so Stop never blocks on a possibly-sleeping
// tick loop (§4.6 Cancellation).
func (l *DecayLoop) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.joinDone = make(chan struct{})

	go l.run(runCtx)
	go func() {
		defer close(l.joinDone)
		<-l.done
	}()
}

// Stop cancels the loop and blocks until the joiner observes termination.
func (l *DecayLoop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.joinDone != nil {
		<-l.joinDone
	}
}

// Reconfig swaps in newCfg and signals the loop to pick it up before the
// next tick, without blocking if a reconfig is already pending.
func (l *DecayLoop) Reconfig(newCfg *config.Config) {
	l.cfgMu.Lock()
	l.cfg = newCfg
	l.cfgMu.Unlock()
	select {
	case l.reconfigCh <- struct{}{}:
	default:
	}
}

func (l *DecayLoop) currentConfig() *config.Config {
	l.cfgMu.RLock()
	defer l.cfgMu.RUnlock()
	return l.cfg
}

// IsRunning reports whether a tick is currently in flight, for shutdown
// diagnostics (§5 Suspension points).
func (l *DecayLoop) IsRunning() bool {
	return l.runningDecay.Load()
}

func (l *DecayLoop) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.currentConfig().CalcPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.reconfigCh:
			ticker.Reset(l.currentConfig().CalcPeriod)
		case tickStart := <-ticker.C:
			l.tick(tickStart)
		}
	}
}

// tick runs one full decay-loop iteration (§4.6 steps 1-8).
func (l *DecayLoop) tick(tickStart time.Time) {
	l.runningDecay.Store(true)
	defer l.runningDecay.Store(false)

	tickID := uuid.New().String()
	cfg := l.currentConfig()
	var tickErr error

	// 1. scheduled reset
	if cfg.ResetPeriod != config.ResetNone &&
		(cfg.ResetPeriod == config.ResetNow || !tickStart.Before(NextReset(cfg.ResetPeriod, l.lastReset))) {
		l.decay.ResetAll()
		l.lastReset = tickStart
		l.metrics.RecordReset()
		if cfg.ResetPeriod == config.ResetNow {
			l.Reconfig(withResetPeriod(cfg, config.ResetNone))
			cfg = l.currentConfig()
		}
	}

	// 2. recompute usage_efctv on account nodes; users stay lazy.
	l.tree.WalkSettingEffective(cfg.TicketBased())

	// 3. apply decay strictly before new usage is charged.
	windowStart := l.lastRan
	if !l.lastRan.IsZero() {
		dt := tickStart.Sub(l.lastRan).Seconds()
		factor := math.Pow(cfg.DecayFactor(), dt)
		if err := l.decay.Apply(factor); err != nil {
			l.logger.Error("decay apply failed, aborting tick", "tick_id", tickID, "error", err)
			l.metrics.RecordTick(time.Since(tickStart), err)
			l.lastRan = tickStart
			return
		}
		l.metrics.RecordDecay(factor)
	} else {
		windowStart = tickStart
	}

	var prioritized int
	if cfg.TicketBased() {
		prioritized = l.tickTicketBased(cfg, tickStart, windowStart)
	} else {
		prioritized = l.tickExponential(cfg, tickStart, windowStart)
	}
	l.metrics.RecordJobsPrioritized(prioritized)
	l.logger.Debug("tick prioritized jobs", "tick_id", tickID, "count", prioritized)

	// 7. persist {last_ran = tick_start, last_reset}.
	l.lastRan = tickStart
	if err := l.recovery.Write(l.lastRan, l.lastReset); err != nil {
		l.logger.Error("recovery write failed", "tick_id", tickID, "error", err)
		tickErr = err
	}
	l.metrics.RecordTick(time.Since(tickStart), tickErr)
}

// tickTicketBased implements §4.6 steps 4 and 6: accounting and active-
// marking under a read lock, ticket distribution under the tree lock,
// then a final priority recompute pass under a write lock.
func (l *DecayLoop) tickTicketBased(cfg *config.Config, tickStart, windowStart time.Time) int {
	l.fairShare.NextCycle()

	l.jobs.RLock()
	for _, job := range l.jobs.Jobs() {
		switch job.State {
		case JobRunning:
			if l.accountant.Charge(job, cfg.DecayFactor(), windowStart, tickStart) {
				l.metrics.RecordCharge(tickStart.Sub(windowStart).Seconds() * float64(job.TotalCPUs))
			}
		case JobPending:
			if job.Assoc != nil {
				l.fairShare.MarkActive([]*Job{job}, l.tree.Root())
			}
		}
	}
	l.jobs.RUnlock()

	root := l.tree.Root()
	if root != nil {
		root.Tickets = config.MaxTicketsPool
		l.fairShare.ResetTicketPass()
		l.fairShare.DistributeTickets(root.Children, root.Tickets)
	}
	l.metrics.RecordTickets(uint64(l.fairShare.MaxTickets()))

	n := 0
	l.jobs.Lock()
	for _, job := range l.jobs.Jobs() {
		if job.State == JobPending {
			l.calc.Compute(job, tickStart)
			n++
		}
	}
	l.jobs.Unlock()
	return n
}

// tickExponential implements §4.6 step 5: a single write-locked pass that
// charges running jobs and recomputes priority for pending ones.
func (l *DecayLoop) tickExponential(cfg *config.Config, tickStart, windowStart time.Time) int {
	n := 0
	l.jobs.Lock()
	for _, job := range l.jobs.Jobs() {
		switch job.State {
		case JobRunning:
			if l.accountant.Charge(job, cfg.DecayFactor(), windowStart, tickStart) {
				l.metrics.RecordCharge(tickStart.Sub(windowStart).Seconds() * float64(job.TotalCPUs))
			}
		case JobPending:
			l.calc.Compute(job, tickStart)
			n++
		}
	}
	l.jobs.Unlock()
	return n
}

func withResetPeriod(cfg *config.Config, period config.ResetPeriod) *config.Config {
	next := *cfg
	next.ResetPeriod = period
	return &next
}
