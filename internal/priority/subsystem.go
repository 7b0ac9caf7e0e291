// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"context"
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/jontk/slurm-priority/pkg/errors"
	"github.com/jontk/slurm-priority/pkg/logging"
	"github.com/jontk/slurm-priority/pkg/metrics"
)

// Subsystem is the public surface exposed to the host controller: init,
// fini, set, reconfig, set_assoc_usage, calc_fs_factor and
// get_priority_factors_list (§6).
type Subsystem struct {
	cfg       *config.Config
	tree      *ShareTree
	fairShare *FairShareEvaluator
	calc      *Calculator
	query     *QueryService
	loop      *DecayLoop
	logger    logging.Logger

	started bool
}

// New builds a Subsystem over externally-supplied state. jobs is the host
// controller's job list; tree is the Shares Tree built from the external
// association database; qos is the flat QoS record set. clusterCPUs and
// nodeCount size the job-size factor.
func New(
	cfg *config.Config,
	tree *ShareTree,
	qos []*QoS,
	jobs JobStore,
	clusterCPUs, nodeCount uint32,
	logger logging.Logger,
	collector metrics.Collector,
) *Subsystem {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	fairShare := NewFairShareEvaluator(tree, cfg.TicketBased())
	calc := NewCalculator(cfg, fairShare, clusterCPUs, nodeCount)
	accountant := NewAccountant(tree)
	decay := NewDecayEngine(tree, qos)
	recovery := NewRecoveryStore(cfg.StateSaveLocation, cfg.RecoveryDisabled())
	loop := NewDecayLoop(cfg, tree, qos, jobs, accountant, decay, fairShare, calc, recovery, logger, collector)

	return &Subsystem{
		cfg:       cfg,
		tree:      tree,
		fairShare: fairShare,
		calc:      calc,
		query:     NewQueryService(jobs, cfg),
		loop:      loop,
		logger:    logger,
	}
}

// Init starts the decay loop (§6, §7). A missing cluster CPU count or
// missing association data while weight_fs > 0 is a fatal startup error.
// An unsupported accounting backend instead zeroes weight_fs and starts the
// loop anyway, so the other factors keep contributing.
func (s *Subsystem) Init(ctx context.Context, clusterCPUCount uint32) error {
	if clusterCPUCount == 0 {
		return errors.NewFatalInitError(errors.ErrorCodeMissingClusterCPUs, "cluster cpu count is unknown")
	}
	if s.cfg.WeightFS > 0 && (s.tree == nil || s.tree.Root() == nil) {
		return errors.NewFatalInitError(errors.ErrorCodeMissingAssociationData, "weight_fs is set but no association data is loaded")
	}
	if !s.cfg.SupportsFairShare() {
		s.logger.Warn("accounting storage backend does not support fair-share, disabling",
			"accounting_storage_type", s.cfg.AccountingStorageType)
		s.cfg.WeightFS = 0
	}

	if err := s.loop.Recover(); err != nil {
		return errors.NewPriorityErrorWithCause(errors.ErrorCodeRecoveryFileCorrupt, "recover decay loop state", err)
	}
	s.loop.Start(ctx)
	s.started = true
	return nil
}

// Fini cancels and joins the decay loop (§6).
func (s *Subsystem) Fini() {
	if !s.started {
		return
	}
	s.loop.Stop()
	s.started = false
}

// Set computes and attaches the job's priority (§6 `set`).
func (s *Subsystem) Set(job *Job, now time.Time) uint32 {
	return s.calc.Compute(job, now)
}

// Reconfig signals the decay loop to reread cfg on its next tick (§6).
func (s *Subsystem) Reconfig(cfg *config.Config) {
	s.cfg = cfg
	s.loop.Reconfig(cfg)
}

// SetAssocUsage writes usage_norm/usage_efctv for one association (§6
// `set_assoc_usage`).
func (s *Subsystem) SetAssocUsage(a *Association) {
	s.tree.SetAssocUsage(a, s.cfg.TicketBased())
}

// CalcFSFactor returns the fair-share factor for the given scalars (§6
// `calc_fs_factor`).
func (s *Subsystem) CalcFSFactor(usageEfctv, sharesNorm float64) float64 {
	return s.fairShare.CalcFSFactor(usageEfctv, sharesNorm)
}

// GetPriorityFactorsList returns PrioFactors for matching pending jobs
// (§6 `get_priority_factors_list`).
func (s *Subsystem) GetPriorityFactorsList(req FactorRequest, requesterUID uint32, isOperator bool) []*PrioFactors {
	return s.query.GetFactors(req, requesterUID, isOperator)
}

// Running reports whether the decay loop is currently in flight.
func (s *Subsystem) Running() bool {
	return s.started && s.loop.IsRunning()
}
