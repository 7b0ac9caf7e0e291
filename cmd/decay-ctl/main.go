// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command decay-ctl drives init/fini/reconfig against an in-process
// Subsystem wired to an in-memory job-list/assoc-db fake. It demonstrates
// the external operation surface (§6) without the real DB loader.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jontk/slurm-priority/internal/priority"
	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/jontk/slurm-priority/pkg/logging"
	"github.com/spf13/cobra"
)

func main() {
	var calcPeriod time.Duration
	var ticketBased bool
	var runFor time.Duration

	root := &cobra.Command{
		Use:   "decay-ctl",
		Short: "Exercise init/fini/reconfig of the multifactor priority decay loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger(logging.DefaultConfig())

			tree, jobs := demoState()
			cfg := config.NewDefault()
			cfg.CalcPeriod = calcPeriod
			cfg.WeightAge, cfg.WeightFS = 100, 100
			cfg.MaxAge = time.Hour
			cfg.StateSaveLocation = os.DevNull
			cfg.AccountingStorageType = "accounting_storage/slurmdbd"
			if ticketBased {
				cfg.Flags |= config.FlagTicketBased
			}

			sub := priority.New(cfg, tree, nil, jobs, 1000, 100, logger, nil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			logger.Info("init", "calc_period", calcPeriod, "ticket_based", ticketBased)
			if err := sub.Init(ctx, 1000); err != nil {
				return fmt.Errorf("init: %w", err)
			}

			logger.Info("running", "duration", runFor)
			time.Sleep(runFor)

			logger.Info("reconfig")
			cfg.WeightAge = 200
			sub.Reconfig(cfg)
			time.Sleep(runFor)

			logger.Info("fini")
			sub.Fini()
			return nil
		},
	}

	root.Flags().DurationVar(&calcPeriod, "calc-period", 200*time.Millisecond, "tick interval")
	root.Flags().BoolVar(&ticketBased, "ticket-based", false, "use the ticket-based fair-share evaluator")
	root.Flags().DurationVar(&runFor, "run-for", 1*time.Second, "how long to run before reconfig/fini")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func demoState() (*priority.ShareTree, *priority.SliceJobStore) {
	root := &priority.Association{ID: 1, Kind: priority.KindAccount}
	dept := &priority.Association{ID: 2, Kind: priority.KindAccount, ParentID: 1, SharesRaw: 1}
	user := &priority.Association{ID: 3, Kind: priority.KindUser, ParentID: 2, SharesRaw: 1}
	tree := priority.NewShareTree([]*priority.Association{root, dept, user})
	tree.Root().UsageRaw = 1

	jobs := priority.NewSliceJobStore([]*priority.Job{
		{
			JobID: 1, UserID: 7, Assoc: user, State: priority.JobRunning,
			StartTime: time.Now().Add(-10 * time.Minute), TotalCPUs: 4, TimeLimitMinutes: 60,
		},
		{
			JobID: 2, UserID: 7, Assoc: user, State: priority.JobPending,
			Details: priority.JobDetails{BeginTime: time.Now().Add(-time.Hour)},
		},
	})
	return tree, jobs
}
