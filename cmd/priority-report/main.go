// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command priority-report prints per-pending-job priority factor
// breakdowns from an in-process Subsystem (§6 `get_priority_factors_list`).
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
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	var jobID, userID uint32
	var operator bool
	var locale string

	root := &cobra.Command{
		Use:   "priority-report",
		Short: "Print per-job fair-share priority factor breakdowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, jobs := demoSubsystem()
			ctx := context.Background()
			if err := sub.Init(ctx, 1000); err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer sub.Fini()

			// seed priorities once so the report has something to show.
			for _, job := range jobs.Jobs() {
				sub.Set(job, time.Now())
			}

			tag, err := language.Parse(locale)
			if err != nil {
				tag = language.English
			}
			p := message.NewPrinter(tag)

			factors := sub.GetPriorityFactorsList(priority.FactorRequest{JobID: jobID, UserID: userID}, userID, operator)
			if len(factors) == 0 {
				p.Fprintln(cmd.OutOrStdout(), "no matching pending jobs")
				return nil
			}
			for _, f := range factors {
				p.Fprintf(cmd.OutOrStdout(), "job %d (uid %d): age=%.3f fs=%.3f js=%.3f part=%.3f qos=%.3f nice=%d\n",
					f.JobID, f.UserID, f.PriorityAge, f.PriorityFS, f.PriorityJS, f.PriorityPart, f.PriorityQOS, f.Nice)
			}
			return nil
		},
	}

	root.Flags().Uint32Var(&jobID, "job-id", 0, "filter to a single job id")
	root.Flags().Uint32Var(&userID, "user-id", 0, "filter to a single user id")
	root.Flags().BoolVar(&operator, "operator", true, "bypass PRIVATE_DATA_JOBS gating")
	root.Flags().StringVar(&locale, "locale", "en", "BCP 47 locale tag for number formatting")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// demoSubsystem builds a Subsystem over a small fixed job-list/assoc-tree
// fake. It does not implement the real DB loader (out of scope, §1/§6
// supplement); it exists to exercise the external interface surface.
func demoSubsystem() (*priority.Subsystem, *priority.SliceJobStore) {
	root := &priority.Association{ID: 1, Kind: priority.KindAccount}
	dept := &priority.Association{ID: 2, Kind: priority.KindAccount, ParentID: 1, SharesRaw: 1}
	tree := priority.NewShareTree([]*priority.Association{root, dept})
	tree.Root().UsageRaw = 1

	jobs := priority.NewSliceJobStore([]*priority.Job{
		{
			JobID: 101, UserID: 42, Assoc: dept, State: priority.JobPending,
			Details: priority.JobDetails{BeginTime: time.Now().Add(-2 * time.Hour)},
		},
	})

	cfg := config.NewDefault()
	cfg.WeightAge = 1000
	cfg.MaxAge = 24 * time.Hour
	cfg.StateSaveLocation = os.DevNull
	cfg.AccountingStorageType = "accounting_storage/slurmdbd"

	logger := logging.NewLogger(logging.DefaultConfig())
	return priority.New(cfg, tree, nil, jobs, 1000, 100, logger, nil), jobs
}
