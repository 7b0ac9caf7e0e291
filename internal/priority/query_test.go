// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"testing"
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/stretchr/testify/assert"
)

func pendingJobWithFactors(id, user uint32, account string, begin time.Time) *Job {
	return &Job{
		JobID: id, UserID: user, Account: account,
		State:       JobPending,
		Details:     JobDetails{BeginTime: begin},
		PrioFactors: &PrioFactors{JobID: id, UserID: user},
	}
}

func TestGetFactorsFiltersHeldAndOverridden(t *testing.T) {
	cfg := config.NewDefault()
	past := time.Now().Add(-time.Hour)
	jobs := []*Job{
		pendingJobWithFactors(1, 10, "acctA", past),
		{JobID: 2, State: JobHeld, PrioFactors: &PrioFactors{JobID: 2}},
		{JobID: 3, State: JobPending, DirectSetPrio: true, PrioFactors: &PrioFactors{JobID: 3}},
	}
	store := NewSliceJobStore(jobs)
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{}, 0, true)
	assert.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].JobID)
}

func TestGetFactorsFiltersBeginTimeNotReached(t *testing.T) {
	cfg := config.NewDefault()
	future := time.Now().Add(time.Hour)
	jobs := []*Job{pendingJobWithFactors(1, 10, "acctA", future)}
	store := NewSliceJobStore(jobs)
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{}, 0, true)
	assert.Empty(t, out)
}

func TestGetFactorsJobIDAndUserIDFilters(t *testing.T) {
	cfg := config.NewDefault()
	past := time.Now().Add(-time.Hour)
	jobs := []*Job{
		pendingJobWithFactors(1, 10, "acctA", past),
		pendingJobWithFactors(2, 20, "acctB", past),
	}
	store := NewSliceJobStore(jobs)
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{JobID: 2}, 0, true)
	assert.Len(t, out, 1)
	assert.Equal(t, uint32(2), out[0].JobID)
}

func TestGetFactorsPrivateDataGatesNonOperator(t *testing.T) {
	cfg := config.NewDefault()
	cfg.PriorityFlags |= config.FlagPrivateDataJobs
	past := time.Now().Add(-time.Hour)
	jobs := []*Job{
		pendingJobWithFactors(1, 10, "acctA", past),
		pendingJobWithFactors(2, 20, "acctB", past),
	}
	store := NewSliceJobStore(jobs)
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{}, 10, false)
	assert.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].JobID)
}

func TestGetFactorsPrivateDataAllowsCoordinator(t *testing.T) {
	cfg := config.NewDefault()
	cfg.PriorityFlags |= config.FlagPrivateDataJobs
	past := time.Now().Add(-time.Hour)
	coordinatorJob := pendingJobWithFactors(1, 10, "acctA", past)
	coordinatorJob.CoordinatorOf = []string{"acctB"}
	otherJob := pendingJobWithFactors(2, 20, "acctB", past)
	store := NewSliceJobStore([]*Job{coordinatorJob, otherJob})
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{}, 10, false)
	assert.Len(t, out, 2)
}

func TestGetFactorsOperatorSeesEverything(t *testing.T) {
	cfg := config.NewDefault()
	cfg.PriorityFlags |= config.FlagPrivateDataJobs
	past := time.Now().Add(-time.Hour)
	jobs := []*Job{
		pendingJobWithFactors(1, 10, "acctA", past),
		pendingJobWithFactors(2, 20, "acctB", past),
	}
	store := NewSliceJobStore(jobs)
	q := NewQueryService(store, cfg)

	out := q.GetFactors(FactorRequest{}, 999, true)
	assert.Len(t, out, 2)
}
