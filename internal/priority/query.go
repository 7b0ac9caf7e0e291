// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"fmt"
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	gocache "github.com/patrickmn/go-cache"
)

// FactorRequest filters the pending jobs a GetFactors call returns (§4.8).
type FactorRequest struct {
	JobID  uint32 // 0 means "any"
	UserID uint32 // 0 means "any"
	Now    time.Time
}

// QueryService emits per-pending-job factor breakdowns for operator
// tooling (C8, §4.8). Results are cached briefly, since repeated report
// polls within one tick interval would otherwise re-walk the whole
// pending job list for identical output.
type QueryService struct {
	jobs JobStore
	cfg  *config.Config
	cache *gocache.Cache
}

// NewQueryService builds a QueryService reading PRIVATE_DATA_JOBS and
// other gating from cfg.
func NewQueryService(jobs JobStore, cfg *config.Config) *QueryService {
	return &QueryService{
		jobs:  jobs,
		cfg:   cfg,
		cache: gocache.New(5*time.Second, 30*time.Second),
	}
}

// GetFactors returns PrioFactors for pending jobs that have reached
// begin_time, are not held, are not operator-overridden, and pass the
// optional job-id/user-id filters (both, if given, must match). When
// PRIVATE_DATA_JOBS is set, a non-operator requester (one who is not
// requesterUID's own jobs nor a coordinated account) sees nothing outside
// their own jobs and accounts they coordinate (§4.8).
func (q *QueryService) GetFactors(req FactorRequest, requesterUID uint32, isOperator bool) []*PrioFactors {
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	key := fmt.Sprintf("%d:%d:%d:%t", req.JobID, req.UserID, requesterUID, isOperator)
	if cached, ok := q.cache.Get(key); ok {
		return cached.([]*PrioFactors)
	}

	q.jobs.RLock()
	defer q.jobs.RUnlock()
	jobs := q.jobs.Jobs()

	var out []*PrioFactors
	for _, job := range jobs {
		if !q.eligible(job, now, req) {
			continue
		}
		if q.cfg.PrivateDataJobs() && !isOperator && !q.visibleTo(job, requesterUID, jobs) {
			continue
		}
		if job.PrioFactors != nil {
			out = append(out, job.PrioFactors)
		}
	}
	q.cache.SetDefault(key, out)
	return out
}

func (q *QueryService) eligible(job *Job, now time.Time, req FactorRequest) bool {
	if job.State != JobPending {
		return false
	}
	if job.DirectSetPrio {
		return false
	}
	if !job.Details.BeginTime.IsZero() && job.Details.BeginTime.After(now) {
		return false
	}
	if req.JobID != 0 && job.JobID != req.JobID {
		return false
	}
	if req.UserID != 0 && job.UserID != req.UserID {
		return false
	}
	return true
}

// visibleTo reports whether requesterUID may see job under PRIVATE_DATA_JOBS:
// their own jobs, or jobs of an account they coordinate. The coordinator
// check scans the already-locked jobs snapshot for the requester's own
// CoordinatorOf list, standing in for the host controller's real
// account-authorization service.
func (q *QueryService) visibleTo(job *Job, requesterUID uint32, jobs []*Job) bool {
	if job.UserID == requesterUID {
		return true
	}
	if job.Account == "" {
		return false
	}
	for _, other := range jobs {
		if other.UserID != requesterUID {
			continue
		}
		for _, acct := range other.CoordinatorOf {
			if acct == job.Account {
				return true
			}
		}
	}
	return false
}
