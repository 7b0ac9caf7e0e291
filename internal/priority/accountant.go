// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"math"
	"time"
)

// Accountant charges elapsed CPU-seconds of running jobs to the QoS and
// account chain, and maintains the reserved-runtime counter (C2, §4.2).
type Accountant struct {
	tree *ShareTree
}

// NewAccountant builds an Accountant over the given Shares Tree.
func NewAccountant(tree *ShareTree) *Accountant {
	return &Accountant{tree: tree}
}

// Charge applies one running job's elapsed usage within
// [windowStart, windowEnd] to its QoS and ancestor chain (§4.2). Returns
// false when the QoS disabled charging (usage_factor == 0) or the clipped
// window is shorter than one second — the caller (C6) treats false as "no further
// processing" for this job this tick.
func (ac *Accountant) Charge(job *Job, decayFactor float64, windowStart, windowEnd time.Time) bool {
	if job.QoS != nil && job.QoS.UsageFactor == 0 {
		return false
	}

	start := windowStart
	if job.StartTime.After(start) {
		start = job.StartTime
	}
	end := windowEnd
	if !job.EndTime.IsZero() && job.EndTime.Before(end) {
		end = job.EndTime
	}

	runDelta := end.Sub(start).Seconds()
	if runDelta < 1 {
		return false
	}

	timeLimitEnds := job.StartTime.Add(time.Duration(job.TimeLimitMinutes) * time.Minute)
	var cpuRunDelta uint64
	switch {
	case !start.Before(timeLimitEnds):
		cpuRunDelta = 0
	case end.After(timeLimitEnds):
		cpuRunDelta = uint64(job.TotalCPUs) * uint64(timeLimitEnds.Sub(start).Seconds())
	default:
		cpuRunDelta = uint64(job.TotalCPUs) * uint64(runDelta)
	}

	runDecay := runDelta * math.Pow(decayFactor, runDelta)
	realDecay := runDecay * float64(job.TotalCPUs)

	if job.QoS != nil && job.QoS.UsageFactor >= 0 {
		realDecay *= job.QoS.UsageFactor
		runDecay *= job.QoS.UsageFactor
	}

	if job.QoS != nil {
		job.QoS.GrpUsedWall += runDecay
		job.QoS.UsageRaw += realDecay
		job.QoS.GrpUsedCPURunSecs = saturatingSub(job.QoS.GrpUsedCPURunSecs, cpuRunDelta)
	}

	for a := job.Assoc; a != nil; a = a.Parent {
		a.GrpUsedWall += runDecay
		a.UsageRaw += realDecay
		a.GrpUsedCPURunSecs = saturatingSub(a.GrpUsedCPURunSecs, cpuRunDelta)
	}

	return true
}

// RewindReservation reconciles reserved-runtime state after a restart:
// admission re-adds each running job's full total_cpus*time_limit to the
// reserved counters, so any consumption up to last_ran must be subtracted
// exactly once before the first tick's charges (§4.2 Initialization, §9).
func (ac *Accountant) RewindReservation(jobs []*Job, lastRan time.Time) {
	if lastRan.IsZero() {
		return
	}
	for _, job := range jobs {
		if job.State != JobRunning {
			continue
		}
		if job.StartTime.After(lastRan) {
			continue
		}
		delta := uint64(job.TotalCPUs) * uint64(lastRan.Sub(job.StartTime).Seconds())

		if job.QoS != nil {
			job.QoS.GrpUsedCPURunSecs = saturatingSub(job.QoS.GrpUsedCPURunSecs, delta)
		}
		for a := job.Assoc; a != nil; a = a.Parent {
			a.GrpUsedCPURunSecs = saturatingSub(a.GrpUsedCPURunSecs, delta)
		}
	}
}

func saturatingSub(v, delta uint64) uint64 {
	if delta >= v {
		return 0
	}
	return v - delta
}
