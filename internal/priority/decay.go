// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
	"github.com/jontk/slurm-priority/pkg/errors"
)

// DecayEngine applies exponential decay to accumulated usage and resets it
// on the configured schedule (C3, §4.3).
type DecayEngine struct {
	tree *ShareTree
	qos  []*QoS
}

// NewDecayEngine builds a DecayEngine over the given tree and QoS set.
func NewDecayEngine(tree *ShareTree, qos []*QoS) *DecayEngine {
	return &DecayEngine{tree: tree, qos: qos}
}

// Apply multiplies usage_raw and grp_used_wall of every association and QoS
// by factor. factor == 1 is a no-op fast path; factor == 0 is rejected, as
// it would permanently zero all accumulated usage (§4.3, §9).
func (d *DecayEngine) Apply(factor float64) error {
	if factor == 0 {
		return errors.NewPriorityError(errors.ErrorCodeDecayFactorZero, "decay factor is zero, refusing to apply")
	}
	if factor == 1 {
		return nil
	}
	for _, a := range d.tree.Associations() {
		a.UsageRaw *= factor
		a.GrpUsedWall *= factor
	}
	for _, q := range d.qos {
		q.UsageRaw *= factor
		q.GrpUsedWall *= factor
	}
	return nil
}

// ResetAll zeroes usage_raw and grp_used_wall for every association and QoS,
// used at scheduled reset boundaries (§4.3).
func (d *DecayEngine) ResetAll() {
	for _, a := range d.tree.Associations() {
		a.UsageRaw = 0
		a.GrpUsedWall = 0
	}
	for _, q := range d.qos {
		q.UsageRaw = 0
		q.GrpUsedWall = 0
	}
}

// NextReset computes the next reset boundary strictly after lastReset for
// the given period, mirroring the controller's own period boundaries
// (midnight local-time day/week/month/quarter/year rollovers, matching the
// original's localtime_r) (§4.3, §9).
func NextReset(period config.ResetPeriod, lastReset time.Time) time.Time {
	t := lastReset.Local()
	switch period {
	case config.ResetDaily:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
		return d.AddDate(0, 0, 1)
	case config.ResetWeekly:
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
		// week boundary is Sunday 00:00 local, matching the controller's
		// first-day-of-week convention.
		daysUntilSunday := (7 - int(d.Weekday())) % 7
		if daysUntilSunday == 0 {
			daysUntilSunday = 7
		}
		return d.AddDate(0, 0, daysUntilSunday)
	case config.ResetMonthly:
		d := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
		return d.AddDate(0, 1, 0)
	case config.ResetQuarterly:
		qStartMonth := ((int(t.Month())-1)/3)*3 + 1
		d := time.Date(t.Year(), time.Month(qStartMonth), 1, 0, 0, 0, 0, time.Local)
		return d.AddDate(0, 3, 0)
	case config.ResetYearly:
		d := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.Local)
		return d.AddDate(1, 0, 0)
	default:
		// NONE and NOW never recur on a schedule; return a time far in the
		// future so the decay loop's "is it time yet" check never fires.
		// The decay loop runs a NOW reset on its next tick without
		// consulting this value, then switches the period to NONE.
		return t.AddDate(100, 0, 0)
	}
}
