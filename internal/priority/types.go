// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package priority implements the core of a multifactor job-priority
// subsystem: a hierarchical fair-share engine, a background decay loop,
// and a per-job priority calculator (spec §1-§9).
package priority

import (
	"math"
	"time"
)

// UseParent is the sentinel shares_raw value meaning "inherit from parent".
const UseParent int64 = -1

// Uncomputed marks a user leaf's usage_efctv as not-yet-computed; it is
// filled in lazily on first job query (§4.1).
const Uncomputed = math.MaxFloat64

// MinUsageFactor is the floor applied to usage_efctv in ticket mode (§3/§4.4).
const MinUsageFactor = 0.01

// NiceOffset is the fixed zero-point nice jobs are stored relative to (§4.5).
const NiceOffset = 10000

// AssociationKind distinguishes internal account nodes from user leaves.
type AssociationKind int

const (
	KindAccount AssociationKind = iota
	KindUser
)

// AssociationID identifies a node in the Shares Tree.
type AssociationID uint32

// Association is a node of the hierarchical Shares Tree (§3, C1).
type Association struct {
	ID      AssociationID
	Name    string
	Account string
	User    string // empty for account nodes
	Kind    AssociationKind

	ParentID AssociationID
	Parent   *Association
	Children []*Association

	// SharesRaw is the configured entitlement, or UseParent to inherit.
	SharesRaw int64
	// LevelShares is the sum of siblings' SharesRaw at this level.
	LevelShares float64
	// SharesNorm is the normalized share in [0,1] relative to root.
	SharesNorm float64

	// UsageRaw is accumulated decayed CPU-seconds ever charged.
	UsageRaw float64
	// UsageNorm is UsageRaw / root.UsageRaw, clamped to [0,1].
	UsageNorm float64
	// UsageEfctv is the effective usage used by the evaluator.
	UsageEfctv float64

	// GrpUsedWall is decayed wall-time charged to the group.
	GrpUsedWall float64
	// GrpUsedCPURunSecs is reserved future CPU-seconds of running jobs.
	GrpUsedCPURunSecs uint64

	// ActiveSeqno marks this node active in the current ticket cycle
	// when it equals the root's current cycle id.
	ActiveSeqno uint64
	// Tickets is valid only in ticket mode.
	Tickets uint32
}

// IsUseParent reports whether this association inherits shares from its parent.
func (a *Association) IsUseParent() bool { return a.SharesRaw == UseParent }

// QoS is a quality-of-service record, independent of the Shares Tree (§3).
type QoS struct {
	ID           uint32
	Name         string
	Priority     uint32
	NormPriority float64
	// UsageFactor multiplies usage charges; 0 disables all charging for
	// jobs in this QoS; negative values are treated as "unset" (no scaling).
	UsageFactor float64

	UsageRaw          float64
	GrpUsedWall       float64
	GrpUsedCPURunSecs uint64
}

// JobState mirrors the subset of controller job states this subsystem reads.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobHeld
	JobOther
)

// JobDetails carries the subset of job.details this subsystem needs.
type JobDetails struct {
	SubmitTime time.Time
	BeginTime  time.Time // zero value means unset
	MinNodes   uint32
	MinCPUs    uint32
	MaxCPUs    uint32 // 0 means "unset" (NO_VAL)
}

// Partition carries enough of a partition record to drive the partition
// factor and multi-partition priority_array (§4.5).
type Partition struct {
	Name         string
	Priority     uint32
	NormPriority float64
}

// Job is the subset of a controller job record this subsystem reads and
// annotates. Ownership remains with the host controller (§3).
type Job struct {
	JobID   uint32
	UserID  uint32
	Account string

	Assoc *Association
	QoS   *QoS

	State JobState

	Priority      uint32
	PriorityArray []uint32
	DirectSetPrio bool
	Nice          int64 // stored relative to NiceOffset

	Details JobDetails

	StartTime        time.Time
	EndTime          time.Time // zero value means "still running / unset"
	TotalCPUs        uint32
	TimeLimitMinutes uint32

	Partition     *Partition
	PartitionList []*Partition

	PrioFactors *PrioFactors

	// CoordinatorOf lists accounts this user coordinates (§4.8 privacy gate).
	CoordinatorOf []string
}

// PrioFactors is the per-job factor breakdown attached for reporting (§3).
type PrioFactors struct {
	JobID        uint32
	UserID       uint32
	PriorityAge  float64
	PriorityFS   float64
	PriorityJS   float64
	PriorityPart float64
	PriorityQOS  float64
	Nice         int64
}
