// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"time"

	"github.com/jontk/slurm-priority/pkg/config"
)

// Calculator assembles the weighted factor sum into a job's final priority
// (C5, §4.5).
type Calculator struct {
	cfg         *config.Config
	fairShare   *FairShareEvaluator
	clusterCPUs uint32
	nodeCount   uint32
}

// NewCalculator builds a Calculator reading weights/flags from cfg and
// fair-share factors from fe. clusterCPUs and nodeCount size the job-size
// factor's denominators.
func NewCalculator(cfg *config.Config, fe *FairShareEvaluator, clusterCPUs, nodeCount uint32) *Calculator {
	return &Calculator{cfg: cfg, fairShare: fe, clusterCPUs: clusterCPUs, nodeCount: nodeCount}
}

// Compute produces the job's priority and attaches its factor breakdown
// (§4.5). Partition-less or single-partition jobs get one priority;
// multi-partition jobs additionally populate PriorityArray, one entry per
// listed partition, sharing every non-partition factor.
func (c *Calculator) Compute(job *Job, now time.Time) uint32 {
	if job.DirectSetPrio && job.Priority > 0 {
		return job.Priority
	}

	age := c.ageFactor(job, now)
	fs := c.fairShareFactor(job)
	js := c.jobSizeFactor(job)
	qos := c.qosFactor(job)
	nice := job.Nice - NiceOffset

	if len(job.PartitionList) > 1 {
		return c.computeMultiPartition(job, age, fs, js, qos, nice)
	}

	part := c.partitionFactor(job.Partition)
	prio := c.weightedSum(age, fs, js, part, qos, nice)

	job.PrioFactors = &PrioFactors{
		JobID: job.JobID, UserID: job.UserID,
		PriorityAge: age, PriorityFS: fs, PriorityJS: js,
		PriorityPart: part, PriorityQOS: qos, Nice: job.Nice,
	}
	job.Priority = prio
	job.PriorityArray = nil
	return prio
}

func (c *Calculator) computeMultiPartition(job *Job, age, fs, js, qos float64, nice int64) uint32 {
	var maxPartPriority uint32
	for _, p := range job.PartitionList {
		if p.Priority > maxPartPriority {
			maxPartPriority = p.Priority
		}
	}

	priorities := make([]uint32, len(job.PartitionList))
	var first float64
	for i, p := range job.PartitionList {
		partFactor := 0.0
		if maxPartPriority > 0 {
			partFactor = float64(p.Priority) / float64(maxPartPriority)
		}
		if i == 0 {
			first = partFactor
		}
		priorities[i] = c.weightedSum(age, fs, js, partFactor, qos, nice)
	}

	job.PriorityArray = priorities
	job.Priority = priorities[0]
	job.PrioFactors = &PrioFactors{
		JobID: job.JobID, UserID: job.UserID,
		PriorityAge: age, PriorityFS: fs, PriorityJS: js,
		PriorityPart: first, PriorityQOS: qos, Nice: job.Nice,
	}
	return job.Priority
}

func (c *Calculator) weightedSum(age, fs, js, part, qos float64, nice int64) uint32 {
	sum := float64(c.cfg.WeightAge)*age +
		float64(c.cfg.WeightFS)*fs +
		float64(c.cfg.WeightJS)*js +
		float64(c.cfg.WeightPart)*part +
		float64(c.cfg.WeightQOS)*qos -
		float64(nice)

	if sum < 1 {
		sum = 1
	}
	return uint32(sum)
}

func (c *Calculator) ageFactor(job *Job, now time.Time) float64 {
	var t0 time.Time
	if c.cfg.AccrueAlways() {
		t0 = job.Details.SubmitTime
	} else if !job.Details.BeginTime.IsZero() {
		t0 = job.Details.BeginTime
	} else {
		return 0
	}
	if t0.IsZero() || c.cfg.MaxAge <= 0 {
		return 0
	}
	diff := now.Sub(t0)
	if diff < 0 {
		diff = 0
	}
	age := diff.Seconds() / c.cfg.MaxAge.Seconds()
	if age > 1.0 {
		age = 1.0
	}
	return age
}

func (c *Calculator) fairShareFactor(job *Job) float64 {
	if job.Assoc == nil || c.fairShare == nil {
		return 0
	}
	if c.cfg.TicketBased() {
		maxTickets := c.fairShare.MaxTickets()
		if maxTickets == 0 || job.Assoc.ActiveSeqno != c.fairShare.cycle.Load() {
			return 0
		}
		return float64(job.Assoc.Tickets) / float64(maxTickets)
	}
	if c.fairShare.tree == nil {
		return c.fairShare.CalcFSFactor(job.Assoc.UsageEfctv, job.Assoc.SharesNorm)
	}
	fs := c.fairShare.tree.ResolveFairShareAssoc(job.Assoc, false)
	return c.fairShare.CalcFSFactor(fs.UsageEfctv, fs.SharesNorm)
}

func (c *Calculator) jobSizeFactor(job *Job) float64 {
	cpuCnt := job.TotalCPUs
	if cpuCnt == 0 {
		cpuCnt = job.Details.MaxCPUs
	}
	if cpuCnt == 0 {
		cpuCnt = job.Details.MinCPUs
	}

	nodeRatio := 0.0
	if c.nodeCount > 0 {
		nodeRatio = float64(job.Details.MinNodes) / float64(c.nodeCount)
	}
	cpuRatio := 0.0
	if c.clusterCPUs > 0 {
		cpuRatio = float64(cpuCnt) / float64(c.clusterCPUs)
	}

	if c.cfg.FavorSmall {
		nodeRatio = 1 - nodeRatio
		cpuRatio = 1 - cpuRatio
	}

	js := (nodeRatio + cpuRatio) / 2
	if js < 0 {
		js = 0
	}
	if js > 1 {
		js = 1
	}
	return js
}

func (c *Calculator) partitionFactor(p *Partition) float64 {
	if p == nil || p.Priority == 0 {
		return 0
	}
	return p.NormPriority
}

func (c *Calculator) qosFactor(job *Job) float64 {
	if job.QoS == nil || job.QoS.Priority == 0 {
		return 0
	}
	return job.QoS.NormPriority
}
