// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config holds the runtime configuration for the multifactor
// priority subsystem: tick cadence, decay half-life, reset schedule,
// factor weights and flags (§6 of the specification).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ResetPeriod selects the schedule on which accumulated usage is zeroed.
type ResetPeriod string

const (
	ResetNone      ResetPeriod = "NONE"
	ResetNow       ResetPeriod = "NOW"
	ResetDaily     ResetPeriod = "DAILY"
	ResetWeekly    ResetPeriod = "WEEKLY"
	ResetMonthly   ResetPeriod = "MONTHLY"
	ResetQuarterly ResetPeriod = "QUARTERLY"
	ResetYearly    ResetPeriod = "YEARLY"
)

func (r ResetPeriod) valid() bool {
	switch r {
	case ResetNone, ResetNow, ResetDaily, ResetWeekly, ResetMonthly, ResetQuarterly, ResetYearly:
		return true
	default:
		return false
	}
}

// Flags is the `flags` bitset from §6 (`TICKET_BASED`, `ACCRUE_ALWAYS`).
type Flags uint32

const (
	// FlagTicketBased selects the ticket-based fair-share evaluator (C4)
	// instead of the classical exponential per-association formula.
	FlagTicketBased Flags = 1 << iota
	// FlagAccrueAlways ages a job from submit_time rather than begin_time.
	FlagAccrueAlways
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// PriorityFlags is the `priority_flags` bitset (only `PRIVATE_DATA_JOBS`
// is observed by this subsystem, per §6/§4.8).
type PriorityFlags uint32

const (
	FlagPrivateDataJobs PriorityFlags = 1 << iota
)

// MaxTicketsPool is fixed at 2^32-1 per §6 ("not configurable").
const MaxTicketsPool uint32 = 1<<32 - 1

// Config holds all recognized options from §6.
type Config struct {
	// CalcPeriod is the tick interval (`calc_period`).
	CalcPeriod time.Duration `yaml:"calc_period"`

	// DecayHalfLife is the usage half-life (`decay_hl`); <= 0 disables decay.
	DecayHalfLife time.Duration `yaml:"decay_hl"`

	// ResetPeriod is the scheduled reset cadence (`reset_period`).
	ResetPeriod ResetPeriod `yaml:"reset_period"`

	// FavorSmall flips the job-size factor polarity (`favor_small`).
	FavorSmall bool `yaml:"favor_small"`

	// MaxAge saturates the age factor (`max_age`).
	MaxAge time.Duration `yaml:"max_age"`

	WeightAge  uint32 `yaml:"weight_age"`
	WeightFS   uint32 `yaml:"weight_fs"`
	WeightJS   uint32 `yaml:"weight_js"`
	WeightPart uint32 `yaml:"weight_part"`
	WeightQOS  uint32 `yaml:"weight_qos"`

	Flags         Flags         `yaml:"flags"`
	PriorityFlags PriorityFlags `yaml:"priority_flags"`

	// StateSaveLocation is the recovery-record directory; "/dev/null"
	// disables recovery writes entirely (§4.7/§6).
	StateSaveLocation string `yaml:"state_save_location"`

	// AccountingStorageType gates fair-share activation (§7): an
	// unsupported backend silently disables fair-share rather than erroring.
	AccountingStorageType string `yaml:"accounting_storage_type"`
}

// TicketBased reports whether the ticket-based evaluator is selected.
func (c *Config) TicketBased() bool { return c.Flags.has(FlagTicketBased) }

// AccrueAlways reports whether age accrues from submit_time.
func (c *Config) AccrueAlways() bool { return c.Flags.has(FlagAccrueAlways) }

// PrivateDataJobs reports whether the query service must scope results
// to the requester's own jobs and coordinated accounts.
func (c *Config) PrivateDataJobs() bool {
	return c.PriorityFlags&FlagPrivateDataJobs != 0
}

// DecayFactor derives the per-second decay multiplier from the configured
// half-life: `decay_factor = 1 - ln(2)/H` (§4.3, first-order approximation).
// Returns 1 (no decay) when the half-life is <= 0.
func (c *Config) DecayFactor() float64 {
	h := c.DecayHalfLife.Seconds()
	if h <= 0 {
		return 1
	}
	return 1 - ln2/h
}

const ln2 = 0.6931471805599453

// NewDefault returns a configuration matching the supported storage
// backends and conservative defaults, with environment overrides applied.
func NewDefault() *Config {
	c := &Config{
		CalcPeriod:            5 * time.Minute,
		DecayHalfLife:         7 * 24 * time.Hour,
		ResetPeriod:           ResetNone,
		FavorSmall:            false,
		MaxAge:                7 * 24 * time.Hour,
		WeightAge:             0,
		WeightFS:              0,
		WeightJS:              0,
		WeightPart:            0,
		WeightQOS:             0,
		Flags:                 0,
		PriorityFlags:         0,
		StateSaveLocation:     getEnvOrDefault("SLURM_PRIORITY_STATE_DIR", "/var/spool/slurm/priority"),
		AccountingStorageType: getEnvOrDefault("SLURM_ACCOUNTING_STORAGE_TYPE", "accounting_storage/none"),
	}
	c.Load()
	return c
}

// Load applies environment-variable overrides to an existing configuration.
func (c *Config) Load() {
	if v := os.Getenv("SLURM_PRIORITY_CALC_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.CalcPeriod = d
		}
	}
	if v := os.Getenv("SLURM_PRIORITY_DECAY_HL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DecayHalfLife = d
		}
	}
	if v := os.Getenv("SLURM_PRIORITY_RESET_PERIOD"); v != "" {
		rp := ResetPeriod(v)
		if rp.valid() {
			c.ResetPeriod = rp
		}
	}
	if v := os.Getenv("SLURM_PRIORITY_FAVOR_SMALL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.FavorSmall = b
		}
	}
	if v := os.Getenv("SLURM_PRIORITY_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.MaxAge = d
		}
	}
	c.WeightAge = getEnvUint32OrDefault("SLURM_PRIORITY_WEIGHT_AGE", c.WeightAge)
	c.WeightFS = getEnvUint32OrDefault("SLURM_PRIORITY_WEIGHT_FS", c.WeightFS)
	c.WeightJS = getEnvUint32OrDefault("SLURM_PRIORITY_WEIGHT_JS", c.WeightJS)
	c.WeightPart = getEnvUint32OrDefault("SLURM_PRIORITY_WEIGHT_PART", c.WeightPart)
	c.WeightQOS = getEnvUint32OrDefault("SLURM_PRIORITY_WEIGHT_QOS", c.WeightQOS)

	if v := os.Getenv("SLURM_PRIORITY_STATE_DIR"); v != "" {
		c.StateSaveLocation = v
	}
	if v := os.Getenv("SLURM_ACCOUNTING_STORAGE_TYPE"); v != "" {
		c.AccountingStorageType = v
	}
}

// LoadFile reads YAML configuration from path and overlays it onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate checks internal consistency of statically-known fields. It does
// not check the fair-share/association precondition from §7, which depends
// on runtime state the subsystem supplies at init.
func (c *Config) Validate() error {
	if c.CalcPeriod <= 0 {
		return ErrInvalidCalcPeriod
	}
	if !c.ResetPeriod.valid() {
		return ErrInvalidResetPeriod
	}
	if c.MaxAge <= 0 {
		return ErrInvalidMaxAge
	}
	return nil
}

// SupportsFairShare reports whether the configured accounting backend
// supports fair-share at all. An unsupported backend causes fair-share to
// be silently disabled (§7) rather than an error.
func (c *Config) SupportsFairShare() bool {
	return c.AccountingStorageType != "" && c.AccountingStorageType != "accounting_storage/none"
}

// RecoveryDisabled reports whether the configured state directory is a
// null sink, per §4.7/§6 ("/dev/null disables recovery writes").
func (c *Config) RecoveryDisabled() bool {
	return c.StateSaveLocation == "" || c.StateSaveLocation == os.DevNull
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvUint32OrDefault(key string, defaultValue uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(i)
		}
	}
	return defaultValue
}
