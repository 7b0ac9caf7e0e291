// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrInvalidCalcPeriod is returned when calc_period is not positive.
	ErrInvalidCalcPeriod = errors.New("calc_period must be greater than 0")

	// ErrInvalidResetPeriod is returned when reset_period names an unknown schedule.
	ErrInvalidResetPeriod = errors.New("reset_period must be one of NONE, NOW, DAILY, WEEKLY, MONTHLY, QUARTERLY, YEARLY")

	// ErrInvalidMaxAge is returned when max_age is not positive.
	ErrInvalidMaxAge = errors.New("max_age must be greater than 0")

	// ErrFairShareNeedsAssociations names the weight_fs > 0 without
	// association data condition (§7: fatal at startup). Validate does not
	// return it; Subsystem.Init reports that condition as a fatal
	// PriorityError with ErrorCodeMissingAssociationData.
	ErrFairShareNeedsAssociations = errors.New("weight_fs > 0 requires association data")
)
