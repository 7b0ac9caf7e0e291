// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPriorityError(t *testing.T) {
	err := NewPriorityError(ErrorCodeDecayFactorZero, "decay factor is zero")
	require.Error(t, err)
	assert.Equal(t, ErrorCodeDecayFactorZero, err.Code)
	assert.Equal(t, CategoryTick, err.Category)
	assert.False(t, err.Fatal)
	assert.Contains(t, err.Error(), "decay factor is zero")
}

func TestNewFatalInitError(t *testing.T) {
	err := NewFatalInitError(ErrorCodeMissingClusterCPUs, "cluster cpu count unknown")
	assert.True(t, err.IsFatal())
	assert.Equal(t, CategoryStartup, err.Category)
}

func TestPriorityErrorIs(t *testing.T) {
	a := NewPriorityError(ErrorCodeAssociationNotFound, "no such association")
	b := NewPriorityError(ErrorCodeAssociationNotFound, "a different message")
	assert.True(t, errors.Is(a, b))

	c := NewPriorityError(ErrorCodeUnknown, "other")
	assert.False(t, errors.Is(a, c))
}

func TestPriorityErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewPriorityErrorWithCause(ErrorCodeRecoveryFileCorrupt, "bad recovery file", cause)
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(ErrorCodeValidationFailed, "nice must be a number", "nice", "abc", nil)
	assert.Equal(t, "nice", err.Field)
	assert.Equal(t, "abc", err.Value)
	assert.Equal(t, ErrorCodeValidationFailed, err.Code)
}
