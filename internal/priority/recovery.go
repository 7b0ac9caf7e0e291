// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jontk/slurm-priority/pkg/errors"
)

// recoveryFileName is the persistent state file holding {last_ran,
// last_reset} (§6 "Persistent state").
const recoveryFileName = "priority_last_decay_ran"

// RecoveryStore reads and writes the tiny {last_ran, last_reset} record
// used to resume decay/reset scheduling across restarts (C7, §4.7).
type RecoveryStore struct {
	mu   sync.Mutex
	path string
	// disabled mirrors Config.RecoveryDisabled(): a null state directory
	// skips writes without error.
	disabled bool
}

// NewRecoveryStore builds a store rooted at stateDir. disabled mirrors
// Config.RecoveryDisabled() and suppresses Write without error.
func NewRecoveryStore(stateDir string, disabled bool) *RecoveryStore {
	return &RecoveryStore{path: filepath.Join(stateDir, recoveryFileName), disabled: disabled}
}

// Read returns the persisted {last_ran, last_reset}. A missing or
// truncated file is non-fatal and returns the zero time for both — a
// fresh start, per §4.7 and §9.
func (r *RecoveryStore) Read() (lastRan, lastReset time.Time, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, ferr := os.ReadFile(r.path)
	if ferr != nil {
		return time.Time{}, time.Time{}, nil
	}
	if len(data) < 16 {
		return time.Time{}, time.Time{}, nil
	}

	ranUnix := int64(binary.BigEndian.Uint64(data[0:8]))
	resetUnix := int64(binary.BigEndian.Uint64(data[8:16]))

	if ranUnix > 0 {
		lastRan = time.Unix(ranUnix, 0).UTC()
	}
	if resetUnix > 0 {
		lastReset = time.Unix(resetUnix, 0).UTC()
	}
	return lastRan, lastReset, nil
}

// Write persists {last_ran, last_reset} using an atomic rename dance:
// write a ".new" file, hardlink the current primary to ".old" (best
// effort; absence is not an error), then rename ".new" over the primary.
// A disabled store (null state directory) is a silent no-op (§4.7).
func (r *RecoveryStore) Write(lastRan, lastReset time.Time) error {
	if r.disabled {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return errors.NewPriorityErrorWithCause(errors.ErrorCodeRecoveryFileCorrupt, "create state directory", err)
	}

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(lastRan.Unix()))
	binary.BigEndian.PutUint64(buf[8:16], uint64(lastReset.Unix()))

	newPath := r.path + ".new"
	oldPath := r.path + ".old"

	if err := os.WriteFile(newPath, buf[:], 0o644); err != nil {
		return errors.NewPriorityErrorWithCause(errors.ErrorCodeRecoveryFileCorrupt, "write recovery temp file", err)
	}

	_ = os.Remove(oldPath)
	_ = os.Link(r.path, oldPath) // best effort; absent primary is fine

	if err := os.Rename(newPath, r.path); err != nil {
		return errors.NewPriorityErrorWithCause(errors.ErrorCodeRecoveryFileCorrupt, "rename recovery file into place", err)
	}
	return nil
}

// String implements fmt.Stringer for log fields.
func (r *RecoveryStore) String() string { return fmt.Sprintf("RecoveryStore(%s)", r.path) }
