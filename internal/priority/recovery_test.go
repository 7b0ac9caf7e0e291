// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package priority

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryStoreReadMissingFileIsZero(t *testing.T) {
	dir := t.TempDir()
	store := NewRecoveryStore(dir, false)

	ran, reset, err := store.Read()
	require.NoError(t, err)
	assert.True(t, ran.IsZero())
	assert.True(t, reset.IsZero())
}

func TestRecoveryStoreWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	store := NewRecoveryStore(dir, false)

	ran := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	reset := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Write(ran, reset))

	gotRan, gotReset, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, ran.Unix(), gotRan.Unix())
	assert.Equal(t, reset.Unix(), gotReset.Unix())
}

func TestRecoveryStoreWriteTwiceKeepsOldHardlink(t *testing.T) {
	dir := t.TempDir()
	store := NewRecoveryStore(dir, false)

	require.NoError(t, store.Write(time.Now(), time.Time{}))
	require.NoError(t, store.Write(time.Now(), time.Time{}))

	matches, err := filepath.Glob(filepath.Join(dir, "*.old"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRecoveryStoreDisabledWriteIsNoop(t *testing.T) {
	dir := t.TempDir()
	store := NewRecoveryStore(dir, true)

	require.NoError(t, store.Write(time.Now(), time.Now()))

	ran, _, err := store.Read()
	require.NoError(t, err)
	assert.True(t, ran.IsZero())
}

func TestRecoveryStoreReadTruncatedFileIsZero(t *testing.T) {
	dir := t.TempDir()
	store := NewRecoveryStore(dir, false)
	path := filepath.Join(dir, recoveryFileName)
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	ran, reset, err := store.Read()
	require.NoError(t, err)
	assert.True(t, ran.IsZero())
	assert.True(t, reset.IsZero())
}
