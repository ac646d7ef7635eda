package lock_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchgate-project/patchgate/internal/lock"
	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/model"
)

const shortTTL = 100 * time.Millisecond

func TestManager_Acquire(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, shortTTL)

	rec, err := mgr.Acquire("prune")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.HolderNonce)
	assert.Equal(t, dir, rec.Dir)
	assert.Equal(t, "prune", rec.Purpose)

	_, err = os.Stat(filepath.Join(dir, "lease.json"))
	assert.NoError(t, err)
}

func TestManager_Acquire_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "backups")
	mgr := lock.NewManager(dir, shortTTL)

	_, err := mgr.Acquire("prune")
	require.NoError(t, err)
}

func TestManager_Acquire_Conflict(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	_, err := mgr.Acquire("first")
	require.NoError(t, err)

	_, err = mgr.Acquire("second")
	require.Error(t, err)
	assert.ErrorIs(t, err, errclass.ErrLockConflict)
}

func TestManager_Renew(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	rec, err := mgr.Acquire("prune")
	require.NoError(t, err)

	renewed, err := mgr.Renew(rec.HolderNonce)
	require.NoError(t, err)
	assert.False(t, renewed.ExpiresAt.Before(rec.ExpiresAt))
}

func TestManager_Renew_WrongNonce(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	_, err := mgr.Acquire("prune")
	require.NoError(t, err)

	_, err = mgr.Renew("not-the-holder")
	assert.ErrorIs(t, err, errclass.ErrLockConflict)
}

func TestManager_Renew_NoLease(t *testing.T) {
	mgr := lock.NewManager(t.TempDir(), time.Minute)
	_, err := mgr.Renew("whatever")
	assert.ErrorIs(t, err, errclass.ErrLockConflict)
}

func TestManager_Steal_AfterExpiry(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, shortTTL)

	old, err := mgr.Acquire("first")
	require.NoError(t, err)

	time.Sleep(2 * shortTTL)

	// Regular acquire still refuses: the file exists.
	_, err = mgr.Acquire("second")
	assert.ErrorIs(t, err, errclass.ErrLockConflict)

	stolen, err := mgr.Steal("second")
	require.NoError(t, err)
	assert.NotEqual(t, old.HolderNonce, stolen.HolderNonce)
	assert.Equal(t, "second", stolen.Purpose)
}

func TestManager_Steal_NotExpired(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	_, err := mgr.Acquire("first")
	require.NoError(t, err)

	_, err = mgr.Steal("second")
	assert.ErrorIs(t, err, errclass.ErrLockConflict)
}

func TestManager_Steal_NoLease(t *testing.T) {
	mgr := lock.NewManager(t.TempDir(), time.Minute)

	rec, err := mgr.Steal("prune")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.HolderNonce)
}

func TestManager_Release(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	rec, err := mgr.Acquire("prune")
	require.NoError(t, err)
	require.NoError(t, mgr.Release(rec.HolderNonce))

	// Released: a second acquire succeeds.
	_, err = mgr.Acquire("again")
	assert.NoError(t, err)
}

func TestManager_Release_Idempotent(t *testing.T) {
	mgr := lock.NewManager(t.TempDir(), time.Minute)
	assert.NoError(t, mgr.Release("nobody"))
}

func TestManager_Release_WrongNonce(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, time.Minute)

	_, err := mgr.Acquire("prune")
	require.NoError(t, err)

	err = mgr.Release("not-the-holder")
	assert.ErrorIs(t, err, errclass.ErrLockConflict)
}

func TestManager_Status(t *testing.T) {
	dir := t.TempDir()
	mgr := lock.NewManager(dir, shortTTL)

	state, rec, err := mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LeaseStateFree, state)
	assert.Nil(t, rec)

	held, err := mgr.Acquire("prune")
	require.NoError(t, err)

	state, rec, err = mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LeaseStateHeld, state)
	require.NotNil(t, rec)
	assert.Equal(t, held.HolderNonce, rec.HolderNonce)

	time.Sleep(2 * shortTTL)

	state, _, err = mgr.Status()
	require.NoError(t, err)
	assert.Equal(t, model.LeaseStateExpired, state)
}
