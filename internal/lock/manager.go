// Package lock serializes maintenance over a shared backup directory
// with a lease file: acquire is an O_CREAT|O_EXCL create, expired
// leases are taken over through an explicit steal.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/fsutil"
	"github.com/patchgate-project/patchgate/pkg/model"
)

const leaseFile = "lease.json"

// DefaultTTL bounds how long a pruner may hold the directory before
// another one may steal the lease.
const DefaultTTL = 5 * time.Minute

// Manager hands out the lease for one backup directory.
type Manager struct {
	dir string
	ttl time.Duration
	mu  sync.Mutex
}

// NewManager creates a lease manager for dir. A non-positive ttl falls
// back to DefaultTTL.
func NewManager(dir string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{dir: dir, ttl: ttl}
}

// Acquire attempts to take the lease atomically.
func (m *Manager) Acquire(purpose string) (*model.LeaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.leasePath()
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			rec, readErr := m.readLease(path)
			if readErr != nil {
				return nil, fmt.Errorf("read existing lease: %w", readErr)
			}
			if rec.IsExpired(time.Now()) {
				return nil, errclass.ErrLockConflict.WithMessage("lease expired, use steal")
			}
			return nil, errclass.ErrLockConflict.WithMessagef("backup dir %s is leased", m.dir)
		}
		return nil, fmt.Errorf("create lease: %w", err)
	}
	defer file.Close()

	now := time.Now().UTC()
	rec := &model.LeaseRecord{
		Dir:         m.dir,
		HolderNonce: uuid.NewString(),
		AcquiredAt:  now,
		ExpiresAt:   now.Add(m.ttl),
		Purpose:     purpose,
	}

	if err := m.writeLease(file, rec); err != nil {
		os.Remove(path)
		return nil, err
	}
	return rec, nil
}

// Renew extends the lease for its current holder.
func (m *Manager) Renew(holderNonce string) (*model.LeaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.leasePath()
	rec, err := m.readLease(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errclass.ErrLockConflict.WithMessage("no lease held")
		}
		return nil, fmt.Errorf("read lease: %w", err)
	}
	if rec.IsExpired(time.Now()) {
		return nil, errclass.ErrLockConflict.WithMessage("lease has expired")
	}
	if rec.HolderNonce != holderNonce {
		return nil, errclass.ErrLockConflict.WithMessage("nonce mismatch")
	}

	rec.ExpiresAt = time.Now().UTC().Add(m.ttl)
	if err := m.updateLease(path, rec); err != nil {
		return nil, fmt.Errorf("update lease: %w", err)
	}
	return rec, nil
}

// Steal takes over a lease whose previous holder let it expire.
func (m *Manager) Steal(purpose string) (*model.LeaseRecord, error) {
	m.mu.Lock()

	path := m.leasePath()
	rec, err := m.readLease(path)
	if err != nil {
		m.mu.Unlock()
		if os.IsNotExist(err) {
			return m.Acquire(purpose)
		}
		return nil, fmt.Errorf("read lease: %w", err)
	}
	defer m.mu.Unlock()

	if !rec.IsExpired(time.Now()) {
		return nil, errclass.ErrLockConflict.WithMessage("lease not expired yet")
	}

	now := time.Now().UTC()
	newRec := &model.LeaseRecord{
		Dir:         m.dir,
		HolderNonce: uuid.NewString(),
		AcquiredAt:  now,
		ExpiresAt:   now.Add(m.ttl),
		Purpose:     purpose,
	}
	if err := m.updateLease(path, newRec); err != nil {
		return nil, fmt.Errorf("steal lease: %w", err)
	}
	return newRec, nil
}

// Release frees the lease. Releasing an already-free lease is not an
// error; releasing someone else's is.
func (m *Manager) Release(holderNonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.leasePath()
	rec, err := m.readLease(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lease: %w", err)
	}
	if rec.HolderNonce != holderNonce {
		return errclass.ErrLockConflict.WithMessage("cannot release: nonce mismatch")
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lease: %w", err)
	}
	return nil
}

// Status returns the current lease state.
func (m *Manager) Status() (model.LeaseState, *model.LeaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.readLease(m.leasePath())
	if err != nil {
		if os.IsNotExist(err) {
			return model.LeaseStateFree, nil, nil
		}
		return model.LeaseStateFree, nil, fmt.Errorf("read lease: %w", err)
	}
	if rec.IsExpired(time.Now()) {
		return model.LeaseStateExpired, rec, nil
	}
	return model.LeaseStateHeld, rec, nil
}

func (m *Manager) leasePath() string {
	return filepath.Join(m.dir, leaseFile)
}

func (m *Manager) readLease(path string) (*model.LeaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec model.LeaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse lease: %w", err)
	}
	return &rec, nil
}

func (m *Manager) writeLease(file *os.File, rec *model.LeaseRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lease: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("write lease: %w", err)
	}
	return file.Sync()
}

func (m *Manager) updateLease(path string, rec *model.LeaseRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal lease: %w", err)
	}
	return fsutil.AtomicWrite(path, data, 0644)
}
