package model

import "time"

// LeaseRecord is stored as lease.json inside the backup directory it
// guards. Only maintenance over the shared directory takes the lease;
// review operations never do.
type LeaseRecord struct {
	Dir         string    `json:"dir"`
	HolderNonce string    `json:"holder_nonce"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Purpose     string    `json:"purpose,omitempty"`
}

// IsExpired returns true if the lease has expired.
func (l *LeaseRecord) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LeaseState describes the current state of a backup-directory lease.
type LeaseState string

const (
	LeaseStateFree    LeaseState = "free"
	LeaseStateHeld    LeaseState = "held"
	LeaseStateExpired LeaseState = "expired"
)
