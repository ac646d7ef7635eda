package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"
)

// ChangeID is the unique identifier for a change record: <unix_ms>-<rand8hex>
type ChangeID string

// NewChangeID generates a new unique change ID.
func NewChangeID() ChangeID {
	ts := time.Now().UnixMilli()
	var randBytes [4]byte
	if _, err := rand.Read(randBytes[:]); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return ChangeID(fmt.Sprintf("%013d-%s", ts, hex.EncodeToString(randBytes[:])))
}

// ShortID returns the first 8 characters for display.
func (id ChangeID) ShortID() string {
	s := string(id)
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}

// String returns the full change ID as string.
func (id ChangeID) String() string {
	return string(id)
}

// HashValue is a SHA-256 hash stored as hex string.
type HashValue string

// ChangeStatus is the full lifecycle vocabulary of a change record.
type ChangeStatus string

const (
	StatusPending  ChangeStatus = "pending"
	StatusAccepted ChangeStatus = "accepted"
	StatusRejected ChangeStatus = "rejected"
	StatusResolved ChangeStatus = "resolved"
	StatusApplied  ChangeStatus = "applied"
	StatusFailed   ChangeStatus = "failed"
	StatusConflict ChangeStatus = "conflict"
)

// Terminal reports whether the status admits no further transitions.
// A failed change stays actionable so a second accept can retry the write.
func (s ChangeStatus) Terminal() bool {
	switch s {
	case StatusApplied, StatusRejected, StatusResolved:
		return true
	}
	return false
}

// Actionable reports whether accept, reject, or resolve may still run.
func (s ChangeStatus) Actionable() bool {
	switch s {
	case StatusPending, StatusFailed, StatusConflict:
		return true
	}
	return false
}

// LineStats counts the line-level shape of a change.
type LineStats struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// Total returns the number of lines the change touches.
func (s LineStats) Total() int {
	return s.Added + s.Removed + s.Modified
}

// Hunk is a maximal contiguous block of differing lines between the two
// versions of a file. StartLine and EndLine are 1-based and inclusive in
// the common line-index space of both versions. The two line slices have
// equal length; the shorter side is padded with empty strings.
type Hunk struct {
	StartLine     int          `json:"start_line"`
	EndLine       int          `json:"end_line"`
	OriginalLines []string     `json:"original_lines"`
	ModifiedLines []string     `json:"modified_lines"`
	Status        ChangeStatus `json:"status"`
}

// LineCount returns the number of line pairs the hunk captured.
func (h Hunk) LineCount() int {
	return len(h.OriginalLines)
}

// ChangeRecord is the durable unit of tracked diff, backup, and status
// for one file. Content, lines, hunks, and stats are fixed at creation
// and never recomputed; only Status, StatusMessage, and per-hunk status
// change afterwards.
type ChangeRecord struct {
	ID              ChangeID     `json:"id"`
	Filepath        string       `json:"filepath"`
	Filename        string       `json:"filename"`
	OriginalContent string       `json:"original_content"`
	ModifiedContent string       `json:"modified_content"`
	OriginalLines   []string     `json:"-"`
	ModifiedLines   []string     `json:"-"`
	BackupPath      string       `json:"backup_path,omitempty"`
	ContentHash     HashValue    `json:"content_hash"`
	Stats           LineStats    `json:"stats"`
	Hunks           []Hunk       `json:"hunks"`
	Status          ChangeStatus `json:"status"`
	RequiresConfirm bool         `json:"requires_confirm"`
	StatusMessage   string       `json:"status_message,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
}

// BaseName derives the display filename from a target path.
func BaseName(path string) string {
	return filepath.Base(path)
}

// FileSummary is one per-file row in aggregate store statistics.
type FileSummary struct {
	ChangeID ChangeID     `json:"change_id"`
	Filepath string       `json:"filepath"`
	Status   ChangeStatus `json:"status"`
	Stats    LineStats    `json:"stats"`
}

// StoreStats aggregates the store's records by status.
type StoreStats struct {
	Total    int                  `json:"total"`
	ByStatus map[ChangeStatus]int `json:"by_status"`
	Files    []FileSummary        `json:"files"`
}
