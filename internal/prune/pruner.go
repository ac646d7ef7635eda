// Package prune reclaims old backup files from the backup directory.
// Planning and execution are split so --dry-run can show the plan
// without deleting anything.
package prune

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/model"
)

// Candidate is one backup file the plan would delete.
type Candidate struct {
	Path      string    `json:"path"`
	Base      string    `json:"base"`
	TakenAt   time.Time `json:"taken_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// Plan lists what a prune run would delete and what it protects.
type Plan struct {
	CreatedAt      time.Time   `json:"created_at"`
	Cutoff         time.Time   `json:"cutoff"`
	ToDelete       []Candidate `json:"to_delete"`
	ProtectedCount int         `json:"protected_count"`
	EstimatedBytes int64       `json:"estimated_bytes"`
}

// Pruner scans one backup directory.
type Pruner struct {
	dir string
}

// NewPruner creates a pruner over the backup directory.
func NewPruner(dir string) *Pruner {
	return &Pruner{dir: dir}
}

// ProtectedSet collects the backup paths still referenced by live
// change records; those survive any prune regardless of age.
func ProtectedSet(records []*model.ChangeRecord) map[string]bool {
	protected := make(map[string]bool)
	for _, rec := range records {
		if rec.BackupPath != "" {
			protected[rec.BackupPath] = true
		}
	}
	return protected
}

// Plan computes the deletion set: every parseable backup older than
// maxAge and not in the protected set. A missing directory yields an
// empty plan.
func (p *Pruner) Plan(maxAge time.Duration, protected map[string]bool) (*Plan, error) {
	now := time.Now()
	plan := &Plan{
		CreatedAt:      now,
		Cutoff:         now.Add(-maxAge),
		ProtectedCount: len(protected),
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return plan, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base, ts, ok := change.ParseBackupName(entry.Name())
		if !ok {
			continue
		}
		takenAt := time.Unix(ts, 0)
		if !takenAt.Before(plan.Cutoff) {
			continue
		}
		path := filepath.Join(p.dir, entry.Name())
		if protected[path] {
			continue
		}
		var size int64
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		plan.ToDelete = append(plan.ToDelete, Candidate{
			Path:      path,
			Base:      base,
			TakenAt:   takenAt,
			SizeBytes: size,
		})
		plan.EstimatedBytes += size
	}
	return plan, nil
}

// Run deletes the planned files, warn-and-continue on failures.
// Returns the number actually deleted.
func (p *Pruner) Run(plan *Plan) (int, error) {
	if plan == nil {
		return 0, fmt.Errorf("nil plan")
	}
	deleted := 0
	for _, cand := range plan.ToDelete {
		if err := os.Remove(cand.Path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to delete backup", map[string]any{
				"path":  cand.Path,
				"error": err.Error(),
			})
			continue
		}
		deleted++
	}
	logging.Info("pruned backups", map[string]any{
		"deleted": deleted,
		"planned": len(plan.ToDelete),
	})
	return deleted, nil
}
