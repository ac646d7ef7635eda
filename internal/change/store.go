// Package change implements the change store: per-file tracked diffs,
// pre-change backups, and review transitions that write results back to
// disk.
package change

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/patchgate-project/patchgate/internal/editor"
	"github.com/patchgate-project/patchgate/internal/integrity"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/fsutil"
	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/metrics"
	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/patchgate-project/patchgate/pkg/notify"
	"github.com/patchgate-project/patchgate/pkg/pathutil"
)

// Store tracks change records for files under review. A single mutex
// guards the record table; the conflict watcher and the notification
// path touch it from other goroutines. Records enter through Create and
// leave through Remove, Clear, or oldest-first eviction at capacity.
type Store struct {
	mu        sync.Mutex
	root      string
	cfg       *config.Config
	events    *notify.Dispatcher
	refresher editor.Refresher
	reg       *metrics.Registry
	records   map[model.ChangeID]*model.ChangeRecord
	order     []model.ChangeID
}

// NewStore creates a store rooted at the workspace directory. The
// dispatcher may be nil, in which case no events are emitted.
func NewStore(root string, cfg *config.Config, events *notify.Dispatcher) *Store {
	return &Store{
		root:      root,
		cfg:       cfg,
		events:    events,
		refresher: editor.Nop{},
		reg:       metrics.Default(),
		records:   make(map[model.ChangeID]*model.ChangeRecord),
	}
}

// SetRefresher attaches an editor to refresh after disk writes.
func (s *Store) SetRefresher(r editor.Refresher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r == nil {
		r = editor.Nop{}
	}
	s.refresher = r
}

// AcceptOptions adjusts Accept. Force waives the destructive-pattern
// confirmation and applies over a conflicted record.
type AcceptOptions struct {
	Force bool
}

// RejectOptions adjusts Reject. Force reverts a conflicted record even
// though the on-disk content no longer matches either version.
type RejectOptions struct {
	Force bool
}

// Create registers a proposed change and returns the new record. When
// auto-backup is enabled the original content is snapshotted first; a
// failed backup is logged and the record proceeds without one. The
// backup write is the only disk side effect.
func (s *Store) Create(path, original, modified string) (*model.ChangeRecord, error) {
	if path == "" {
		return nil, errclass.ErrInvalidProposal.WithMessage("empty filepath")
	}
	if err := pathutil.ValidatePathSafety(s.root, path); err != nil {
		return nil, err
	}

	now := time.Now()
	origLines := SplitLines(original)
	rec := &model.ChangeRecord{
		ID:              model.NewChangeID(),
		Filepath:        path,
		Filename:        model.BaseName(path),
		OriginalContent: original,
		ModifiedContent: modified,
		OriginalLines:   origLines,
		ModifiedLines:   SplitLines(modified),
		ContentHash:     integrity.HashLines(origLines),
		Status:          model.StatusPending,
		Timestamp:       now,
	}
	rec.Hunks = ComputeHunks(rec.OriginalLines, rec.ModifiedLines)
	rec.Stats = ComputeStats(rec.Hunks, len(rec.OriginalLines), len(rec.ModifiedLines))
	rec.RequiresConfirm = pathutil.MatchesAny(path, s.root, s.cfg.FilePatternsToConfirm)

	if s.cfg.AutoBackup {
		backupPath, err := writeBackup(s.cfg.ResolvedBackupDir(), path, original, now.Unix())
		if err != nil {
			logging.Warn("backup failed, tracking change without one", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		} else {
			rec.BackupPath = backupPath
			s.reg.Inc(metrics.BackupsCreated)
		}
	}

	s.mu.Lock()
	s.evictLocked()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	s.mu.Unlock()

	s.reg.Inc(metrics.ChangesCreated)
	logging.Debug("change created", map[string]any{
		"change_id": string(rec.ID),
		"path":      path,
		"hunks":     len(rec.Hunks),
	})
	return clone(rec), nil
}

// Accept writes the modified content over the target file. A record
// matching a confirm pattern, or one in conflict, demands Force; the
// file is untouched until every gate passes. A failed write marks the
// record failed and leaves it retryable.
func (s *Store) Accept(id string, opts AcceptOptions) error {
	s.mu.Lock()
	rec, err := s.actionableLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !opts.Force {
		if rec.RequiresConfirm && s.cfg.ConfirmDestructive {
			s.mu.Unlock()
			return errclass.ErrConfirmationRequired.WithMessagef("%s matches a confirm pattern", rec.Filepath)
		}
		if rec.Status == model.StatusConflict {
			s.mu.Unlock()
			return errclass.ErrConfirmationRequired.WithMessagef("%s was modified outside the review", rec.Filepath)
		}
	}

	if err := fsutil.AtomicWrite(rec.Filepath, []byte(rec.ModifiedContent), fileMode(rec.Filepath)); err != nil {
		rec.Status = model.StatusFailed
		rec.StatusMessage = err.Error()
		s.mu.Unlock()
		s.reg.Inc(metrics.ChangesFailed)
		return errclass.ErrIO.WithMessagef("apply %s: %v", rec.Filename, err)
	}
	rec.Status = model.StatusApplied
	rec.StatusMessage = ""
	s.mu.Unlock()

	s.reg.Inc(metrics.ChangesAccepted)
	s.publish(model.Event{Type: model.EventChangeAccepted, ChangeID: rec.ID, Status: string(model.StatusApplied)})
	s.refreshAsync(rec.Filepath)
	return nil
}

// Reject restores the original content to the target file. The revert
// is unconditional even when the file was never touched, so a reject
// always converges the disk to the pre-change state.
func (s *Store) Reject(id string, opts RejectOptions) error {
	s.mu.Lock()
	rec, err := s.actionableLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if rec.Status == model.StatusConflict && !opts.Force {
		s.mu.Unlock()
		return errclass.ErrConfirmationRequired.WithMessagef("%s was modified outside the review", rec.Filepath)
	}

	if err := fsutil.AtomicWrite(rec.Filepath, []byte(rec.OriginalContent), fileMode(rec.Filepath)); err != nil {
		rec.Status = model.StatusFailed
		rec.StatusMessage = err.Error()
		s.mu.Unlock()
		s.reg.Inc(metrics.ChangesFailed)
		return errclass.ErrIO.WithMessagef("revert %s: %v", rec.Filename, err)
	}
	rec.Status = model.StatusRejected
	rec.StatusMessage = ""
	s.mu.Unlock()

	s.reg.Inc(metrics.ChangesRejected)
	s.publish(model.Event{Type: model.EventChangeRejected, ChangeID: rec.ID, Status: string(model.StatusRejected)})
	s.refreshAsync(rec.Filepath)
	return nil
}

// Resolve marks a change as handled outside the store. No disk I/O.
func (s *Store) Resolve(id string) error {
	s.mu.Lock()
	rec, err := s.actionableLocked(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	rec.Status = model.StatusResolved
	rec.StatusMessage = ""
	s.mu.Unlock()

	s.reg.Inc(metrics.ChangesResolved)
	s.publish(model.Event{Type: model.EventChangeResolved, ChangeID: rec.ID, Status: string(model.StatusResolved)})
	return nil
}

// AcceptHunk marks one hunk accepted and returns the record to pending;
// the file as a whole stays undetermined and nothing is written back.
func (s *Store) AcceptHunk(id string, hunkIndex int) error {
	return s.markHunk(id, hunkIndex, model.StatusAccepted)
}

// RejectHunk marks one hunk rejected and returns the record to pending.
func (s *Store) RejectHunk(id string, hunkIndex int) error {
	return s.markHunk(id, hunkIndex, model.StatusRejected)
}

func (s *Store) markHunk(id string, hunkIndex int, status model.ChangeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[model.ChangeID(id)]
	if !ok {
		return errclass.ErrNotFound.WithMessagef("change %s", id)
	}
	if hunkIndex < 0 || hunkIndex >= len(rec.Hunks) {
		return errclass.ErrNotFound.WithMessagef("change %s has no hunk %d", model.ChangeID(id).ShortID(), hunkIndex)
	}
	rec.Hunks[hunkIndex].Status = status
	rec.Status = model.StatusPending
	return nil
}

// RestoreBackup copies the record's backup over the target file. The
// record status is left alone; restoring is an undo of disk state, not
// a review decision.
func (s *Store) RestoreBackup(id string) error {
	s.mu.Lock()
	rec, ok := s.records[model.ChangeID(id)]
	if !ok {
		s.mu.Unlock()
		return errclass.ErrNotFound.WithMessagef("change %s", id)
	}
	if rec.BackupPath == "" {
		s.mu.Unlock()
		return errclass.ErrNoBackup.WithMessagef("change %s has no backup", rec.ID.ShortID())
	}
	data, err := os.ReadFile(rec.BackupPath)
	if err != nil {
		s.mu.Unlock()
		return errclass.ErrIO.WithMessagef("read backup: %v", err)
	}
	if err := fsutil.AtomicWrite(rec.Filepath, data, fileMode(rec.Filepath)); err != nil {
		s.mu.Unlock()
		return errclass.ErrIO.WithMessagef("restore %s: %v", rec.Filename, err)
	}
	path := rec.Filepath
	s.mu.Unlock()

	s.reg.Inc(metrics.BackupsRestored)
	s.refreshAsync(path)
	return nil
}

// Get returns a copy of the record, reporting absence instead of
// erroring.
func (s *Store) Get(id string) (*model.ChangeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[model.ChangeID(id)]
	if !ok {
		return nil, false
	}
	return clone(rec), true
}

// GetAll returns every record in creation order, the same order
// eviction consumes.
func (s *Store) GetAll() []*model.ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.ChangeRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, clone(s.records[id]))
	}
	return out
}

// GetActive returns the most recently created record, or nil.
func (s *Store) GetActive() *model.ChangeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return nil
	}
	return clone(s.records[s.order[len(s.order)-1]])
}

// Find resolves a change by id prefix or path suffix. A query matching
// several records is an error naming the candidates.
func (s *Store) Find(query string) (*model.ChangeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matches []*model.ChangeRecord
	for _, id := range s.order {
		rec := s.records[id]
		if strings.HasPrefix(string(rec.ID), query) || strings.HasSuffix(rec.Filepath, query) {
			matches = append(matches, rec)
		}
	}
	switch len(matches) {
	case 0:
		return nil, errclass.ErrNotFound.WithMessagef("no change matches %q", query)
	case 1:
		return clone(matches[0]), nil
	default:
		ids := make([]string, len(matches))
		for i, rec := range matches {
			ids[i] = rec.ID.ShortID()
		}
		return nil, errclass.ErrAmbiguous.WithMessagef("%q matches changes %s", query, strings.Join(ids, ", "))
	}
}

// Stats aggregates record counts by status plus a per-file summary row
// for each tracked change.
func (s *Store) Stats() *model.StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &model.StoreStats{
		Total:    len(s.order),
		ByStatus: make(map[model.ChangeStatus]int),
		Files:    make([]model.FileSummary, 0, len(s.order)),
	}
	for _, id := range s.order {
		rec := s.records[id]
		stats.ByStatus[rec.Status]++
		stats.Files = append(stats.Files, model.FileSummary{
			ChangeID: rec.ID,
			Filepath: rec.Filepath,
			Status:   rec.Status,
			Stats:    rec.Stats,
		})
	}
	return stats
}

// MarkConflict flags a pending record whose file changed on disk
// outside the review. Any other state is left alone.
func (s *Store) MarkConflict(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[model.ChangeID(id)]
	if !ok || rec.Status != model.StatusPending {
		return false
	}
	rec.Status = model.StatusConflict
	s.reg.Inc(metrics.ChangesConflict)
	logging.Warn("change conflicts with on-disk edits", map[string]any{
		"change_id": string(rec.ID),
		"path":      rec.Filepath,
	})
	return true
}

// Remove discards a record. Its backup stays on disk for restore.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cid := model.ChangeID(id)
	if _, ok := s.records[cid]; !ok {
		return false
	}
	delete(s.records, cid)
	for i, oid := range s.order {
		if oid == cid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear discards every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[model.ChangeID]*model.ChangeRecord)
	s.order = nil
}

// Len reports the number of tracked records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// actionableLocked fetches a record that may still transition. Callers
// hold s.mu.
func (s *Store) actionableLocked(id string) (*model.ChangeRecord, error) {
	rec, ok := s.records[model.ChangeID(id)]
	if !ok {
		return nil, errclass.ErrNotFound.WithMessagef("change %s", id)
	}
	if !rec.Status.Actionable() {
		return nil, errclass.ErrAlreadyResolved.WithMessagef("change %s is %s", rec.ID.ShortID(), rec.Status)
	}
	return rec, nil
}

// evictLocked drops oldest records while the store sits at capacity.
// MaxChanges <= 0 disables the cap.
func (s *Store) evictLocked() {
	max := s.cfg.MaxChanges
	if max <= 0 {
		return
	}
	for len(s.order) >= max {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
		s.reg.Inc(metrics.ChangesEvicted)
		logging.Debug("evicted oldest change", map[string]any{"change_id": string(oldest)})
	}
}

func (s *Store) publish(ev model.Event) {
	if s.events != nil {
		s.events.Publish(ev)
	}
}

// refreshAsync asks the editor to re-read the file. Fire-and-forget:
// never part of the operation's success contract.
func (s *Store) refreshAsync(path string) {
	s.mu.Lock()
	r := s.refresher
	s.mu.Unlock()
	go func() {
		if err := r.Refresh(path); err != nil {
			logging.Debug("editor refresh failed", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
	}()
}

// clone copies a record for return to callers. Content and line slices
// never change after creation and stay shared; hunk statuses do change,
// so the hunk slice is copied.
func clone(rec *model.ChangeRecord) *model.ChangeRecord {
	out := *rec
	out.Hunks = append([]model.Hunk(nil), rec.Hunks...)
	return &out
}

// fileMode preserves the target's permissions across a rewrite,
// defaulting for files not yet on disk.
func fileMode(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0644
}
