// Package session groups the file changes of one approval request into
// an edit session and tracks the reviewer's per-file decisions. The
// session layer owns selection and decision state; content, hunks, and
// disk writes stay with the change store.
package session

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/internal/workspace"
	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/logging"
	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/patchgate-project/patchgate/pkg/notify"
	"github.com/patchgate-project/patchgate/pkg/pathutil"
	"github.com/patchgate-project/patchgate/pkg/progress"
)

// Manager owns the session table, keyed by permission id. All decision
// operations delegate disk work to the change store and only record the
// outcome here.
type Manager struct {
	mu       sync.Mutex
	ws       *workspace.Workspace
	store    *change.Store
	events   *notify.Dispatcher
	sessions map[string]*model.EditSession
	order    []string
}

// NewManager creates a manager over the given store. The dispatcher may
// be nil, in which case no events are emitted.
func NewManager(ws *workspace.Workspace, store *change.Store, events *notify.Dispatcher) *Manager {
	return &Manager{
		ws:       ws,
		store:    store,
		events:   events,
		sessions: make(map[string]*model.EditSession),
	}
}

// RegisterOptions carries the optional parts of a proposal.
type RegisterOptions struct {
	MessageID string
	Data      map[string]any
	Metadata  map[string]any
	Progress  progress.Callback
}

// Register creates a session for a proposal's files. Each file gets a
// change record in the store; re-registering a permission id replaces
// the previous session after emitting edit_removed for it.
func (m *Manager) Register(permissionID, sessionID string, files []model.FileData, opts RegisterOptions) (*model.EditSession, error) {
	if permissionID == "" {
		return nil, errclass.ErrInvalidProposal.WithMessage("empty permission_id")
	}
	if err := pathutil.ValidateName(permissionID); err != nil {
		return nil, err
	}

	report := opts.Progress
	if report == nil {
		report = progress.Noop
	}

	entries := make([]*model.FileEntry, 0, len(files))
	created := make([]model.ChangeID, 0, len(files))
	for i, fd := range files {
		rel := fd.RelativePath
		if rel == "" {
			rel = m.ws.Rel(fd.Filepath)
		}

		rec, err := m.store.Create(fd.Filepath, fd.Before, fd.After)
		if err != nil {
			for _, id := range created {
				m.store.Remove(string(id))
			}
			return nil, err
		}
		created = append(created, rec.ID)

		entries = append(entries, &model.FileEntry{
			Index:        i + 1,
			Filepath:     fd.Filepath,
			RelativePath: rel,
			Before:       fd.Before,
			After:        fd.After,
			ChangeID:     rec.ID,
			Status:       model.FilePending,
			Stats:        entryStats(fd, rec),
			DiffLines:    diffLines(fd, rel),
			FileType:     fileType(fd),
		})
		report("register", i+1, len(files), rel)
	}

	selected := 0
	if len(entries) > 0 {
		selected = 1
	}
	sess := &model.EditSession{
		PermissionID:  permissionID,
		SessionID:     sessionID,
		MessageID:     opts.MessageID,
		Files:         entries,
		SelectedFile:  selected,
		ExpandedFiles: make(map[int]bool),
		Status:        model.SessionPending,
		Timestamp:     time.Now(),
		Data:          opts.Data,
		Metadata:      opts.Metadata,
	}

	m.mu.Lock()
	if _, exists := m.sessions[permissionID]; exists {
		m.removeLocked(permissionID)
	}
	m.sessions[permissionID] = sess
	m.order = append(m.order, permissionID)
	m.mu.Unlock()

	m.publish(model.Event{
		Type:         model.EventEditPending,
		PermissionID: permissionID,
		FileCount:    len(entries),
	})
	logging.Debug("edit session registered", map[string]any{
		"permission_id": permissionID,
		"files":         len(entries),
	})
	return cloneSession(sess), nil
}

// Get returns the session for a permission id.
func (m *Manager) Get(permissionID string) (*model.EditSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		return nil, false
	}
	return cloneSession(sess), true
}

// ListAll returns every session ordered by creation time ascending.
func (m *Manager) ListAll() []*model.EditSession {
	return m.list(func(*model.EditSession) bool { return true })
}

// ListActive returns sessions still pending.
func (m *Manager) ListActive() []*model.EditSession {
	return m.list(func(s *model.EditSession) bool { return s.Status == model.SessionPending })
}

// ListForMessage returns sessions attached to one message.
func (m *Manager) ListForMessage(messageID string) []*model.EditSession {
	return m.list(func(s *model.EditSession) bool { return s.MessageID == messageID })
}

// ListOrphans returns sessions with no message attached.
func (m *Manager) ListOrphans() []*model.EditSession {
	return m.list(func(s *model.EditSession) bool { return s.MessageID == "" })
}

func (m *Manager) list(keep func(*model.EditSession) bool) []*model.EditSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.EditSession, 0, len(m.order))
	for _, id := range m.order {
		if sess := m.sessions[id]; keep(sess) {
			out = append(out, cloneSession(sess))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// MoveSelection moves the cursor one file up or down with circular
// wraparound. False when the session is missing, not pending, or empty.
func (m *Manager) MoveSelection(permissionID string, dir model.Direction) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok || sess.Status != model.SessionPending || len(sess.Files) == 0 {
		return false
	}
	switch dir {
	case model.SelectionUp:
		sess.SelectedFile--
		if sess.SelectedFile < 1 {
			sess.SelectedFile = len(sess.Files)
		}
	case model.SelectionDown:
		sess.SelectedFile++
		if sess.SelectedFile > len(sess.Files) {
			sess.SelectedFile = 1
		}
	default:
		return false
	}
	return true
}

// MoveSelectionTo sets the cursor to an absolute 1-based index.
func (m *Manager) MoveSelectionTo(permissionID string, index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok || sess.Status != model.SessionPending {
		return false
	}
	if index < 1 || index > len(sess.Files) {
		return false
	}
	sess.SelectedFile = index
	return true
}

// SelectedFile returns the entry under the cursor.
func (m *Manager) SelectedFile(permissionID string) (*model.FileEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok || sess.SelectedFile < 1 || sess.SelectedFile > len(sess.Files) {
		return nil, false
	}
	entry := *sess.Files[sess.SelectedFile-1]
	return &entry, true
}

// AcceptFile applies one file's change through the store. Force is
// always passed: the human explicitly acted on this file, so the
// confirm-pattern gate does not apply a second time.
func (m *Manager) AcceptFile(permissionID string, index int) error {
	return m.decideFile(permissionID, index, func(entry *model.FileEntry) error {
		if err := m.store.Accept(string(entry.ChangeID), change.AcceptOptions{Force: true}); err != nil {
			return err
		}
		entry.Status = m.decidedStatus(entry.ChangeID, model.FileAccepted)
		return nil
	})
}

// RejectFile reverts one file's change through the store.
func (m *Manager) RejectFile(permissionID string, index int) error {
	return m.decideFile(permissionID, index, func(entry *model.FileEntry) error {
		if err := m.store.Reject(string(entry.ChangeID), change.RejectOptions{Force: true}); err != nil {
			return err
		}
		entry.Status = m.decidedStatus(entry.ChangeID, model.FileRejected)
		return nil
	})
}

// ResolveFile marks one file handled outside the review.
func (m *Manager) ResolveFile(permissionID string, index int) error {
	return m.decideFile(permissionID, index, func(entry *model.FileEntry) error {
		if err := m.store.Resolve(string(entry.ChangeID)); err != nil {
			return err
		}
		entry.Status = m.decidedStatus(entry.ChangeID, model.FileResolved)
		return nil
	})
}

// decidedStatus reads the record's terminal status back through the
// FileStatusFor mapping. The fallback covers records the store has
// already evicted.
func (m *Manager) decidedStatus(id model.ChangeID, fallback model.FileStatus) model.FileStatus {
	rec, ok := m.store.Get(string(id))
	if !ok {
		return fallback
	}
	if status, mapped := model.FileStatusFor(rec.Status); mapped {
		return status
	}
	return fallback
}

// decideFile runs one decision against a pending entry. The entry's
// status changes only after the store succeeds; on failure it stays
// pending so the decision can be retried.
func (m *Manager) decideFile(permissionID string, index int, decide func(*model.FileEntry) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		return errclass.ErrNotFound.WithMessagef("session %s", permissionID)
	}
	if index < 1 || index > len(sess.Files) {
		return errclass.ErrNotFound.WithMessagef("session %s has no file %d", permissionID, index)
	}
	entry := sess.Files[index-1]
	if entry.Status != model.FilePending {
		return errclass.ErrAlreadyResolved.WithMessagef("file %s is %s", entry.RelativePath, entry.Status)
	}
	return decide(entry)
}

// AcceptAll accepts every pending file, best-effort. True when the
// session exists and no per-file decision failed.
func (m *Manager) AcceptAll(permissionID string) bool {
	return m.decideAll(permissionID, m.AcceptFile)
}

// RejectAll rejects every pending file, best-effort.
func (m *Manager) RejectAll(permissionID string) bool {
	return m.decideAll(permissionID, m.RejectFile)
}

// ResolveAll marks every pending file resolved, best-effort.
func (m *Manager) ResolveAll(permissionID string) bool {
	return m.decideAll(permissionID, m.ResolveFile)
}

func (m *Manager) decideAll(permissionID string, decide func(string, int) error) bool {
	m.mu.Lock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	var pending []int
	for _, entry := range sess.Files {
		if entry.Status == model.FilePending {
			pending = append(pending, entry.Index)
		}
	}
	m.mu.Unlock()

	allOK := true
	for _, index := range pending {
		if err := decide(permissionID, index); err != nil {
			allOK = false
			logging.Warn("bulk decision failed for file", map[string]any{
				"permission_id": permissionID,
				"file_index":    index,
				"error":         err.Error(),
			})
		}
	}
	return allOK
}

// ToggleInlineDiff flips whether a file shows its inline diff.
func (m *Manager) ToggleInlineDiff(permissionID string, index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok || index < 1 || index > len(sess.Files) {
		return false
	}
	if sess.ExpandedFiles[index] {
		delete(sess.ExpandedFiles, index)
	} else {
		sess.ExpandedFiles[index] = true
	}
	return true
}

// AreAllResolved reports whether no file is still pending. Unknown
// sessions are not resolved.
func (m *Manager) AreAllResolved(permissionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		return false
	}
	for _, entry := range sess.Files {
		if entry.Status == model.FilePending {
			return false
		}
	}
	return true
}

// Resolution summarizes the session's decisions: pending while any file
// is undecided, a uniform terminal value when every file agrees, mixed
// otherwise.
func (m *Manager) Resolution(permissionID string) (model.Resolution, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		return "", false
	}
	counts := make(map[model.FileStatus]int)
	for _, entry := range sess.Files {
		counts[entry.Status]++
	}
	total := len(sess.Files)
	if total == 0 || counts[model.FilePending] > 0 {
		return model.ResolutionPending, true
	}
	switch total {
	case counts[model.FileAccepted]:
		return model.ResolutionAllAccepted, true
	case counts[model.FileRejected]:
		return model.ResolutionAllRejected, true
	case counts[model.FileResolved]:
		return model.ResolutionAllResolved, true
	}
	return model.ResolutionMixed, true
}

// MarkSent records that the session's outcome went back to the
// requester. Silent no-op for unknown sessions.
func (m *Manager) MarkSent(permissionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[permissionID]
	if !ok {
		return
	}
	sess.Status = model.SessionSent
	now := time.Now()
	sess.ResolvedAt = &now
}

// Clear removes one session, emitting edit_removed.
func (m *Manager) Clear(permissionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[permissionID]; !ok {
		return false
	}
	m.removeLocked(permissionID)
	return true
}

// ClearAll discards every session, emitting edit_removed for each.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range append([]string(nil), m.order...) {
		m.removeLocked(id)
	}
}

// removeLocked drops one session and emits edit_removed. Callers hold
// m.mu.
func (m *Manager) removeLocked(permissionID string) {
	delete(m.sessions, permissionID)
	for i, id := range m.order {
		if id == permissionID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.publish(model.Event{Type: model.EventEditRemoved, PermissionID: permissionID})
}

func (m *Manager) publish(ev model.Event) {
	if m.events != nil {
		m.events.Publish(ev)
	}
}

// entryStats prefers the proposal's own counts when it supplied any,
// falling back to the store's computed stats.
func entryStats(fd model.FileData, rec *model.ChangeRecord) model.LineStats {
	if fd.Additions > 0 || fd.Deletions > 0 {
		return model.LineStats{Added: fd.Additions, Removed: fd.Deletions}
	}
	return rec.Stats
}

// diffLines returns the display diff: the proposal's own rendering when
// present, otherwise a unified diff of the before/after content.
func diffLines(fd model.FileData, rel string) []string {
	if fd.Diff != "" {
		return strings.Split(strings.TrimRight(fd.Diff, "\n"), "\n")
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(fd.Before),
		B:        difflib.SplitLines(fd.After),
		FromFile: "a/" + rel,
		ToFile:   "b/" + rel,
		Context:  3,
	})
	if err != nil || text == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(text, "\n"), "\n")
}

func fileType(fd model.FileData) string {
	if fd.Type != "" {
		return fd.Type
	}
	return strings.TrimPrefix(filepath.Ext(fd.Filepath), ".")
}

func cloneSession(s *model.EditSession) *model.EditSession {
	out := *s
	out.Files = make([]*model.FileEntry, len(s.Files))
	for i, entry := range s.Files {
		copied := *entry
		out.Files[i] = &copied
	}
	out.ExpandedFiles = make(map[int]bool, len(s.ExpandedFiles))
	for k, v := range s.ExpandedFiles {
		out.ExpandedFiles[k] = v
	}
	if s.ResolvedAt != nil {
		at := *s.ResolvedAt
		out.ResolvedAt = &at
	}
	return &out
}
