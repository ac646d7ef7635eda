package patchgate

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/patchgate-project/patchgate/internal/change"
	"github.com/patchgate-project/patchgate/internal/editor"
	"github.com/patchgate-project/patchgate/internal/history"
	"github.com/patchgate-project/patchgate/internal/lock"
	"github.com/patchgate-project/patchgate/internal/proposal"
	"github.com/patchgate-project/patchgate/internal/prune"
	"github.com/patchgate-project/patchgate/internal/session"
	"github.com/patchgate-project/patchgate/internal/watch"
	"github.com/patchgate-project/patchgate/internal/workspace"
	"github.com/patchgate-project/patchgate/pkg/config"
	"github.com/patchgate-project/patchgate/pkg/metrics"
	"github.com/patchgate-project/patchgate/pkg/model"
	"github.com/patchgate-project/patchgate/pkg/notify"
	"github.com/patchgate-project/patchgate/pkg/webhook"
)

// Options configures a new Engine.
type Options struct {
	Root           string           // workspace root; empty discovers from CWD
	Config         *config.Config   // nil loads .patchgate.yaml from the root
	Sinks          []notify.Sink    // extra event sinks beyond history
	Refresher      editor.Refresher // nil disables editor refresh
	WatchConflicts bool             // force-enable the conflict watcher
}

// Engine wires the change store, session manager, and collaborators
// for one workspace.
type Engine struct {
	ws          *workspace.Workspace
	cfg         *config.Config
	store       *change.Store
	sessions    *session.Manager
	events      *notify.Dispatcher
	history     *history.Recorder
	hook        *webhook.Client
	watcher     *watch.Watcher
	watchCancel context.CancelFunc
	refresher   editor.Refresher
}

// New creates an engine rooted at opts.Root.
func New(opts Options) (*Engine, error) {
	start := opts.Root
	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get cwd: %w", err)
		}
		start = cwd
	}
	ws, err := workspace.Discover(start)
	if err != nil {
		return nil, fmt.Errorf("discover workspace: %w", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.Load(ws.Root)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	eng := &Engine{
		ws:      ws,
		cfg:     cfg,
		history: history.NewRecorder(history.DefaultCapacity),
	}

	sinks := append([]notify.Sink{eng.history}, opts.Sinks...)
	if cfg.Notify.WebhookURL != "" {
		hookCfg := webhook.DefaultConfig()
		hookCfg.URL = cfg.Notify.WebhookURL
		hookCfg.Secret = cfg.Notify.WebhookSecret
		hookCfg.Timeout = time.Duration(cfg.WebhookTimeoutSeconds()) * time.Second
		eng.hook = webhook.NewClient(hookCfg)
		sinks = append(sinks, eng.hook)
	}
	eng.events = notify.NewDispatcher(sinks...)

	eng.store = change.NewStore(ws.Root, cfg, eng.events)
	if opts.Refresher != nil {
		eng.refresher = opts.Refresher
		eng.store.SetRefresher(opts.Refresher)
	}
	eng.sessions = session.NewManager(ws, eng.store, eng.events)

	if opts.WatchConflicts || cfg.WatchConflicts {
		watcher, err := watch.NewWatcher(eng.store)
		if err != nil {
			return nil, fmt.Errorf("start conflict watcher: %w", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		eng.watcher = watcher
		eng.watchCancel = cancel
		go watcher.Run(ctx)
	}

	return eng, nil
}

// Root returns the absolute path to the workspace root.
func (e *Engine) Root() string {
	return e.ws.Root
}

// Config returns the effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Register creates an edit session for the given files and tracks one
// change record per file. Pending files enter the conflict watcher
// when it is running.
func (e *Engine) Register(_ context.Context, permissionID, sessionID string, files []model.FileData, opts session.RegisterOptions) (*model.EditSession, error) {
	sess, err := e.sessions.Register(permissionID, sessionID, files, opts)
	if err != nil {
		return nil, err
	}
	if e.watcher != nil {
		for _, entry := range sess.Files {
			if err := e.watcher.Track(entry.ChangeID, entry.Filepath); err != nil {
				return sess, fmt.Errorf("watch %s: %w", entry.RelativePath, err)
			}
		}
	}
	return sess, nil
}

// RegisterProposal parses a proposal file (JSON or markdown) and
// registers it as a session.
func (e *Engine) RegisterProposal(ctx context.Context, path string, opts session.RegisterOptions) (*model.EditSession, error) {
	prop, err := proposal.ParseFile(path, e.ws.Root)
	if err != nil {
		return nil, err
	}
	opts.MessageID = firstNonEmpty(opts.MessageID, prop.MessageID)
	return e.Register(ctx, prop.PermissionID, prop.SessionID, prop.Files, opts)
}

// Accept applies a change's proposed content to disk.
func (e *Engine) Accept(_ context.Context, changeID string, force bool) error {
	err := e.store.Accept(changeID, change.AcceptOptions{Force: force})
	if err == nil {
		e.untrack(changeID)
	}
	return err
}

// Reject reverts a change's target file to the original content.
func (e *Engine) Reject(_ context.Context, changeID string, force bool) error {
	err := e.store.Reject(changeID, change.RejectOptions{Force: force})
	if err == nil {
		e.untrack(changeID)
	}
	return err
}

// Resolve marks a change handled outside the store.
func (e *Engine) Resolve(_ context.Context, changeID string) error {
	err := e.store.Resolve(changeID)
	if err == nil {
		e.untrack(changeID)
	}
	return err
}

// RestoreBackup rewrites a change's target file from its backup.
func (e *Engine) RestoreBackup(_ context.Context, changeID string) error {
	return e.store.RestoreBackup(changeID)
}

// Change returns one tracked change record.
func (e *Engine) Change(_ context.Context, changeID string) (*model.ChangeRecord, bool) {
	return e.store.Get(changeID)
}

// Changes returns all tracked change records in creation order.
func (e *Engine) Changes(_ context.Context) []*model.ChangeRecord {
	return e.store.GetAll()
}

// ActiveChange returns the most recently created record, or nil.
func (e *Engine) ActiveChange(_ context.Context) *model.ChangeRecord {
	return e.store.GetActive()
}

// FindChange resolves a change by id prefix or path suffix.
func (e *Engine) FindChange(_ context.Context, query string) (*model.ChangeRecord, error) {
	return e.store.Find(query)
}

// Session returns one edit session.
func (e *Engine) Session(_ context.Context, permissionID string) (*model.EditSession, bool) {
	return e.sessions.Get(permissionID)
}

// Sessions returns all sessions ordered by creation time.
func (e *Engine) Sessions(_ context.Context) []*model.EditSession {
	return e.sessions.ListAll()
}

// ActiveSessions returns sessions still pending.
func (e *Engine) ActiveSessions(_ context.Context) []*model.EditSession {
	return e.sessions.ListActive()
}

// MoveSelection moves a session's file cursor with wraparound.
func (e *Engine) MoveSelection(_ context.Context, permissionID string, dir model.Direction) bool {
	return e.sessions.MoveSelection(permissionID, dir)
}

// MoveSelectionTo sets a session's file cursor to an absolute index.
func (e *Engine) MoveSelectionTo(_ context.Context, permissionID string, index int) bool {
	return e.sessions.MoveSelectionTo(permissionID, index)
}

// SelectedFile returns the file under a session's cursor.
func (e *Engine) SelectedFile(_ context.Context, permissionID string) (*model.FileEntry, bool) {
	return e.sessions.SelectedFile(permissionID)
}

// ToggleInlineDiff flips a file's inline diff visibility.
func (e *Engine) ToggleInlineDiff(_ context.Context, permissionID string, index int) bool {
	return e.sessions.ToggleInlineDiff(permissionID, index)
}

// AcceptFile applies one session file through the store.
func (e *Engine) AcceptFile(_ context.Context, permissionID string, index int) error {
	return e.sessions.AcceptFile(permissionID, index)
}

// RejectFile reverts one session file through the store.
func (e *Engine) RejectFile(_ context.Context, permissionID string, index int) error {
	return e.sessions.RejectFile(permissionID, index)
}

// ResolveFile marks one session file handled manually.
func (e *Engine) ResolveFile(_ context.Context, permissionID string, index int) error {
	return e.sessions.ResolveFile(permissionID, index)
}

// AcceptAll accepts every pending file in a session, best-effort.
func (e *Engine) AcceptAll(_ context.Context, permissionID string) bool {
	return e.sessions.AcceptAll(permissionID)
}

// RejectAll rejects every pending file in a session, best-effort.
func (e *Engine) RejectAll(_ context.Context, permissionID string) bool {
	return e.sessions.RejectAll(permissionID)
}

// ResolveAll marks every pending file in a session resolved.
func (e *Engine) ResolveAll(_ context.Context, permissionID string) bool {
	return e.sessions.ResolveAll(permissionID)
}

// AreAllResolved reports whether no file in the session is pending.
func (e *Engine) AreAllResolved(_ context.Context, permissionID string) bool {
	return e.sessions.AreAllResolved(permissionID)
}

// Resolution summarizes a session's decisions.
func (e *Engine) Resolution(_ context.Context, permissionID string) (model.Resolution, bool) {
	return e.sessions.Resolution(permissionID)
}

// MarkSent records that the session outcome was reported back.
func (e *Engine) MarkSent(_ context.Context, permissionID string) {
	e.sessions.MarkSent(permissionID)
}

// ClearSessions discards every session, emitting edit_removed each.
func (e *Engine) ClearSessions(_ context.Context) {
	e.sessions.ClearAll()
}

// Stats aggregates store counts by status.
func (e *Engine) Stats(_ context.Context) *model.StoreStats {
	return e.store.Stats()
}

// History returns delivered events, oldest first.
func (e *Engine) History(_ context.Context) []model.Event {
	return e.history.List()
}

// Metrics returns a snapshot of the in-process counters.
func (e *Engine) Metrics(_ context.Context) map[string]int64 {
	return metrics.Default().Snapshot()
}

// Prune deletes backups older than maxAge, holding the backup-dir
// lease for the duration. Backups referenced by live records survive.
// DryRun returns the plan without deleting.
func (e *Engine) Prune(_ context.Context, maxAge time.Duration, dryRun bool) (*prune.Plan, error) {
	pruner := prune.NewPruner(e.cfg.ResolvedBackupDir())
	protected := prune.ProtectedSet(e.store.GetAll())

	plan, err := pruner.Plan(maxAge, protected)
	if err != nil {
		return nil, err
	}
	if dryRun || len(plan.ToDelete) == 0 {
		return plan, nil
	}

	mgr := lock.NewManager(e.cfg.ResolvedBackupDir(), lock.DefaultTTL)
	lease, err := mgr.Acquire("prune")
	if err != nil {
		return nil, err
	}
	defer mgr.Release(lease.HolderNonce)

	if _, err := pruner.Run(plan); err != nil {
		return plan, err
	}
	return plan, nil
}

// Close stops the watcher, drains the dispatcher, and closes the
// refresher and webhook client.
func (e *Engine) Close() error {
	if e.watchCancel != nil {
		e.watchCancel()
	}
	if e.watcher != nil {
		e.watcher.Close()
	}
	if e.events != nil {
		e.events.Close()
	}
	if e.hook != nil {
		e.hook.Close()
	}
	if e.refresher != nil {
		return e.refresher.Close()
	}
	return nil
}

func (e *Engine) untrack(changeID string) {
	if e.watcher != nil {
		e.watcher.Untrack(model.ChangeID(changeID))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
