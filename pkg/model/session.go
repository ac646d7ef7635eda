package model

import "time"

// SessionStatus is the lifecycle state of an edit session.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionSent    SessionStatus = "sent"
)

// FileStatus is the reduced per-file vocabulary an edit session tracks.
// It is deliberately distinct from ChangeStatus: the session layer only
// cares about the user's decision, not the store's write mechanics.
type FileStatus string

const (
	FilePending  FileStatus = "pending"
	FileAccepted FileStatus = "accepted"
	FileRejected FileStatus = "rejected"
	FileResolved FileStatus = "resolved"
)

// FileStatusFor maps a change record's terminal status to the reduced
// per-file vocabulary. An accepted file corresponds to the record
// reaching "applied" through a successful write; the record-level
// "accepted" value is not produced by the accept path and does not map.
// The second return is false for any status with no file-level meaning.
func FileStatusFor(s ChangeStatus) (FileStatus, bool) {
	switch s {
	case StatusApplied:
		return FileAccepted, true
	case StatusRejected:
		return FileRejected, true
	case StatusResolved:
		return FileResolved, true
	case StatusPending:
		return FilePending, true
	}
	return "", false
}

// Resolution summarizes how a whole session was decided.
type Resolution string

const (
	ResolutionPending     Resolution = "pending"
	ResolutionAllAccepted Resolution = "all_accepted"
	ResolutionAllRejected Resolution = "all_rejected"
	ResolutionAllResolved Resolution = "all_resolved"
	ResolutionMixed       Resolution = "mixed"
)

// Direction moves the selection cursor through a session's files.
type Direction string

const (
	SelectionUp   Direction = "up"
	SelectionDown Direction = "down"
)

// FileData is the inbound per-file payload of an edit proposal. Field
// names match the proposal wire format.
type FileData struct {
	Filepath     string `json:"filePath"`
	RelativePath string `json:"relativePath,omitempty"`
	Before       string `json:"before"`
	After        string `json:"after"`
	Additions    int    `json:"additions,omitempty"`
	Deletions    int    `json:"deletions,omitempty"`
	Diff         string `json:"diff,omitempty"`
	Type         string `json:"type,omitempty"`
}

// FileEntry is one file inside an edit session. Before and After are an
// independent snapshot of the proposal content; ChangeID references the
// store's record without owning it.
type FileEntry struct {
	Index        int        `json:"index"`
	Filepath     string     `json:"filepath"`
	RelativePath string     `json:"relative_path"`
	Before       string     `json:"before"`
	After        string     `json:"after"`
	ChangeID     ChangeID   `json:"change_id"`
	Status       FileStatus `json:"status"`
	Stats        LineStats  `json:"stats"`
	DiffLines    []string   `json:"diff_lines,omitempty"`
	FileType     string     `json:"file_type,omitempty"`
}

// EditSession groups the file changes of one approval request. Files
// keep their input order for the session's lifetime; SelectedFile is a
// 1-based cursor, 0 only when the session has no files.
type EditSession struct {
	PermissionID  string         `json:"permission_id"`
	SessionID     string         `json:"session_id"`
	MessageID     string         `json:"message_id,omitempty"`
	Files         []*FileEntry   `json:"files"`
	SelectedFile  int            `json:"selected_file"`
	ExpandedFiles map[int]bool   `json:"expanded_files,omitempty"`
	Status        SessionStatus  `json:"status"`
	Timestamp     time.Time      `json:"timestamp"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// FileCount returns the number of files in the session.
func (s *EditSession) FileCount() int {
	return len(s.Files)
}
