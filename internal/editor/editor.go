// Package editor reloads editor buffers after the store rewrites a file
// on disk. The store treats refresh as fire-and-forget: a failed refresh
// is logged and never surfaces in operation results.
package editor

// Refresher asks an attached editor to re-read one file from disk.
type Refresher interface {
	Refresh(path string) error
	Close() error
}

// Nop is the default Refresher when no editor is attached.
type Nop struct{}

func (Nop) Refresh(string) error { return nil }
func (Nop) Close() error         { return nil }
