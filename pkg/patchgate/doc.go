// Package patchgate provides a high-level library API for PatchGate.
//
// This package is the primary integration point for external consumers
// such as agent hosts and editor plugins. It wraps the internal change
// store and session manager into a clean, stable public API.
//
// # Concurrency Safety
//
//   - All Engine methods are safe for concurrent use; the store and
//     session manager serialize their own state internally.
//
//   - Callers must still serialize decisions on a single change or
//     session id: two concurrent Accept calls for the same id race on
//     the already-resolved check and one of them loses.
//
//   - Multiple Engine instances for DIFFERENT workspaces are fully
//     independent. Multiple instances over the SAME workspace share
//     disk targets and backups and must not decide the same file
//     concurrently.
//
// # Recommended Usage Pattern (agent host)
//
//	eng, err := patchgate.New(patchgate.Options{Root: workDir})
//	if err != nil { ... }
//	defer eng.Close()
//
//	// Proposal arrives from the agent:
//	sess, err := eng.Register(ctx, permissionID, sessionID, files, session.RegisterOptions{})
//
//	// Human decides, then:
//	eng.AcceptAll(ctx, permissionID)
//	eng.MarkSent(ctx, permissionID)
package patchgate
