//go:build conformance

package conformance

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestE2E_Review_AcceptAll drives the bulk accept path: every proposed
// file is written to disk and the originals land in the backup dir.
func TestE2E_Review_AcceptAll(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-accept", map[string][2]string{
		"main.go":   {"package main\n", "package main\n\nfunc main() {}\n"},
		"README.md": {"# old\n", "# new\n"},
	})

	stdout, stderr, exitCode := runGate(t, dir, "review", "--accept-all", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d): %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "all_accepted") {
		t.Errorf("expected all_accepted resolution, got: %s", stdout)
	}

	if got := readFile(t, dir, "main.go"); got != "package main\n\nfunc main() {}\n" {
		t.Errorf("main.go not updated: %q", got)
	}
	if got := readFile(t, dir, "README.md"); got != "# new\n" {
		t.Errorf("README.md not updated: %q", got)
	}
	if n := backupCount(t, dir); n != 2 {
		t.Errorf("expected 2 backups, found %d", n)
	}
}

// TestE2E_Review_RejectAll verifies rejected proposals leave the
// workspace byte-identical and take no backups.
func TestE2E_Review_RejectAll(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-reject", map[string][2]string{
		"config.yaml": {"key: old\n", "key: new\n"},
	})

	stdout, stderr, exitCode := runGate(t, dir, "review", "--reject-all", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d): %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "all_rejected") {
		t.Errorf("expected all_rejected resolution, got: %s", stdout)
	}
	if got := readFile(t, dir, "config.yaml"); got != "key: old\n" {
		t.Errorf("config.yaml changed after reject: %q", got)
	}
}

// TestE2E_Review_ResolveAll marks every file handled outside the
// review without touching disk.
func TestE2E_Review_ResolveAll(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-resolve", map[string][2]string{
		"notes.txt": {"draft\n", "final\n"},
	})

	stdout, _, exitCode := runGate(t, dir, "review", "--resolve-all", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d)", exitCode)
	}
	if !strings.Contains(stdout, "all_resolved") {
		t.Errorf("expected all_resolved resolution, got: %s", stdout)
	}
	if got := readFile(t, dir, "notes.txt"); got != "draft\n" {
		t.Errorf("notes.txt changed after resolve: %q", got)
	}
}

// TestE2E_Review_InteractiveMixed feeds decision keys on stdin:
// accept the first file, reject the second, so the session ends mixed.
func TestE2E_Review_InteractiveMixed(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-mixed", map[string][2]string{
		"a.txt": {"aaa\n", "AAA\n"},
		"b.txt": {"bbb\n", "BBB\n"},
	})

	stdout, stderr, exitCode := runGateStdin(t, dir, "a\nr\n", "review", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d): %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "mixed") {
		t.Errorf("expected mixed resolution, got: %s", stdout)
	}

	// Exactly one of the two files was accepted.
	changed := 0
	if readFile(t, dir, "a.txt") == "AAA\n" {
		changed++
	}
	if readFile(t, dir, "b.txt") == "BBB\n" {
		changed++
	}
	if changed != 1 {
		t.Errorf("expected exactly one file applied, got %d", changed)
	}
	if n := backupCount(t, dir); n != 1 {
		t.Errorf("expected 1 backup, found %d", n)
	}
}

// TestE2E_Review_InteractiveQuit quits without deciding; nothing is
// written and the session stays pending.
func TestE2E_Review_InteractiveQuit(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-quit", map[string][2]string{
		"a.txt": {"aaa\n", "AAA\n"},
	})

	stdout, _, exitCode := runGateStdin(t, dir, "q\n", "review", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d)", exitCode)
	}
	if !strings.Contains(stdout, "pending") {
		t.Errorf("expected pending resolution, got: %s", stdout)
	}
	if got := readFile(t, dir, "a.txt"); got != "aaa\n" {
		t.Errorf("a.txt changed after quit: %q", got)
	}
}

// TestE2E_Review_JSONSummary checks the machine-readable summary.
func TestE2E_Review_JSONSummary(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-json", map[string][2]string{
		"a.txt": {"aaa\n", "AAA\n"},
	})

	stdout, stderr, exitCode := runGate(t, dir, "--json", "review", "--accept-all", prop)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d): %s", exitCode, stderr)
	}
	for _, field := range []string{`"resolution"`, `"session"`, `"stats"`, `"permission_id"`} {
		if !strings.Contains(stdout, field) {
			t.Errorf("JSON summary missing %s: %s", field, stdout)
		}
	}
}

// TestE2E_Review_MarkdownProposal reviews a markdown proposal whose
// fenced blocks carry the new contents.
func TestE2E_Review_MarkdownProposal(t *testing.T) {
	dir := initWorkspace(t)
	target := filepath.Join(dir, "hello.txt")
	writeProposalTargets(t, map[string]string{target: "hello\n"})

	md := "Proposed edit to `hello.txt`:\n\n```\nhello world\n```\n"
	mdPath := filepath.Join(dir, "edit.md")
	writeProposalTargets(t, map[string]string{mdPath: md})

	stdout, stderr, exitCode := runGate(t, dir, "review", "--accept-all", mdPath)
	if exitCode != 0 {
		t.Fatalf("review failed (exit %d): %s", exitCode, stderr)
	}
	if !strings.Contains(stdout, "all_accepted") {
		t.Errorf("expected all_accepted resolution, got: %s", stdout)
	}
	if got := readFile(t, dir, "hello.txt"); !strings.Contains(got, "hello world") {
		t.Errorf("hello.txt not updated from markdown block: %q", got)
	}
}

// TestE2E_Review_InvalidProposal exits non-zero with a parse error.
func TestE2E_Review_InvalidProposal(t *testing.T) {
	dir := initWorkspace(t)
	bad := filepath.Join(dir, "bad.json")
	writeProposalTargets(t, map[string]string{bad: `{"files": []}`})

	_, stderr, exitCode := runGate(t, dir, "review", "--accept-all", bad)
	if exitCode == 0 {
		t.Fatal("expected non-zero exit for invalid proposal")
	}
	if !strings.Contains(stderr, "parse proposal") {
		t.Errorf("expected parse error on stderr, got: %s", stderr)
	}
}

// TestE2E_Review_FailedAcceptKeepsPending points a proposal at a file
// inside an unwritable directory; the accept fails and the review still
// reports the failure without applying anything.
func TestE2E_Review_FailedAcceptKeepsPending(t *testing.T) {
	dir := initWorkspace(t)
	prop := writeProposal(t, dir, "perm-fail", map[string][2]string{
		"locked/file.txt": {"old\n", "new\n"},
	})
	lockDir(t, filepath.Join(dir, "locked"))

	stdout, _, _ := runGate(t, dir, "review", "--accept-all", prop)
	if strings.Contains(stdout, "all_accepted") {
		t.Errorf("accept against unwritable dir must not succeed: %s", stdout)
	}
	if got := readFile(t, dir, "locked/file.txt"); got != "old\n" {
		t.Errorf("file changed despite failed accept: %q", got)
	}
}
