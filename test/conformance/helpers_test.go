//go:build conformance

package conformance

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var patchgateBinary string

func init() {
	// Find the patchgate binary
	cwd, _ := os.Getwd()
	// Walk up to find bin/patchgate
	for {
		binPath := filepath.Join(cwd, "bin", "patchgate")
		if _, err := os.Stat(binPath); err == nil {
			patchgateBinary = binPath
			return
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	// Fallback to PATH
	patchgateBinary = "patchgate"
}

// initWorkspace creates a temp workspace with a config whose backup
// directory lives inside it, and returns its path.
func initWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgYAML := "auto_backup: true\nbackup_dir: " + filepath.Join(dir, ".backups") + "\nmax_changes: 100\nconfirm_destructive: true\nlog_level: warn\n"
	if err := os.WriteFile(filepath.Join(dir, ".patchgate.yaml"), []byte(cfgYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

// runGate executes the patchgate binary with args in the given working
// directory.
func runGate(t *testing.T, cwd string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	return runGateStdin(t, cwd, "", args...)
}

// runGateStdin executes the patchgate binary feeding input on stdin.
// The interactive review loop reads decision keys from there.
func runGateStdin(t *testing.T, cwd, stdin string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(patchgateBinary, args...)
	cmd.Dir = cwd
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "NVIM_LISTEN_ADDRESS=")
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = 1
		}
	} else {
		exitCode = 0
	}
	return
}

// proposalFile is one entry of the JSON wire format.
type proposalFile struct {
	FilePath string `json:"filePath"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// writeProposal creates target files with their before content and a
// proposal JSON naming the after content, returning the proposal path.
func writeProposal(t *testing.T, dir, permissionID string, files map[string][2]string) string {
	t.Helper()
	var entries []proposalFile
	for name, contents := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(contents[0]), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
		entries = append(entries, proposalFile{FilePath: path, Before: contents[0], After: contents[1]})
	}
	doc := map[string]any{
		"permission_id": permissionID,
		"session_id":    permissionID + "-session",
		"files":         entries,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal proposal: %v", err)
	}
	propPath := filepath.Join(dir, permissionID+".json")
	if err := os.WriteFile(propPath, data, 0644); err != nil {
		t.Fatalf("failed to write proposal %s: %v", propPath, err)
	}
	return propPath
}

// writeProposalTargets writes raw files at absolute paths.
func writeProposalTargets(t *testing.T, files map[string]string) {
	t.Helper()
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", path, err)
		}
	}
}

// lockDir makes a directory read-only for the duration of the test.
// Root bypasses permission checks, so these tests skip when run as root.
func lockDir(t *testing.T, path string) {
	t.Helper()
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	if err := os.Chmod(path, 0555); err != nil {
		t.Fatalf("failed to chmod %s: %v", path, err)
	}
	t.Cleanup(func() { os.Chmod(path, 0755) })
}

// readFile reads file content from the workspace.
func readFile(t *testing.T, dir, filename string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read file %s: %v", path, err)
	}
	return string(content)
}

// fileExists checks if a file exists.
func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if os.IsNotExist(err) {
		return false
	}
	t.Fatalf("failed to stat file %s: %v", path, err)
	return false
}

// backupCount returns the number of backup files in the workspace's
// backup directory.
func backupCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, ".backups"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		t.Fatalf("failed to read backup dir: %v", err)
	}
	n := 0
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".bak") {
			n++
		}
	}
	return n
}
