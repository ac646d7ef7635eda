package proposal

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchgate-project/patchgate/pkg/errclass"
)

func TestParseJSON_Valid(t *testing.T) {
	data := []byte(`{
		"permission_id": "perm-1",
		"session_id": "sess-1",
		"message_id": "msg-1",
		"files": [
			{"filePath": "/w/a.txt", "before": "a", "after": "b", "additions": 1, "deletions": 0, "type": "txt"}
		]
	}`)

	p, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, "perm-1", p.PermissionID)
	assert.Equal(t, "sess-1", p.SessionID)
	assert.Equal(t, "msg-1", p.MessageID)
	require.Len(t, p.Files, 1)
	assert.Equal(t, "/w/a.txt", p.Files[0].Filepath)
	assert.Equal(t, 1, p.Files[0].Additions)
}

func TestParseJSON_Invalid(t *testing.T) {
	cases := map[string]string{
		"malformed":       `{not json`,
		"no permission":   `{"session_id": "s", "files": [{"filePath": "/a", "before": "", "after": ""}]}`,
		"no files":        `{"permission_id": "p", "session_id": "s", "files": []}`,
		"file sans path":  `{"permission_id": "p", "session_id": "s", "files": [{"before": "", "after": ""}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(payload))
			assert.True(t, errors.Is(err, errclass.ErrInvalidProposal))
		})
	}
}

func TestParseMarkdown_ExtractsHintedBlocks(t *testing.T) {
	tmpDir := t.TempDir()
	existing := filepath.Join(tmpDir, "pkg", "util.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("package util\n"), 0644))

	source := []byte("Here is the updated `pkg/util.go`:\n\n" +
		"```go\npackage util\n\nfunc Answer() int { return 42 }\n```\n\n" +
		"And a brand new `docs/notes.md` to go with it:\n\n" +
		"```markdown\n# Notes\n```\n\n" +
		"This block has no path hint and is skipped:\n\n" +
		"```sh\nrm -rf /\n```\n")

	p, err := ParseMarkdown(source, tmpDir)
	require.NoError(t, err)
	assert.NotEmpty(t, p.PermissionID)
	assert.NotEmpty(t, p.SessionID)
	require.Len(t, p.Files, 2)

	first := p.Files[0]
	assert.Equal(t, existing, first.Filepath)
	assert.Equal(t, "pkg/util.go", first.RelativePath)
	assert.Equal(t, "package util\n", first.Before)
	assert.Equal(t, "package util\n\nfunc Answer() int { return 42 }\n", first.After)
	assert.Equal(t, "go", first.Type)

	second := p.Files[1]
	assert.Equal(t, filepath.Join(tmpDir, "docs", "notes.md"), second.Filepath)
	assert.Empty(t, second.Before, "absent file reads as empty original")
	assert.Equal(t, "# Notes\n", second.After)
}

func TestParseMarkdown_RejectsPathsWithSpaces(t *testing.T) {
	source := []byte("Run `go run main.go` to check:\n\n```go\npackage main\n```\n")
	_, err := ParseMarkdown(source, t.TempDir())
	assert.True(t, errors.Is(err, errclass.ErrInvalidProposal))
}

func TestParseMarkdown_NoHintedBlocks(t *testing.T) {
	_, err := ParseMarkdown([]byte("Just text, no code.\n"), t.TempDir())
	assert.True(t, errors.Is(err, errclass.ErrInvalidProposal))
}

func TestParseFile_DispatchesOnExtension(t *testing.T) {
	tmpDir := t.TempDir()

	jsonPath := filepath.Join(tmpDir, "proposal.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(
		`{"permission_id": "p", "session_id": "s", "files": [{"filePath": "/a", "before": "", "after": "x"}]}`,
	), 0644))
	p, err := ParseFile(jsonPath, tmpDir)
	require.NoError(t, err)
	assert.Equal(t, "p", p.PermissionID)

	mdPath := filepath.Join(tmpDir, "proposal.md")
	require.NoError(t, os.WriteFile(mdPath, []byte("New `a.txt`:\n\n```\nhello\n```\n"), 0644))
	p, err = ParseFile(mdPath, tmpDir)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	assert.Equal(t, filepath.Join(tmpDir, "a.txt"), p.Files[0].Filepath)

	// Any non-.json extension is read as markdown.
	txtPath := filepath.Join(tmpDir, "proposal.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("New `b.txt`:\n\n```\nworld\n```\n"), 0644))
	p, err = ParseFile(txtPath, tmpDir)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	assert.Equal(t, filepath.Join(tmpDir, "b.txt"), p.Files[0].Filepath)

	_, err = ParseFile(filepath.Join(tmpDir, "missing.json"), tmpDir)
	assert.True(t, errors.Is(err, errclass.ErrIO))
}
