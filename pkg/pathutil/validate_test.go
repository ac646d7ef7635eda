package pathutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/patchgate-project/patchgate/pkg/errclass"
	"github.com/patchgate-project/patchgate/pkg/pathutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName_Valid(t *testing.T) {
	valid := []string{"main", "review-1", "v1.0", "my_session", "A-Z.test"}
	for _, name := range valid {
		assert.NoError(t, pathutil.ValidateName(name), "should accept: %s", name)
	}
}

func TestValidateName_Empty(t *testing.T) {
	err := pathutil.ValidateName("")
	require.ErrorIs(t, err, errclass.ErrNameInvalid)
}

func TestValidateName_DotDot(t *testing.T) {
	err := pathutil.ValidateName("..")
	require.ErrorIs(t, err, errclass.ErrNameInvalid)
}

func TestValidateName_Separators(t *testing.T) {
	for _, name := range []string{"a/b", "a\\b"} {
		err := pathutil.ValidateName(name)
		require.ErrorIs(t, err, errclass.ErrNameInvalid, "should reject: %s", name)
	}
}

func TestValidateName_ControlChars(t *testing.T) {
	err := pathutil.ValidateName("hello\x00world")
	require.ErrorIs(t, err, errclass.ErrNameInvalid)
}

func TestValidatePathSafety_UnderRoot(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "src", "main.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0644))
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
}

func TestValidatePathSafety_Escape(t *testing.T) {
	root := t.TempDir()
	err := pathutil.ValidatePathSafety(root, "/tmp/evil")
	require.ErrorIs(t, err, errclass.ErrPathUnsafe)
}

func TestValidatePathSafety_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "escape")
	os.Symlink("/tmp", link)
	err := pathutil.ValidatePathSafety(root, link)
	require.ErrorIs(t, err, errclass.ErrPathUnsafe)
}

func TestValidatePathSafety_RelativeSymlinkEscape(t *testing.T) {
	parentDir := t.TempDir()
	root := filepath.Join(parentDir, "root")
	require.NoError(t, os.Mkdir(root, 0755))
	outside := filepath.Join(parentDir, "outside")
	require.NoError(t, os.Mkdir(outside, 0755))

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink("../outside", link))

	err := pathutil.ValidatePathSafety(root, link)
	require.ErrorIs(t, err, errclass.ErrPathUnsafe)
}

func TestValidatePathSafety_NonExistentTarget(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "src", "new-file.go")
	// parent exists, target does not
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
}

func TestValidatePathSafety_DeepNonExistentTarget(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c", "d", "new-file.go")
	// nothing below root exists yet
	assert.NoError(t, pathutil.ValidatePathSafety(root, target))
}

func TestValidatePathSafety_DotDotTraversal(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "subdir", "..", "..", "tmp")
	err := pathutil.ValidatePathSafety(root, target)
	require.ErrorIs(t, err, errclass.ErrPathUnsafe)
}

func TestValidatePathSafety_NullByte(t *testing.T) {
	root := t.TempDir()
	err := pathutil.ValidatePathSafety(root, filepath.Join(root, "bad\x00name"))
	require.ErrorIs(t, err, errclass.ErrPathUnsafe)
}

func TestValidatePathSafety_TargetIsRoot(t *testing.T) {
	root := t.TempDir()
	assert.NoError(t, pathutil.ValidatePathSafety(root, root))
}
