package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCheckSkip(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand(Dependencies{Runner: &fakeRunner{}, Args: Arguments{OutWriter: &out, ErrWriter: &out}})
	root.SetArgs(append([]string{"check-skip"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestCheckSkipLockfile(t *testing.T) {
	out, err := executeCheckSkip(t, "package-lock.json")
	require.NoError(t, err)
	assert.Contains(t, out, "skip: package-lock.json (lockfile)")
}

func TestCheckSkipReviewableFile(t *testing.T) {
	out, err := executeCheckSkip(t, "main.go")
	require.ErrorIs(t, err, ErrShouldReview)
	assert.Contains(t, out, "review: main.go")
}

func TestCheckSkipGeneratedMarker(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.go")
	require.NoError(t, os.WriteFile(path, []byte("// Code generated by protoc-gen-go. DO NOT EDIT.\npackage models\n"), 0o644))

	out, err := executeCheckSkip(t, path)
	require.NoError(t, err)
	assert.Contains(t, out, "skip: "+path)
}

func TestCheckSkipMixedFiles(t *testing.T) {
	out, err := executeCheckSkip(t, "vendor/dep/lib.go", "service.go")
	require.ErrorIs(t, err, ErrShouldReview)
	assert.Contains(t, out, "skip: vendor/dep/lib.go")
	assert.Contains(t, out, "review: service.go")
}

func TestCheckSkipRequiresArgs(t *testing.T) {
	_, err := executeCheckSkip(t)
	require.Error(t, err)
}
