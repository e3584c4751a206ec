package templating

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteGeneratedFile(t *testing.T) {
	dir := t.TempDir()

	res, err := WriteGeneratedFile(dir, "api/pkg.rst", "content", WriteOptions{})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, filepath.Join(dir, "api", "pkg.rst"), res.Path)

	// #nosec G304 -- path is controlled by test.
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestWriteGeneratedFile_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.rst")
	require.NoError(t, os.WriteFile(path, []byte("hand edited"), 0o600))

	res, err := WriteGeneratedFile(dir, "pkg.rst", "generated", WriteOptions{})
	require.NoError(t, err)
	assert.False(t, res.Written)

	// #nosec G304 -- path is controlled by test.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hand edited", string(data))

	res, err = WriteGeneratedFile(dir, "pkg.rst", "generated", WriteOptions{Overwrite: true})
	require.NoError(t, err)
	assert.True(t, res.Written)
	// #nosec G304 -- path is controlled by test.
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "generated", string(data))
}

func TestWriteGeneratedFile_DryRun(t *testing.T) {
	dir := t.TempDir()

	res, err := WriteGeneratedFile(dir, "pkg.rst", "content", WriteOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.NoFileExists(t, res.Path)
}

func TestWriteGeneratedFile_PathTraversal(t *testing.T) {
	dir := t.TempDir()

	_, err := WriteGeneratedFile(dir, "../outside.rst", "content", WriteOptions{})
	require.ErrorIs(t, err, ErrPathEscapes)

	_, err = WriteGeneratedFile(dir, "/abs.rst", "content", WriteOptions{})
	require.ErrorIs(t, err, ErrPathEscapes)
}

func TestWriteFileAtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteFileAtomic(filepath.Join(dir, "a.rst"), []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.rst", entries[0].Name())
}
