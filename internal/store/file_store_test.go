package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_CRUD(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	exercise(t, fs)
}

func TestFileStore_FileLayout(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Create(sampleRule("seq-1")))

	_, err = os.Stat(filepath.Join(dir, "seq-1.yaml"))
	require.NoError(t, err)
}

func TestFileStore_ListSkipsUnreadable(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Create(sampleRule("good")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(":\n\t- not yaml"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	rules, err := fs.List()
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].ID)
}

func TestFileStore_ReKeyRemovesOldFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, fs.Create(sampleRule("old")))
	require.NoError(t, fs.Update("old", sampleRule("new")))

	_, err = os.Stat(filepath.Join(dir, "old.yaml"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "new.yaml"))
	assert.NoError(t, err)
}

func TestFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "rules")
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, fs.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
