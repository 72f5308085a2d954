// SPDX-License-Identifier: MIT

package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAnnouncementPath_EmptyName(t *testing.T) {
	_, ok := resolveAnnouncementPath("")
	assert.False(t, ok)
}

func TestResolveAnnouncementPath_ExistingFileReturnedUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chime.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	resolved, ok := resolveAnnouncementPath(path)
	require.True(t, ok)
	assert.Equal(t, path, resolved)
}

func TestResolveAnnouncementPath_BareNameSearchesDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spell.wav"), []byte("x"), 0644))

	original := announcementSearchDirs
	announcementSearchDirs = []string{dir}
	t.Cleanup(func() { announcementSearchDirs = original })

	resolved, ok := resolveAnnouncementPath("spell")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "spell.wav"), resolved)
}

func TestResolveAnnouncementPath_NotFound(t *testing.T) {
	original := announcementSearchDirs
	announcementSearchDirs = []string{t.TempDir()}
	t.Cleanup(func() { announcementSearchDirs = original })

	_, ok := resolveAnnouncementPath("nonexistent")
	assert.False(t, ok)
}
