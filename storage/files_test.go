package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/storage"
)

func newFiles(t *testing.T) *storage.Files {
	t.Helper()
	f, err := storage.NewFiles(t.TempDir(), nil)
	require.NoError(t, err)
	return f
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Project Alpha Launch", "project-al"},
		{"  Café  ", "cafe"},
		{"A/B test!", "ab-test"},
		{"", ""},
		{"--x--", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, storage.Slug(tt.in))
		})
	}
	assert.Equal(t, storage.DefaultFolder, storage.ProjectFolder(""))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "FY25_E1_apollo_design-doc.pdf", storage.FileName("FY25", "E1", "Apollo", "Design Doc.PDF"))
	assert.Equal(t, "FY25_E1_sample-entry_file", storage.FileName("FY25", "E1", "", "???"))
}

func TestSave_OpenAndDelete(t *testing.T) {
	f := newFiles(t)
	ctx := context.Background()

	a, err := f.Save(ctx, "E1", "Apollo", "FY25", "notes.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "E1/apollo/FY25_E1_apollo_notes.txt", a.Path)
	assert.Equal(t, int64(5), a.Size)

	r, err := f.Open(a.Path)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))

	require.NoError(t, f.Delete(a.Path))
	require.NoError(t, f.Delete(a.Path), "deleting twice is harmless")
	_, err = f.Open(a.Path)
	assert.True(t, generic.IsNotFound(err))

	staged, err := os.ReadDir(filepath.Join(f.Root(), ".staging"))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestResolve_RejectsEscapes(t *testing.T) {
	f := newFiles(t)
	for _, p := range []string{"", "/", "../../etc/passwd", "E1/../../x"} {
		full, err := f.Resolve(p)
		if err == nil {
			assert.True(t, strings.HasPrefix(full, f.Root()), p)
			continue
		}
		assert.ErrorIs(t, err, storage.ErrOutsideRoot, p)
	}
	_, err := f.Resolve("")
	assert.ErrorIs(t, err, storage.ErrOutsideRoot)
}

func TestRelocateFolder_MovesFilesAndRemovesOldFolder(t *testing.T) {
	// GIVEN: Two attachments under the old project
	f := newFiles(t)
	ctx := context.Background()
	a1, err := f.Save(ctx, "E1", "Apollo", "FY25", "a.txt", strings.NewReader("a"))
	require.NoError(t, err)
	a2, err := f.Save(ctx, "E1", "Apollo", "FY25", "b.txt", strings.NewReader("b"))
	require.NoError(t, err)

	// WHEN: The project is renamed
	moved, err := f.RelocateFolder("E1", "Apollo", "Gemini", []generic.Attachment{a1, a2})
	require.NoError(t, err)

	// THEN: Paths point at the new folder and files exist there
	require.Len(t, moved, 2)
	for _, a := range moved {
		assert.True(t, strings.HasPrefix(a.Path, "E1/gemini/"), a.Path)
		full, err := f.Resolve(a.Path)
		require.NoError(t, err)
		assert.FileExists(t, full)
	}

	// AND: The old folder is gone
	assert.NoDirExists(t, filepath.Join(f.Root(), "E1", "apollo"))
}

func TestRelocateFolder_SameSlugIsNoop(t *testing.T) {
	f := newFiles(t)
	atts := []generic.Attachment{{Filename: "x", Path: "E1/apollo/x"}}
	out, err := f.RelocateFolder("E1", "Apollo", "APOLLO", atts)
	require.NoError(t, err)
	assert.Equal(t, atts, out)
}

func TestRemoveEmptyFolder_KeepsNonEmpty(t *testing.T) {
	f := newFiles(t)
	_, err := f.Save(context.Background(), "E1", "Apollo", "FY25", "a.txt", strings.NewReader("a"))
	require.NoError(t, err)

	removed, err := f.RemoveEmptyFolder("E1", "Apollo")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = f.RemoveEmptyFolder("E1", "Missing")
	require.NoError(t, err)
	assert.False(t, removed)
}
