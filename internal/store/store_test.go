package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowStoreRoundtrip(t *testing.T) {
	s, err := NewWorkflowStore(t.TempDir())
	require.NoError(t, err)

	wf, err := s.Import("txt2img", json.RawMessage(`{"nodes": [], "links": []}`))
	require.NoError(t, err)
	assert.NotEmpty(t, wf.ID)

	all, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "txt2img", all[0].Name)

	require.NoError(t, s.Rename(wf.ID, "txt2img v2"))
	got, err := s.Get(wf.ID)
	require.NoError(t, err)
	assert.Equal(t, "txt2img v2", got.Name)

	require.NoError(t, s.Delete(wf.ID))
	_, err = s.Get(wf.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflowStoreRejectsInvalidJSON(t *testing.T) {
	s, err := NewWorkflowStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Import("broken", json.RawMessage(`{nope`))
	assert.Error(t, err)
}

func TestWorkflowStoreMissingIDs(t *testing.T) {
	s, err := NewWorkflowStore(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rename("missing", "x"), ErrNotFound)
	assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
}

func TestHistoryStoreAppendAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewHistoryStore(dir)
	require.NoError(t, err)

	rec, err := s.Append([]byte("imagebytes"), "out.png", RunMeta{
		PromptID:       "job-1",
		WorkflowID:     "wf-1",
		WorkflowName:   "txt2img",
		PositivePrompt: "a dog",
		Seed:           42,
		Steps:          20,
	})
	require.NoError(t, err)
	assert.Equal(t, "out.png", rec.OriginalFilename)
	assert.NotEqual(t, rec.OriginalFilename, rec.StoredFilename)

	path, err := s.ImagePath(rec.StoredFilename)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("imagebytes"), data)

	require.NoError(t, s.Delete(rec.ID))
	_, err = s.ImagePath(rec.StoredFilename)
	assert.ErrorIs(t, err, ErrNotFound)
	_, statErr := os.Stat(filepath.Join(dir, "images", rec.StoredFilename))
	assert.True(t, os.IsNotExist(statErr), "artifact file must be removed with the record")
}

func TestHistoryStoreIndependentRecords(t *testing.T) {
	s, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	first, err := s.Append([]byte("one"), "out.png", RunMeta{WorkflowID: "wf-1", Seed: 1})
	require.NoError(t, err)
	second, err := s.Append([]byte("two"), "out.png", RunMeta{WorkflowID: "wf-1", Seed: 2})
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredFilename, second.StoredFilename)

	records, err := s.List()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// newest first
	assert.Equal(t, second.ID, records[0].ID)

	p1, err := s.ImagePath(first.StoredFilename)
	require.NoError(t, err)
	d1, _ := os.ReadFile(p1)
	assert.Equal(t, []byte("one"), d1)
}

func TestHistoryStoreImagePathTraversal(t *testing.T) {
	s, err := NewHistoryStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../history.json", "a/b.png", `a\b.png`} {
		_, err := s.ImagePath(name)
		assert.Error(t, err, "name %q", name)
	}
}
