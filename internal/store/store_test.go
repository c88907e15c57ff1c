package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanqie-tracker/internal/ledger"
	"fanqie-tracker/internal/model"
)

func TestStore_FirstRunIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)

	lists, l, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, lists.Waiting)
	assert.Empty(t, lists.Uploading)
	assert.Equal(t, 0, l.Len())
}

func TestStore_RoundTripKeepsNullsAndUnicode(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	waiting := []model.WaitingBook{{VITitle: "Truyện <A>", DesiredChapters: 100, FanqieID: "123"}}
	uploading := []model.UploadingBook{{
		WikiID:         model.String("abc~1"),
		FanqieID:       "999",
		FanqieChapters: model.Int(10),
		Status:         model.String(model.StatusOngoing),
	}}
	require.NoError(t, s.SaveWaiting(waiting))
	require.NoError(t, s.SaveUploading(uploading))
	require.NoError(t, s.SaveLedger(ledger.New("42", "7")))

	raw, err := os.ReadFile(filepath.Join(dir, WaitingFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"current_chapters": null`)
	assert.Contains(t, string(raw), "Truyện <A>")
	raw, err = os.ReadFile(filepath.Join(dir, UploadingFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "连载中")
	assert.Contains(t, string(raw), `"vi_title": null`)

	lists, l, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, waiting, lists.Waiting)
	assert.Equal(t, uploading, lists.Uploading)
	assert.Equal(t, []string{"42", "7"}, l.IDs())
}

func TestStore_SaveOverwrites(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveLedger(ledger.New("1", "2", "3")))
	require.NoError(t, s.SaveLedger(ledger.New("2")))

	l, err := s.LoadLedger()
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, l.IDs())

	require.NoError(t, s.SaveWaiting(nil))
	raw, err := os.ReadFile(filepath.Join(dir, WaitingFile))
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temp file left behind: %s", e.Name())
	}
}

func TestStore_LoadRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveWaiting([]model.WaitingBook{{FanqieID: "1"}, {FanqieID: "1"}}))
	_, _, err = s.Load()
	assert.True(t, errors.Is(err, ErrDuplicateID))

	require.NoError(t, s.SaveWaiting([]model.WaitingBook{{FanqieID: "1"}}))
	require.NoError(t, s.SaveUploading([]model.UploadingBook{{FanqieID: "1"}}))
	_, _, err = s.Load()
	assert.True(t, errors.Is(err, ErrDuplicateID))
	assert.Contains(t, err.Error(), "both")

	require.NoError(t, s.SaveUploading([]model.UploadingBook{{FanqieID: ""}}))
	_, _, err = s.Load()
	require.Error(t, err)
}

func TestStore_DecodeError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, UploadingFile), []byte("{not json"), 0o644))
	s, err := Open(dir)
	require.NoError(t, err)
	_, err = s.LoadUploading()
	require.Error(t, err)
}

func TestStore_SaveFailsOnMissingDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))
	require.Error(t, s.SaveWaiting([]model.WaitingBook{{FanqieID: "1"}}))
}

func TestStore_LockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir)
	require.NoError(t, err)
	b, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, a.Lock())
	assert.ErrorIs(t, b.Lock(), ErrLocked)
	require.NoError(t, a.Unlock())
	require.NoError(t, b.Lock())
	require.NoError(t, b.Unlock())
}
