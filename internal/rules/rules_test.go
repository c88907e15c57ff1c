package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_LoadFillsDefaults(t *testing.T) {
	f := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(f, []byte("fanqie:\n  status: \".state\"\nwiki:\n  title: \"h1.name||h2\"\n"), 0o644))

	r, err := Load(f)
	require.NoError(t, err)
	assert.Equal(t, ".state", r.Fanqie.Status)
	assert.Equal(t, "h1.name||h2", r.Wiki.Title)
	assert.Equal(t, Default().Fanqie.Chapters, r.Fanqie.Chapters)
	assert.Equal(t, Default().Fanqie.RemovedTitles, r.Fanqie.RemovedTitles)
}

func TestRules_LoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	f := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(f, []byte("fanqie: [\n"), 0o644))
	_, err = Load(f)
	require.Error(t, err)
}
