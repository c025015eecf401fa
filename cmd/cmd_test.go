package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/speakbot/internal/config"
	"github.com/abhisek/speakbot/internal/script"
	"github.com/abhisek/speakbot/internal/store"
)

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.ExecuteContext(context.Background())
}

func TestGrantCommandSetsAccess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bot.db")

	require.NoError(t, runRoot(t, "grant", "4242", "--db", dbPath))

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.ProfileRepo().Get(context.Background(), 4242)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.HasAccess)
}

func TestGrantCommandRejectsBadID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bot.db")
	assert.Error(t, runRoot(t, "grant", "abc", "--db", dbPath))
	assert.Error(t, runRoot(t, "grant", "-5", "--db", dbPath))
}

func TestScriptValidateCommand(t *testing.T) {
	assert.Error(t, runRoot(t, "script", "validate", filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestSortedScoreKeys(t *testing.T) {
	scores := map[store.ScoreKey]store.Score{
		{TaskID: 2, PartIndex: 0}: {},
		{TaskID: 1, PartIndex: 1}: {},
		{TaskID: 1, PartIndex: 0}: {},
	}
	assert.Equal(t, []store.ScoreKey{
		{TaskID: 1, PartIndex: 0},
		{TaskID: 1, PartIndex: 1},
		{TaskID: 2, PartIndex: 0},
	}, sortedScoreKeys(scores))
}

func TestScoreTitle(t *testing.T) {
	c := script.Default()

	t1, ok := c.Task(1)
	require.True(t, ok)
	require.Greater(t, len(t1.Parts), 1)
	assert.Equal(t, t1.Title+" / "+t1.Parts[1].Name, scoreTitle(c, store.ScoreKey{TaskID: 1, PartIndex: 1}))

	t2, ok := c.Task(2)
	require.True(t, ok)
	assert.Equal(t, t2.Title, scoreTitle(c, store.ScoreKey{TaskID: 2, PartIndex: 0}))

	assert.Equal(t, "Task 99, part 1", scoreTitle(c, store.ScoreKey{TaskID: 99}))
}

func TestResolveDBPathPrefersConfig(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "nested", "bot.db")

	cfg := config.New()
	cfg.DB = want

	got, err := resolveDBPath(cfg)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
}
