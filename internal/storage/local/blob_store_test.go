package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-vanity-checker/internal/storage/local"
)

func TestNewPreparesExportDirectory(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "exports", "nested")
	_, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)
	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, entries, "writability probe left behind")
}

func TestNewRejectsBadBaseDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	for name, dir := range map[string]string{
		"empty":    "  ",
		"not dir":  file,
		"under fi": filepath.Join(file, "sub"),
	} {
		_, err := local.New(local.Config{BaseDir: dir})
		require.Error(t, err, name)
	}
}

func TestPutObjectWritesRunExports(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := local.New(local.Config{BaseDir: base})
	require.NoError(t, err)
	ctx := context.Background()

	log := "username,status,http_status,timestamp,note\nrareusername,available,404,2026-03-14T09:00:00Z,not_found_status\n"
	uri, err := store.PutObject(ctx, "vanity/run-1/results.csv", "text/csv", strings.NewReader(log))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, "vanity", "run-1", "results.csv"), uri)

	got, err := os.ReadFile(filepath.Join(base, "vanity", "run-1", "results.csv"))
	require.NoError(t, err)
	require.Equal(t, log, string(got))

	// A re-export replaces the earlier object.
	path := "vanity/run-1/Available.txt"
	_, err = store.PutObject(ctx, path, "text/plain", strings.NewReader("gamer123\n"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, path, "text/plain", strings.NewReader("rareusername\n"))
	require.NoError(t, err)
	got, err = os.ReadFile(filepath.Join(base, path))
	require.NoError(t, err)
	require.Equal(t, "rareusername\n", string(got))
}

func TestPutObjectRejectsUnsafePaths(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	for _, path := range []string{"", "../escape.csv", "vanity/../../escape.csv"} {
		_, err := store.PutObject(context.Background(), path, "text/csv", strings.NewReader("x"))
		require.Error(t, err, "path %q", path)
	}
}
