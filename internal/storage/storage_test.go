package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/steam-vanity-checker/internal/storage/memory"
)

func TestExporterUploadsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := filepath.Join(dir, "results.csv")
	avail := filepath.Join(dir, "Available.txt")
	require.NoError(t, os.WriteFile(full, []byte("username,status,http_status,timestamp,note\n"), 0o600))
	require.NoError(t, os.WriteFile(avail, []byte("rareusername\n"), 0o600))

	blobs := memory.NewBlobStore()
	exp, err := NewExporter(blobs, "/vanity/", nil)
	require.NoError(t, err)

	runID := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	uris, err := exp.Export(context.Background(), runID, full, avail, filepath.Join(dir, "missing.csv"))
	require.NoError(t, err)
	require.Equal(t, []string{
		"memory://vanity/00000000-0000-0000-0000-0000000000aa/results.csv",
		"memory://vanity/00000000-0000-0000-0000-0000000000aa/Available.txt",
	}, uris)

	got, ok := blobs.Get("vanity/00000000-0000-0000-0000-0000000000aa/Available.txt")
	require.True(t, ok)
	require.Equal(t, "rareusername\n", string(got))
}

func TestNewExporterRequiresStore(t *testing.T) {
	t.Parallel()

	_, err := NewExporter(nil, "x", nil)
	require.Error(t, err)
}
