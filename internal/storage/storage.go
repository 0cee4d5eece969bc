// Package storage exports finished run logs to a blob store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/steam-vanity-checker/internal/store"
)

// Exporter copies local log files to a BlobStore under prefix/runID/.
type Exporter struct {
	blobs  store.BlobStore
	prefix string
	logger *zap.Logger
}

// NewExporter builds an Exporter.
func NewExporter(blobs store.BlobStore, prefix string, logger *zap.Logger) (*Exporter, error) {
	if blobs == nil {
		return nil, errors.New("export: blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{blobs: blobs, prefix: strings.Trim(prefix, "/"), logger: logger.Named("export")}, nil
}

// ObjectPath is the blob key for a local file in a run.
func (e *Exporter) ObjectPath(runID uuid.UUID, localPath string) string {
	return path.Join(e.prefix, runID.String(), filepath.Base(localPath))
}

// Export uploads each file that exists and returns the URIs written.
// Missing files are skipped.
func (e *Exporter) Export(ctx context.Context, runID uuid.UUID, files ...string) ([]string, error) {
	var uris []string
	for _, f := range files {
		uri, err := e.exportOne(ctx, runID, f)
		if errors.Is(err, os.ErrNotExist) {
			e.logger.Debug("export skipped missing file", zap.String("path", f))
			continue
		}
		if err != nil {
			return uris, err
		}
		uris = append(uris, uri)
		e.logger.Info("exported run log", zap.String("path", f), zap.String("uri", uri))
	}
	return uris, nil
}

func (e *Exporter) exportOne(ctx context.Context, runID uuid.UUID, localPath string) (string, error) {
	fh, err := os.Open(localPath) //nolint:gosec // operator supplied path
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer fh.Close() //nolint:errcheck // read-only

	contentType := "text/plain; charset=utf-8"
	if strings.EqualFold(filepath.Ext(localPath), ".csv") {
		contentType = "text/csv; charset=utf-8"
	}
	uri, err := e.blobs.PutObject(ctx, e.ObjectPath(runID, localPath), contentType, fh)
	if err != nil {
		return "", fmt.Errorf("export %s: %w", localPath, err)
	}
	return uri, nil
}
