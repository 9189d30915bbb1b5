// File: pkg/combine/helpers.go
package combine

import (
	"context"
	"os"
	"path/filepath"

	"amalgam/pkg/source"

	"go.uber.org/zap"
)

// writeOutput ensures the parent directory exists and writes data to path.
func writeOutput(ctx context.Context, store *source.Store, path string, data []byte, logger *zap.Logger) error {
	if err := ensureDirectory(filepath.Dir(path), logger); err != nil {
		return err
	}
	return store.Write(ctx, path, data, 0644)
}

// ensureDirectory ensures a directory exists, creating it if necessary.
func ensureDirectory(path string, logger *zap.Logger) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		logger.Error("Failed to create directory", zap.String("path", path), zap.Error(err))
		return err
	}
	logger.Debug("Ensured directory exists", zap.String("path", path))
	return nil
}
