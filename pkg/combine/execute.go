// File: pkg/combine/execute.go
package combine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"amalgam/pkg/assemble"
	"amalgam/pkg/merge"
	"amalgam/pkg/source"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Run merges the header tree and writes the artifact. Nothing is written unless
// the whole include graph resolved.
func Run(ctx context.Context, args Arguments, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	startTime := time.Now()
	runID := uuid.NewString()
	logger = logger.With(zap.String("runID", runID))

	logger.Info("Starting merge process",
		zap.String("sourceDir", args.SourceDir),
		zap.String("topInclude", args.TopInclude))

	sourceDir, err := filepath.Abs(args.SourceDir)
	if err != nil {
		logger.Error("Failed to resolve source directory", zap.Error(err))
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	target, err := filepath.Abs(args.Target)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	store := source.NewStore(logger)
	merger := merge.New(store, args.GuardPrefix, logger)

	result, err := merger.Merge(ctx, sourceDir, args.TopInclude)
	if err != nil {
		logger.Error("Failed to merge headers", zap.Error(err))
		return nil, fmt.Errorf("failed to merge %s: %w", args.TopInclude, err)
	}

	artifact := assemble.Assemble(assemble.Options{
		Banner:      args.Banner,
		GuardPrefix: args.GuardPrefix,
	}, result.SystemIncludes, result.Body)

	digest, err := assemble.Digest([]byte(artifact))
	if err != nil {
		return nil, fmt.Errorf("failed to digest artifact: %w", err)
	}

	if err := writeOutput(ctx, store, target, []byte(artifact), logger); err != nil {
		return nil, fmt.Errorf("failed to write merged header: %w", err)
	}

	report := &Report{
		RunID:          runID,
		Target:         target,
		Files:          result.Files,
		SystemIncludes: result.SystemIncludes,
		Bytes:          len(artifact),
		Digest:         digest,
	}

	if args.Tree != "" {
		tree, err := filepath.Abs(args.Tree)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		if err := writeOutput(ctx, store, tree, []byte(merge.RenderTree(result.Tree)), logger); err != nil {
			return nil, fmt.Errorf("failed to write include tree: %w", err)
		}
		report.Tree = tree
	}

	report.Elapsed = time.Since(startTime)
	logger.Info("Successfully merged headers",
		zap.String("outputFile", target),
		zap.Int("totalFiles", len(report.Files)),
		zap.Int("systemIncludes", len(report.SystemIncludes)),
		zap.Int("sizeBytes", report.Bytes),
		zap.String("digest", fmt.Sprintf("%016x", digest)),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}
