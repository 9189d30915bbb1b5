// File: pkg/source/store.go
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/viant/afs"
	"go.uber.org/zap"
)

// ErrBinary is returned when a file handed to the merger does not look like text.
var ErrBinary = errors.New("binary content")

// Reader reads header files as newline-terminated lines.
type Reader interface {
	ReadLines(ctx context.Context, path string) ([]string, error)
}

// Store reads headers and writes artifacts through an afs.Service.
type Store struct {
	fs     afs.Service
	logger *zap.Logger
}

// NewStore creates a Store backed by the default afs service.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fs:     afs.New(),
		logger: logger,
	}
}

// ReadLines downloads the file at path and splits it into lines, each keeping
// its trailing newline (the last line may have none).
func (s *Store) ReadLines(ctx context.Context, path string) ([]string, error) {
	s.logger.Debug("Reading header", zap.String("path", path))

	data, err := s.fs.DownloadWithURL(ctx, path)
	if err != nil {
		return nil, err
	}
	if isBinary(data) {
		s.logger.Error("Refusing binary file", zap.String("path", path))
		return nil, fmt.Errorf("%s: %w", path, ErrBinary)
	}

	lines := SplitLines(string(data))
	s.logger.Debug("Read header",
		zap.String("path", path),
		zap.Int("sizeBytes", len(data)),
		zap.Int("lineCount", len(lines)))
	return lines, nil
}

// Exists reports whether path exists.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	return s.fs.Exists(ctx, path)
}

// Write stores data at path, replacing any previous content.
func (s *Store) Write(ctx context.Context, path string, data []byte, perm os.FileMode) error {
	if err := s.fs.Upload(ctx, path, perm, bytes.NewReader(data)); err != nil {
		s.logger.Error("Failed to write file", zap.String("path", path), zap.Error(err))
		return err
	}
	s.logger.Debug("Successfully wrote file", zap.String("path", path), zap.Int("sizeBytes", len(data)))
	return nil
}

// newlines converts CRLF and lone CR line endings to LF.
var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// SplitLines splits content after every newline. CRLF and CR line endings are
// converted to LF first. A trailing empty element is dropped.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	content = newlines.Replace(content)
	lines := strings.SplitAfter(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// isBinary checks the first 512 bytes for null bytes or a high ratio of
// non-printable characters.
func isBinary(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if len(head) == 0 {
		return false
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range head {
		if !isPrintable(b) {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(head)) > 0.3
}

// isPrintable checks if a byte is printable ASCII, common whitespace, or part
// of a UTF-8 sequence.
func isPrintable(b byte) bool {
	return (b >= 32 && b <= 126) || b == '\n' || b == '\r' || b == '\t' || b >= 0x80
}
