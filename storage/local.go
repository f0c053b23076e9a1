package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"DubFlow/logger"
)

// ErrTooLarge is returned when an upload stream exceeds the size limit.
var ErrTooLarge = errors.New("upload exceeds size limit")

// sniffLen is how much of an upload is buffered for content detection.
const sniffLen = 3072

// SavedFile describes an upload written to local disk.
type SavedFile struct {
	Path         string
	Size         int64
	DetectedType string // sniffed from the leading bytes
}

// FileStore keeps uploaded source videos and generated audio on local disk.
type FileStore struct {
	uploadDir string
	outputDir string
}

// NewFileStore creates the upload and output directories if needed.
func NewFileStore(uploadDir, outputDir string) (*FileStore, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &FileStore{uploadDir: uploadDir, outputDir: outputDir}, nil
}

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "video"
	}
	return clean
}

// SaveUpload streams r to <uploadDir>/<assetID>_<filename>. Streams longer than
// maxBytes are removed and reported as ErrTooLarge.
func (s *FileStore) SaveUpload(assetID, filename string, r io.Reader, maxBytes int64) (*SavedFile, error) {
	path := filepath.Join(s.uploadDir, assetID+"_"+SanitizeFilename(filename))

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	detected := mimetype.Detect(head)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	limit := maxBytes + 1
	if maxBytes <= 0 {
		limit = 1<<63 - 1
	}
	written, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), limit))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if maxBytes > 0 && written > maxBytes {
		os.Remove(path)
		return nil, ErrTooLarge
	}

	logger.Info("Saved uploaded file",
		logger.String("path", path),
		logger.Int64("bytes", written),
		logger.String("detectedType", detected.String()))
	return &SavedFile{Path: path, Size: written, DetectedType: detected.String()}, nil
}

// SaveAudio writes generated audio to <outputDir>/<name>.
func (s *FileStore) SaveAudio(name string, data []byte) (string, error) {
	path := filepath.Join(s.outputDir, SanitizeFilename(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save audio file %s: %w", path, err)
	}
	logger.Info("Saved audio file", logger.String("path", path), logger.Int("bytes", len(data)))
	return path, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (s *FileStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
