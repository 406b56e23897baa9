// Package extraction turns an uploaded document file into plain text.
// Binary formats (PDF, DOCX) are handled by an external collaborator; this
// package covers the text formats the pipeline consumes directly.
package extraction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyPath is returned when no file path was supplied.
	ErrEmptyPath = errors.New("extraction: empty file path")
	// ErrNotFound is returned when the file does not exist.
	ErrNotFound = errors.New("extraction: file not found")
	// ErrUnsupportedFormat is returned for file types this extractor cannot read.
	ErrUnsupportedFormat = errors.New("extraction: unsupported document format")
)

// TextExtractor converts a document file into plain text.
type TextExtractor interface {
	ExtractText(path string) (string, error)
}

// FileExtractor reads UTF-8 text documents (txt, md) from the local filesystem.
type FileExtractor struct{}

// NewFileExtractor returns a TextExtractor for local text files.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".text":     true,
}

// ExtractText reads the file at path and returns its contents.
func (e *FileExtractor) ExtractText(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrUnsupportedFormat, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFormat, path)
	}

	return string(raw), nil
}
