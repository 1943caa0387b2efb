package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the narrio home directory.
	DefaultDirName = ".narrio"

	// UploadsDirName is the subdirectory for uploaded source documents.
	UploadsDirName = "uploads"

	// OutputDirName is the subdirectory for generated audio files.
	OutputDirName = "output"

	// CacheDirName is the subdirectory for cached book chapter text.
	CacheDirName = "cache"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the narrio home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.narrio).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// UploadsPath returns the directory for uploaded source documents.
func (d *Dir) UploadsPath() string {
	return filepath.Join(d.path, UploadsDirName)
}

// OutputPath returns the directory for generated audio files.
func (d *Dir) OutputPath() string {
	return filepath.Join(d.path, OutputDirName)
}

// CachePath returns the directory for cached book text.
func (d *Dir) CachePath() string {
	return filepath.Join(d.path, CacheDirName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsPath(), d.OutputPath(), d.CachePath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// UploadPath returns the path for an uploaded document, keyed by job ID.
func (d *Dir) UploadPath(jobID, ext string) string {
	return filepath.Join(d.UploadsPath(), jobID+ext)
}

// AudioPath returns the path for a job's generated audio file.
func (d *Dir) AudioPath(jobID string) string {
	return filepath.Join(d.OutputPath(), jobID+".mp3")
}

// BookCacheDir returns the cache directory for a book's chapter text.
func (d *Dir) BookCacheDir(bookID string) string {
	return filepath.Join(d.CachePath(), bookID)
}

// ChapterTextPath returns the cached text file for a chapter.
// Chapter indexes are 0-based.
func (d *Dir) ChapterTextPath(bookID string, chapterIdx int) string {
	return filepath.Join(d.BookCacheDir(bookID), fmt.Sprintf("chapter_%02d.txt", chapterIdx))
}

// EnsureBookCacheDir creates the cache directory for a book.
func (d *Dir) EnsureBookCacheDir(bookID string) error {
	return os.MkdirAll(d.BookCacheDir(bookID), 0o755)
}
