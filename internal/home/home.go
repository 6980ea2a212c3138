// Package home manages the inside-ideo home directory where uploads and
// derived artifacts are stored.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the home directory.
	DefaultDirName = ".inside-ideo"

	// UploadsDirName is the subdirectory for uploaded PDFs.
	UploadsDirName = "uploads"

	// ImagesDirName is the subdirectory for accepted image assets.
	ImagesDirName = "images"

	// PagesDirName is the subdirectory for full-page renders.
	PagesDirName = "pages"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.inside-ideo).
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

// UploadsDir returns the directory for uploaded PDFs.
func (d *Dir) UploadsDir() string {
	return filepath.Join(d.path, UploadsDirName)
}

// ImagesDir returns the directory for persisted image assets.
func (d *Dir) ImagesDir() string {
	return filepath.Join(d.path, ImagesDirName)
}

// PagesDir returns the directory for full-page renders.
func (d *Dir) PagesDir() string {
	return filepath.Join(d.path, PagesDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.UploadsDir(), d.ImagesDir(), d.PagesDir()} {
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

// UploadPath returns the path for an uploaded PDF.
func (d *Dir) UploadPath(name string) string {
	return filepath.Join(d.UploadsDir(), filepath.Base(name))
}

// ImagePath returns the path for a persisted asset image.
func (d *Dir) ImagePath(id string) string {
	return filepath.Join(d.ImagesDir(), id+".png")
}

// PagePath returns the path for a page render.
// Page numbers are 1-indexed.
func (d *Dir) PagePath(doc string, pageNum int) string {
	return filepath.Join(d.PagesDir(), fmt.Sprintf("%s_page_%04d.png", doc, pageNum))
}

// Clean removes derived artifacts (images and pages), keeping uploads.
func (d *Dir) Clean() error {
	for _, dir := range []string{d.ImagesDir(), d.PagesDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to recreate %s: %w", dir, err)
		}
	}
	return nil
}
