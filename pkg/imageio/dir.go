// Package imageio reads and writes the files the filter works on: it lists
// input directories and converts between encoded images and
// models.Image buffers.
package imageio

import (
	"fmt"
	"os"

	"medfilt/internal/models"
)

// CheckDir returns ErrDirectoryNotFound unless path names an existing directory.
func CheckDir(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrDirectoryNotFound, path, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", models.ErrDirectoryNotFound, path)
	}
	return nil
}

// List returns the names of the non-directory entries in dir, sorted by
// name. Every worker that lists the same directory sees the same order,
// which is what lets them share one index space.
func List(dir string) ([]string, error) {
	if err := CheckDir(dir); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDirectoryNotFound, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Count returns the number of entries List would return.
func Count(dir string) (int, error) {
	names, err := List(dir)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}
