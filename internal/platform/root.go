package platform

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrRootNotFound is returned by FindRoot when no parent carries a marker.
var ErrRootNotFound = errors.New("notecap root not found")

// rootMarkers identify a store root, in lookup order.
var rootMarkers = []string{".notecap", "notecap.yaml", "notes.json", "notes.db"}

// FindRoot walks up from startDir to the first directory holding one of the
// root markers and returns its absolute path.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrRootNotFound
		}
		dir = parent
	}
}
