package sysroot

import (
	"os"
	"path/filepath"
)

// removePackageFiles deletes downloaded archives (and partial downloads)
// from root. Nothing to delete is the normal case, so errors are ignored.
func removePackageFiles(root string) int {
	removed := 0
	for _, pattern := range []string{"*.deb", "*.deb.part"} {
		matches, _ := filepath.Glob(filepath.Join(root, pattern))
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				removed++
			} else {
				debugf("failed to remove %s: %v\n", m, err)
			}
		}
	}
	return removed
}
