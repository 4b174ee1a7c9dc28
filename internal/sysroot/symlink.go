package sysroot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// NormalizeSymlinks rewrites every absolute symlink under root to the
// equivalent relative link. A root that is itself a symlink is resolved first
// and never rewritten. Absolute targets outside root are taken to be
// rooted at root, the way they resolve once the tree is used as a sysroot.
// Failures are collected per link and do not stop the walk.
func NormalizeSymlinks(root string) []error {
	root, err := resolveRoot(root)
	if err != nil {
		return []error{err}
	}

	var errs []error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() && d.Name() == scratchDirName {
			return filepath.SkipDir
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		rewritten, err := relativizeLink(root, path)
		if err != nil {
			arrowf(colWarn, "symlink %s: %v\n", path, err)
			errs = append(errs, fmt.Errorf("symlink %s: %w", path, err))
			return nil
		}
		if rewritten != "" {
			debugf("%s -> %s\n", path, rewritten)
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return errs
}

// relativizeLink rewrites link if its target is absolute and returns the new
// target, or "" when the link was left alone.
func relativizeLink(root, link string) (string, error) {
	target, err := os.Readlink(link)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(target) {
		return "", nil
	}

	resolved := sysrootPath(root, target)
	rel, err := filepath.Rel(filepath.Dir(link), resolved)
	if err != nil {
		return "", err
	}

	fi, err := os.Lstat(link)
	if err != nil {
		return "", err
	}

	// Build the new link beside the old one and rename over it so the
	// entry is never missing.
	tmp := filepath.Join(filepath.Dir(link), "."+filepath.Base(link)+".relink")
	_ = os.Remove(tmp)
	if err := os.Symlink(rel, tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, link); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if st, ok := fi.Sys().(*syscall.Stat_t); ok && os.Geteuid() == 0 {
		_ = os.Lchown(link, int(st.Uid), int(st.Gid))
	}
	setLinkTime(link, fi.ModTime())
	return rel, nil
}

// sysrootPath maps an absolute link target onto the tree at root.
func sysrootPath(root, target string) string {
	target = filepath.Clean(target)
	if root == string(os.PathSeparator) || target == root ||
		strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return target
	}
	return filepath.Join(root, target)
}
