package sysroot

import (
	"archive/tar"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

// Bundler packs the finished tree.
type Bundler interface {
	Bundle(root, name string) (string, error)
}

// TarBundler writes an uncompressed tar of root into root/name.
type TarBundler struct {
	// Digest also writes name.b3 holding the BLAKE3 sum in b3sum format.
	Digest bool
}

func (b *TarBundler) Bundle(root, name string) (string, error) {
	root, err := resolveRoot(root)
	if err != nil {
		return "", err
	}
	bundlePath := filepath.Join(root, name)
	skip := map[string]bool{
		name:           true,
		name + ".b3":   true,
		name + ".part": true,
		scratchDirName: true,
	}

	err = writeAtomically(bundlePath, func(w io.Writer) error {
		tw := tar.NewWriter(w)
		if err := addTree(tw, root, skip); err != nil {
			return err
		}
		return tw.Close()
	})
	if err != nil {
		return "", err
	}

	if b.Digest {
		sum, err := fileDigest(bundlePath)
		if err != nil {
			return bundlePath, fmt.Errorf("failed to hash %s: %w", bundlePath, err)
		}
		line := fmt.Sprintf("%s  %s\n", sum, name)
		if err := os.WriteFile(bundlePath+".b3", []byte(line), 0o644); err != nil {
			return bundlePath, err
		}
	}
	arrowf(colSuccess, "Sysroot bundle created: %s\n", bundlePath)
	return bundlePath, nil
}

// addTree walks root in lexical order and appends every entry as "./rel".
// Top-level names in skip are left out.
func addTree(tw *tar.Writer, root string, skip map[string]bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if filepath.Dir(rel) == "." && skip[rel] {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		var linkTarget string
		if info.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(path)
			if err != nil {
				return fmt.Errorf("readlink %s: %w", path, err)
			}
		}
		hdr, err := tar.FileInfoHeader(info, linkTarget)
		if err != nil {
			return err
		}
		if rel == "." {
			hdr.Name = "./"
		} else {
			hdr.Name = "./" + filepath.ToSlash(rel)
			if info.IsDir() {
				hdr.Name += "/"
			}
		}

		// A sysroot is consumed on another machine; ownership is always root.
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "root", "root"

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

// fileDigest returns the hex BLAKE3-256 sum of the file at path.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
