package sysroot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blakesmith/ar"
)

// Members of a .deb that may be left behind by an unpack; they are removed
// from the work dir after every package.
var intermediateFiles = []string{
	"debian-binary",
	"control.tar.xz",
	"control.tar.zst",
	"control.tar.gz",
	"data.tar.xz",
	"data.tar.zst",
	"data.tar.gz",
}

// unpackDeb writes every member of the ar container debPath into destDir
// and returns the member names.
func unpackDeb(debPath, destDir string) ([]string, error) {
	f, err := os.Open(debPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", debPath, err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", destDir, err)
	}

	var members []string
	r := ar.NewReader(f)
	for {
		hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return members, fmt.Errorf("error reading ar header in %s: %w", debPath, err)
		}

		// GNU ar terminates names with '/'
		name := strings.TrimSuffix(strings.TrimSpace(hdr.Name), "/")
		name = filepath.Base(name)
		if name == "" || name == "." || name == ".." || name == "/" {
			return members, fmt.Errorf("illegal member name %q in %s", hdr.Name, debPath)
		}

		target := filepath.Join(destDir, name)
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return members, fmt.Errorf("failed to create %s: %w", target, err)
		}
		if _, err := io.Copy(out, r); err != nil {
			out.Close()
			return members, fmt.Errorf("failed to write %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return members, err
		}
		members = append(members, name)
	}
	return members, nil
}

// removeIntermediates deletes leftover container members from dir.
func removeIntermediates(dir string) {
	for _, name := range intermediateFiles {
		p := filepath.Join(dir, name)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			debugf("failed to remove %s: %v\n", p, err)
		}
	}
}
