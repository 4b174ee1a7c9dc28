package sysroot

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
	"golang.org/x/sys/unix"
)

// payloadNames lists the supported data members in detection order.
var payloadNames = []string{"data.tar.zst", "data.tar.xz", "data.tar.gz"}

// findPayload returns the path of the first supported data payload in dir.
func findPayload(dir string) (string, error) {
	for _, name := range payloadNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrUnknownPayload
}

// payloadReader wraps f with the decompressor matching the payload name.
func payloadReader(name string, f io.Reader) (io.Reader, func(), error) {
	switch {
	case strings.HasSuffix(name, ".tar.zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create zstd reader for %s: %w", name, err)
		}
		return zr, zr.Close, nil
	case strings.HasSuffix(name, ".tar.xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create xz reader for %s: %w", name, err)
		}
		return xr, func() {}, nil
	case strings.HasSuffix(name, ".tar.gz"):
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create gzip reader for %s: %w", name, err)
		}
		return gz, func() { gz.Close() }, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrUnknownPayload, name)
}

// extractPayload unpacks a compressed data tar into dest, overwriting
// whatever earlier packages put there.
func extractPayload(payload, dest string) error {
	f, err := os.Open(payload)
	if err != nil {
		return fmt.Errorf("failed to open payload %s: %w", payload, err)
	}
	defer f.Close()

	r, closeFn, err := payloadReader(filepath.Base(payload), f)
	if err != nil {
		return err
	}
	defer closeFn()

	return extractTarStream(r, dest)
}

// extractTarStream writes the entries of an uncompressed tar stream under dest.
// Symlink targets are stored verbatim; normalization happens later.
func extractTarStream(r io.Reader, dest string) error {
	dest, err := resolveRoot(dest)
	if err != nil {
		return err
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading tar header: %w", err)
		}

		if hdr.Typeflag == tar.TypeXHeader || hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if target == dest {
			continue
		}
		if err := insideRoot(dest, filepath.Dir(target)); err != nil {
			return fmt.Errorf("illegal file path in archive: %s: %w", hdr.Name, err)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("failed to create parent dir for %s: %w", target, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if fi, err := os.Lstat(target); err == nil && !fi.IsDir() {
				_ = os.Remove(target)
			}
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create dir %s: %w", target, err)
			}
			_ = os.Chmod(target, os.FileMode(hdr.Mode).Perm())
			restoreOwner(target, hdr)
		case tar.TypeReg:
			if err := replaceable(target); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("failed to write file %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return err
			}
			// O_CREATE honours the umask; put the archived mode back
			_ = os.Chmod(target, os.FileMode(hdr.Mode).Perm())
			if err := os.Chtimes(target, hdr.ModTime, hdr.ModTime); err != nil {
				return fmt.Errorf("failed to set times for file %s: %w", target, err)
			}
			restoreOwner(target, hdr)
		case tar.TypeSymlink:
			if err := replaceable(target); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s -> %s: %w", target, hdr.Linkname, err)
			}
			if os.Geteuid() == 0 {
				_ = unix.Lchown(target, hdr.Uid, hdr.Gid)
			}
			setLinkTime(target, hdr.ModTime)
		case tar.TypeLink:
			src, err := safeJoin(dest, hdr.Linkname)
			if err != nil {
				return err
			}
			if err := insideRoot(dest, filepath.Dir(src)); err != nil {
				return fmt.Errorf("illegal link target in archive: %s: %w", hdr.Linkname, err)
			}
			if err := replaceable(target); err != nil {
				return err
			}
			if err := os.Link(src, target); err != nil {
				return fmt.Errorf("failed to create hard link %s -> %s: %w", target, src, err)
			}
		default:
			debugf("Skipping unsupported tar entry type %c: %s\n", hdr.Typeflag, hdr.Name)
		}
	}
	return nil
}

// safeJoin resolves name under dest and rejects entries escaping it.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal file path in archive: %s", name)
	}
	return target, nil
}

// resolveRoot returns dest as an absolute path with symlinks resolved.
func resolveRoot(dest string) (string, error) {
	dest, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(dest); err == nil {
		return resolved, nil
	}
	return dest, nil
}

// insideRoot checks that dir, once the symlinks already on disk are followed,
// still lies inside root. Only the deepest existing ancestor is resolved;
// whatever is missing below it will be created as plain directories.
func insideRoot(root, dir string) error {
	p := dir
	for p != root {
		if _, err := os.Lstat(p); err == nil {
			break
		}
		p = filepath.Dir(p)
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return err
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
		return fmt.Errorf("%s resolves outside the tree to %s", p, resolved)
	}
	return nil
}

// replaceable clears the way for a new non-directory entry at target.
// Existing files and links are removed so writes never follow an old symlink.
func replaceable(target string) error {
	fi, err := os.Lstat(target)
	if err != nil {
		return nil
	}
	if fi.IsDir() {
		return fmt.Errorf("cannot replace directory %s with a non-directory entry", target)
	}
	if err := os.Remove(target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

func restoreOwner(target string, hdr *tar.Header) {
	if os.Geteuid() == 0 {
		_ = os.Lchown(target, hdr.Uid, hdr.Gid)
	}
}

// setLinkTime sets a symlink's own times without following it.
func setLinkTime(path string, t time.Time) {
	tv := unix.NsecToTimeval(t.UnixNano())
	if err := unix.Lutimes(path, []unix.Timeval{tv, tv}); err != nil {
		debugf("Warning: failed to set times for symlink %s: %v (continuing)\n", path, err)
	}
}
