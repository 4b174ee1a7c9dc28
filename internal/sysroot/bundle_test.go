package sysroot

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readTar(t *testing.T, path string) map[string]*tar.Header {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	headers := make(map[string]*tar.Header)
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		headers[hdr.Name] = hdr
	}
	return headers
}

func TestTarBundler_Bundle(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "usr/lib/libfoo.so.1"))
	mklink(t, "libfoo.so.1", filepath.Join(root, "usr/lib/libfoo.so"))
	mkfile(t, filepath.Join(root, scratchDirName, "left", "data.tar.xz"))
	// a bundle from a previous run must not end up inside the new one
	require.NoError(t, os.WriteFile(filepath.Join(root, "sysroot.tar"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sysroot.tar.b3"), []byte("old"), 0o644))

	b := &TarBundler{Digest: true}
	path, err := b.Bundle(root, "sysroot.tar")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "sysroot.tar"), path)

	headers := readTar(t, path)
	assert.Contains(t, headers, "./")
	assert.Contains(t, headers, "./usr/lib/")
	require.Contains(t, headers, "./usr/lib/libfoo.so.1")
	require.Contains(t, headers, "./usr/lib/libfoo.so")
	assert.Equal(t, byte(tar.TypeSymlink), headers["./usr/lib/libfoo.so"].Typeflag)
	assert.Equal(t, "libfoo.so.1", headers["./usr/lib/libfoo.so"].Linkname)
	for name, hdr := range headers {
		assert.False(t, strings.Contains(name, "sysroot.tar"), name)
		assert.False(t, strings.Contains(name, scratchDirName), name)
		assert.Equal(t, 0, hdr.Uid, name)
		assert.Equal(t, 0, hdr.Gid, name)
	}

	sum, err := fileDigest(path)
	require.NoError(t, err)
	digest, err := os.ReadFile(path + ".b3")
	require.NoError(t, err)
	assert.Equal(t, sum+"  sysroot.tar\n", string(digest))
	assert.Len(t, sum, 64)
}

func TestTarBundler_NoDigest(t *testing.T) {
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "usr/include/a.h"))

	path, err := (&TarBundler{}).Bundle(root, "out.tar")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".b3")
	assert.Contains(t, readTar(t, path), "./usr/include/a.h")
}
