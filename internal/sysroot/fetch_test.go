package sysroot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownloader_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pool/libfoo1_1.0_armhf.deb" {
			_, _ = w.Write([]byte("!<arch>\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := &HTTPDownloader{Client: srv.Client()}

	dest := filepath.Join(dir, "libfoo1_1.0_armhf.deb")
	require.NoError(t, d.Download(context.Background(), srv.URL+"/pool/libfoo1_1.0_armhf.deb", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "!<arch>\n", string(data))
	assert.NoFileExists(t, dest+".part")

	missing := filepath.Join(dir, "missing.deb")
	err = d.Download(context.Background(), srv.URL+"/pool/missing.deb", missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.NoFileExists(t, missing)
	assert.NoFileExists(t, missing+".part")
}

func TestNewDownloader(t *testing.T) {
	d, err := NewDownloader("", nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPDownloader{}, d)

	d, err = NewDownloader("HTTP", nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTPDownloader{}, d)

	_, err = NewDownloader("ftp", nil)
	assert.Error(t, err)
}

func TestCommandDownloader_UnknownTool(t *testing.T) {
	d := &CommandDownloader{Tool: "aria2c"}
	err := d.Download(context.Background(), "http://example.invalid/x.deb", filepath.Join(t.TempDir(), "x.deb"))
	assert.Error(t, err)
}
