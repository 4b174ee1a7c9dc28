package sysroot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// scratchDirName holds per-package unpack directories under the work dir.
const scratchDirName = ".debsysroot-work"

// Downloader stores the content of uri at dest.
type Downloader interface {
	Download(ctx context.Context, uri, dest string) error
}

// HTTPDownloader fetches archives with net/http.
type HTTPDownloader struct {
	Client   *http.Client
	Progress bool // Progress draws a byte progress bar on stderr
}

func NewHTTPDownloader() *HTTPDownloader {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &HTTPDownloader{
		Client:   &http.Client{Transport: transport},
		Progress: term.IsTerminal(int(os.Stderr.Fd())),
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, uri, dest string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http get failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %s", resp.Status)
	}

	return writeAtomically(dest, func(out io.Writer) error {
		if d.Progress {
			bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(dest))
			defer bar.Close()
			out = io.MultiWriter(out, bar)
		}
		_, err := io.Copy(out, resp.Body)
		return err
	})
}

// CommandDownloader shells out to curl or wget.
type CommandDownloader struct {
	Exec *Executor
	Tool string // "curl" or "wget"
}

func (d *CommandDownloader) Download(ctx context.Context, uri, dest string) error {
	part := dest + ".part"
	var cmd *exec.Cmd
	switch d.Tool {
	case "curl":
		cmd = exec.Command("curl", "-L", "--fail", "-sS", "-o", part, uri)
	case "wget":
		cmd = exec.Command("wget", "-nv", "-O", part, uri)
	default:
		return fmt.Errorf("unsupported download tool %q", d.Tool)
	}
	execCtx := NewExecutor(ctx)
	if d.Exec != nil {
		e := *d.Exec
		e.Context = ctx
		execCtx = &e
	}
	if _, err := execCtx.Output(cmd); err != nil {
		_ = os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}

// NewDownloader picks a backend by name: "http" (default), "curl" or "wget".
func NewDownloader(kind string, execCtx *Executor) (Downloader, error) {
	kind = strings.ToLower(kind)
	switch kind {
	case "", "http":
		return NewHTTPDownloader(), nil
	case "curl", "wget":
		if _, err := exec.LookPath(kind); err != nil {
			return nil, fmt.Errorf("%s not found in PATH", kind)
		}
		return &CommandDownloader{Exec: execCtx, Tool: kind}, nil
	}
	return nil, fmt.Errorf("unknown downloader %q (want http, curl or wget)", kind)
}

// writeAtomically writes to dest.part and renames it into place once fill succeeds.
func writeAtomically(dest string, fill func(io.Writer) error) error {
	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", part, err)
	}
	if err := fill(out); err != nil {
		out.Close()
		_ = os.Remove(part)
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return err
	}
	return os.Rename(part, dest)
}

// FetchAndExtract downloads and unpacks every descriptor into root, one at a time.
// Archives already present in root are not downloaded again.
func FetchAndExtract(ctx context.Context, descs []Descriptor, root string, dl Downloader) error {
	scratchRoot := filepath.Join(root, scratchDirName)
	defer os.RemoveAll(scratchRoot)

	for i, d := range descs {
		if err := ctx.Err(); err != nil {
			return err
		}
		debPath := filepath.Join(root, d.FileName)
		if _, err := os.Stat(debPath); err == nil {
			debugf("%s already present, skipping download\n", d.FileName)
		} else {
			arrowf(colSuccess, "downloading (%d/%d) %s\n", i+1, len(descs), d.URI)
			if err := dl.Download(ctx, d.URI, debPath); err != nil {
				return stageErr(StageFetch, d.URI, err)
			}
		}

		arrowf(colSuccess, "extracting %s\n", d.FileName)
		if err := extractDeb(debPath, root, scratchRoot); err != nil {
			return stageErr(StageExtract, d.URI, err)
		}
	}
	return nil
}

// extractDeb unpacks one .deb through its own scratch dir and overlays the
// payload tree onto root.
func extractDeb(debPath, root, scratchRoot string) error {
	stem := strings.TrimSuffix(filepath.Base(debPath), filepath.Ext(debPath))
	scratch := filepath.Join(scratchRoot, stem)
	defer func() {
		_ = os.RemoveAll(scratch)
		removeIntermediates(root)
	}()

	members, err := unpackDeb(debPath, scratch)
	if err != nil {
		return err
	}
	debugf("%s members: %s\n", filepath.Base(debPath), strings.Join(members, " "))

	payload, err := findPayload(scratch)
	if err != nil {
		return err
	}
	debugf("extracting payload %s\n", filepath.Base(payload))
	return extractPayload(payload, root)
}
