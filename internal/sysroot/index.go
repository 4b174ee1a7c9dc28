package sysroot

import (
	"context"
	"os/exec"
	"strings"
)

// PackageIndex answers the two questions the pipeline asks of apt.
type PackageIndex interface {
	// Depends returns the raw, line-oriented recursive dependency listing for pkg.
	Depends(ctx context.Context, pkg string) ([]string, error)
	// DownloadURIs returns one "<uri> <file> <size> <hash>" line per package.
	DownloadURIs(ctx context.Context, pkgs []string) ([]string, error)
}

// dependsFlags limits apt-cache output to hard dependencies.
var dependsFlags = []string{
	"depends", "--recurse",
	"--no-recommends", "--no-suggests", "--no-conflicts",
	"--no-breaks", "--no-replaces", "--no-enhances",
}

// AptIndex queries the host's apt cache.
type AptIndex struct {
	Exec     *Executor
	AptCache string // defaults to "apt-cache"
	Apt      string // defaults to "apt"
}

func NewAptIndex(execCtx *Executor) *AptIndex {
	return &AptIndex{Exec: execCtx, AptCache: "apt-cache", Apt: "apt"}
}

func (a *AptIndex) Depends(ctx context.Context, pkg string) ([]string, error) {
	args := append(append([]string{}, dependsFlags...), pkg)
	out, err := a.executor(ctx).Output(exec.Command(orDefault(a.AptCache, "apt-cache"), args...))
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (a *AptIndex) DownloadURIs(ctx context.Context, pkgs []string) ([]string, error) {
	args := append([]string{"download", "--print-uris"}, pkgs...)
	out, err := a.executor(ctx).Output(exec.Command(orDefault(a.Apt, "apt"), args...))
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (a *AptIndex) executor(ctx context.Context) *Executor {
	if a.Exec == nil {
		return NewExecutor(ctx)
	}
	e := *a.Exec
	e.Context = ctx
	return &e
}

func splitLines(b []byte) []string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
