package sysroot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// BuildOptions wires the collaborators for one run.
type BuildOptions struct {
	WorkDir    string
	Index      PackageIndex
	Downloader Downloader
	Bundler    Bundler
	Publisher  *Publisher // nil disables publishing
}

// Result summarizes a finished run.
type Result struct {
	Packages        []string
	Descriptors     []Descriptor
	SymlinkFailures []error
	BundlePath      string
}

// Plan resolves the package set and download locations without touching the disk.
func Plan(ctx context.Context, target Target, index PackageIndex) ([]string, []Descriptor, error) {
	pkgs, err := resolveArch(ctx, target.Packages, target.Exclude, index, target.Arch)
	if err != nil {
		return nil, nil, err
	}
	arrowf(colSuccess, "%d packages after excluding %d base packages\n", len(pkgs), len(target.Exclude))

	descs, err := ResolveURIs(ctx, qualifyAll(pkgs, target.Arch), index)
	if err != nil {
		return pkgs, nil, err
	}
	return pkgs, descs, nil
}

// Build runs the whole pipeline for target inside opts.WorkDir.
func Build(ctx context.Context, target Target, opts BuildOptions) (*Result, error) {
	root, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, stageErr(StageClean, opts.WorkDir, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, stageErr(StageClean, root, err)
	}
	if root, err = filepath.EvalSymlinks(root); err != nil {
		return nil, stageErr(StageClean, opts.WorkDir, err)
	}
	if opts.Index == nil || opts.Downloader == nil {
		return nil, fmt.Errorf("build %s: package index and downloader are required", target.Name)
	}
	bundler := opts.Bundler
	if bundler == nil {
		bundler = &TarBundler{Digest: true}
	}

	if n := removePackageFiles(root); n > 0 {
		debugf("removed %d stale package files\n", n)
	}

	res := &Result{}
	res.Packages, res.Descriptors, err = Plan(ctx, target, opts.Index)
	if err != nil {
		return res, err
	}

	if err := FetchAndExtract(ctx, res.Descriptors, root, opts.Downloader); err != nil {
		return res, err
	}

	arrowf(colSuccess, "normalizing symlinks\n")
	res.SymlinkFailures = NormalizeSymlinks(root)
	if n := len(res.SymlinkFailures); n > 0 {
		arrowf(colWarn, "%d symlinks could not be rewritten\n", n)
	}

	removePackageFiles(root)

	bundleName := target.Bundle
	if bundleName == "" {
		bundleName = defaultBundleName
	}
	res.BundlePath, err = bundler.Bundle(root, bundleName)
	if err != nil {
		return res, stageErr(StageBundle, bundleName, err)
	}

	if opts.Publisher != nil {
		if err := opts.Publisher.Publish(ctx, res.BundlePath); err != nil {
			return res, stageErr(StagePublish, res.BundlePath, err)
		}
	}
	return res, nil
}

func qualifyAll(pkgs []string, arch string) []string {
	if arch == "" {
		return pkgs
	}
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = qualify(p, arch)
	}
	return out
}
