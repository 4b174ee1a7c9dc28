package sysroot

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Descriptor ties a package to the archive that provides it.
type Descriptor struct {
	Package  string
	URI      string
	FileName string
}

// ResolveURIs asks the index for every package's download location in one query.
func ResolveURIs(ctx context.Context, packages []string, index PackageIndex) ([]Descriptor, error) {
	if len(packages) == 0 {
		return nil, nil
	}
	lines, err := index.DownloadURIs(ctx, packages)
	if err != nil {
		return nil, stageErr(StageURIs, strings.Join(packages, " "), err)
	}
	return ParseURILines(lines), nil
}

// ParseURILines parses `apt download --print-uris` output, keeping response
// order. Lines without a usable URI are skipped.
func ParseURILines(lines []string) []Descriptor {
	var descs []Descriptor
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		uri := strings.Trim(fields[0], `'"`)
		fileName, err := fileNameFromURI(uri)
		if err != nil {
			arrowf(colWarn, "skipping index line %q: %v\n", line, err)
			continue
		}
		pkg := fileName
		if len(fields) > 1 {
			pkg = strings.Trim(fields[1], `'"`)
		}
		if i := strings.Index(pkg, "_"); i > 0 {
			pkg = pkg[:i]
		}
		descs = append(descs, Descriptor{Package: pkg, URI: uri, FileName: fileName})
	}
	return descs
}

// fileNameFromURI returns the percent-decoded last path segment of uri.
func fileNameFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", err
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("not an absolute URI")
	}
	// u.Path is already decoded
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", fmt.Errorf("no file name in %s", uri)
	}
	return name, nil
}
