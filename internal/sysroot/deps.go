package sysroot

import (
	"context"
	"maps"
	"slices"
	"strings"
)

// ParseDependsLines extracts concrete package names from `apt-cache depends`
// output. Alternatives ("|Depends:"), pre-dependencies and virtual packages
// ("<name>") are not installable by name and are dropped.
func ParseDependsLines(lines []string) []string {
	var names []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "|"):
			continue
		case strings.HasPrefix(line, "PreDepends:"):
			continue
		case strings.HasPrefix(line, "Depends:"):
			name := strings.TrimSpace(strings.TrimPrefix(line, "Depends:"))
			if name == "" || strings.HasPrefix(name, "<") {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}

// Resolve computes the sorted dependency closure of seeds, minus exclude.
// Seeds are part of the closure. A failed index query aborts resolution.
func Resolve(ctx context.Context, seeds, exclude []string, index PackageIndex) ([]string, error) {
	return resolveArch(ctx, seeds, exclude, index, "")
}

func resolveArch(ctx context.Context, seeds, exclude []string, index PackageIndex, arch string) ([]string, error) {
	set := make(map[string]bool)
	for _, seed := range seeds {
		arrowf(colSuccess, "scanning %s\n", seed)
		lines, err := index.Depends(ctx, qualify(seed, arch))
		if err != nil {
			return nil, stageErr(StageResolve, seed, err)
		}
		set[seed] = true
		deps := ParseDependsLines(lines)
		for _, dep := range deps {
			set[unqualify(dep, arch)] = true
		}
		debugf("%s: %d dependency lines\n", seed, len(deps))
	}

	for _, name := range exclude {
		delete(set, name)
	}
	return slices.Sorted(maps.Keys(set)), nil
}

func qualify(pkg, arch string) string {
	if arch == "" || strings.Contains(pkg, ":") {
		return pkg
	}
	return pkg + ":" + arch
}

func unqualify(pkg, arch string) string {
	if arch == "" {
		return pkg
	}
	return strings.TrimSuffix(pkg, ":"+arch)
}
