package sysroot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDependsLines(t *testing.T) {
	lines := []string{
		"libopus-dev",
		"  Depends: libopus0",
		" |Depends: libfoo1",
		"  Depends: libbar1",
		"  PreDepends: libc6",
		"  Depends: <debconf-2.0>",
		"  Recommends: libopus-doc",
		"libopus0",
		"  Depends: libc6",
		"",
		"  Depends:",
	}
	got := ParseDependsLines(lines)
	assert.Equal(t, []string{"libopus0", "libbar1", "libc6"}, got)
}

func TestParseDependsLines_FilteredFormsNeverLeak(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"alternative", " |Depends: libreal"},
		{"predepends", "  PreDepends: libreal"},
		{"virtual", "  Depends: <libreal>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ParseDependsLines([]string{tt.line}))
		})
	}
}

func TestResolve_SingleSeed(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"libopus-dev": {"libopus-dev", "  Depends: libopus0", "libopus0"},
	}}
	got, err := Resolve(context.Background(), []string{"libopus-dev"}, []string{"libc6"}, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"libopus-dev", "libopus0"}, got)
}

func TestResolve_ExcludesBasePackages(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"pkgA": {"pkgA", "  Depends: pkgB", "  Depends: libc6", "pkgB", "libc6"},
	}}
	got, err := Resolve(context.Background(), []string{"pkgA"}, []string{"libc6"}, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkgA", "pkgB"}, got)
}

func TestResolve_SharedDependencyAppearsOnce(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"libvorbis-dev": {"  Depends: libogg0", "  Depends: libvorbis0a"},
		"libopus-dev":   {"  Depends: libogg0", "  Depends: libopus0"},
	}}
	got, err := Resolve(context.Background(), []string{"libvorbis-dev", "libopus-dev"}, nil, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"libogg0", "libopus-dev", "libopus0", "libvorbis-dev", "libvorbis0a"}, got)
}

func TestResolve_ExcludedSeedIsDropped(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"libc6":  {"  Depends: libgcc-s1"},
		"libfoo": {"  Depends: libc6"},
	}}
	exclude := []string{"libc6", "libgcc-s1"}
	got, err := Resolve(context.Background(), []string{"libc6", "libfoo"}, exclude, idx)
	require.NoError(t, err)
	assert.Equal(t, []string{"libfoo"}, got)
	for _, e := range exclude {
		assert.NotContains(t, got, e)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"a": {"  Depends: b", "  Depends: c"},
		"b": {"  Depends: c"},
	}}
	first, err := Resolve(context.Background(), []string{"a", "b"}, []string{"c"}, idx)
	require.NoError(t, err)
	second, err := Resolve(context.Background(), []string{"b", "a"}, []string{"c"}, idx)
	require.NoError(t, err)
	assert.ElementsMatch(t, first, second)
}

func TestResolve_QueryFailureIsFatal(t *testing.T) {
	idx := &fakeIndex{
		depends: map[string][]string{"good": {"  Depends: dep"}},
		failOn:  "missing",
	}
	got, err := Resolve(context.Background(), []string{"good", "missing", "never"}, nil, idx)
	require.Error(t, err)
	assert.Nil(t, got)

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageResolve, se.Stage)
	assert.Equal(t, "missing", se.Subject)
	assert.Contains(t, err.Error(), "resolve missing")
	assert.NotContains(t, idx.queried, "never")
}

func TestResolveArch_QualifiesQueriesAndStripsSuffix(t *testing.T) {
	idx := &fakeIndex{depends: map[string][]string{
		"libopus-dev:armhf": {"libopus-dev:armhf", "  Depends: libopus0:armhf", "  Depends: libc6:armhf"},
	}}
	got, err := resolveArch(context.Background(), []string{"libopus-dev"}, []string{"libc6"}, idx, "armhf")
	require.NoError(t, err)
	assert.Equal(t, []string{"libopus-dev", "libopus0"}, got)
	assert.Equal(t, []string{"libopus-dev:armhf"}, idx.queried)
}
