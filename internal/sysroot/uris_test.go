package sysroot

import (
	"bytes"
	"context"
	"io"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURILines(t *testing.T) {
	lines := []string{
		"'http://deb.debian.org/debian/pool/main/o/opus/libopus0_1.3.1-3_armhf.deb' libopus0_1.3.1-3_armhf.deb 190788 SHA256:abc",
		"",
		"   ",
		"Reading package lists...",
		`"http://deb.debian.org/debian/pool/main/s/systemd/libudev1_252.22-1%7edeb12u1_armhf.deb" libudev1_252.22-1~deb12u1_armhf.deb 100 SHA256:def`,
		"http://mirror.example/pool/libfoo_1%3a2.0_armhf.deb",
		"'http://mirror.example/' broken.deb 1 SHA256:0",
	}
	got := ParseURILines(lines)
	require.Len(t, got, 3)

	assert.Equal(t, Descriptor{
		Package:  "libopus0",
		URI:      "http://deb.debian.org/debian/pool/main/o/opus/libopus0_1.3.1-3_armhf.deb",
		FileName: "libopus0_1.3.1-3_armhf.deb",
	}, got[0])
	assert.Equal(t, "libudev1", got[1].Package)
	assert.Equal(t, "libudev1_252.22-1~deb12u1_armhf.deb", got[1].FileName)
	assert.Equal(t, "libfoo", got[2].Package)
	assert.Equal(t, "libfoo_1:2.0_armhf.deb", got[2].FileName)
}

func TestParseURILines_WarnsOnSkippedLines(t *testing.T) {
	var out bytes.Buffer
	SetOutput(&out)
	t.Cleanup(func() { SetOutput(io.Discard) })

	got := ParseURILines([]string{"Reading package lists...", "'http://m/pool/a_1_armhf.deb' a_1_armhf.deb 1 SHA256:2"})
	require.Len(t, got, 1)
	assert.Contains(t, out.String(), `skipping index line "Reading package lists..."`)
}

func TestResolveURIs_SingleBatchedQuery(t *testing.T) {
	idx := &fakeIndex{uris: []string{
		"'http://m/pool/b_1_armhf.deb' b_1_armhf.deb 1 SHA256:1",
		"'http://m/pool/a_1_armhf.deb' a_1_armhf.deb 1 SHA256:2",
	}}
	got, err := ResolveURIs(context.Background(), []string{"a", "b"}, idx)
	require.NoError(t, err)
	require.Len(t, idx.uriCalls, 1)
	assert.Equal(t, []string{"a", "b"}, idx.uriCalls[0])

	// response order wins over input order
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Package)
	assert.Equal(t, "a", got[1].Package)
}

func TestResolveURIs_EmptySetSkipsQuery(t *testing.T) {
	idx := &fakeIndex{}
	got, err := ResolveURIs(context.Background(), nil, idx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, idx.uriCalls)
}

func TestResolveURIs_QueryFailureIsFatal(t *testing.T) {
	idx := &fakeIndex{uriErr: errors.New("E: Unable to locate package a")}
	_, err := ResolveURIs(context.Background(), []string{"a"}, idx)
	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageURIs, se.Stage)
	assert.Contains(t, err.Error(), "Unable to locate package a")
}
