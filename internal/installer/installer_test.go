package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honey-installer/internal/logger"
	"honey-installer/internal/shell"
	"honey-installer/internal/testutil"
)

func digest(b []byte) string {
	s := sha256.Sum256(b)
	return hex.EncodeToString(s[:])
}

func serve(t *testing.T, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mysql-installer/test", r.Header.Get("User-Agent"))
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFetcher(dir string) *Fetcher {
	return &Fetcher{Dir: dir, UserAgent: "mysql-installer/test", Console: logger.New(io.Discard, true, false)}
}

func TestFetchRawBinary(t *testing.T) {
	body := []byte("#!/bin/sh\necho honeytail\n")
	srv := serve(t, http.StatusOK, body)
	dir := t.TempDir()

	path, err := newFetcher(dir).Fetch(context.Background(), "honeytail", Artifact{URL: srv.URL + "/download/honeytail/linux/1.8.3", SHA256: digest(body)}, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "honeytail"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.NoFileExists(t, path+"-tmp")
}

func TestFetchWithoutChecksumSkipsVerification(t *testing.T) {
	srv := serve(t, http.StatusOK, []byte("anything"))
	dir := t.TempDir()

	path, err := newFetcher(dir).Fetch(context.Background(), "honeytail", Artifact{URL: srv.URL}, false)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestFetchNon200LeavesNothing(t *testing.T) {
	srv := serve(t, http.StatusNotFound, []byte("nope"))
	dir := t.TempDir()

	_, err := newFetcher(dir).Fetch(context.Background(), "honeytail", Artifact{URL: srv.URL}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDownload))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchChecksumMismatchKeepsBadCopy(t *testing.T) {
	srv := serve(t, http.StatusOK, []byte("tampered"))
	dir := t.TempDir()

	_, err := newFetcher(dir).Fetch(context.Background(), "honeytail", Artifact{URL: srv.URL, SHA256: digest([]byte("original"))}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, digest([]byte("tampered")), ce.Actual)

	assert.NoFileExists(t, filepath.Join(dir, "honeytail"))
	assert.NoFileExists(t, filepath.Join(dir, "honeytail-tmp"))
	assert.FileExists(t, filepath.Join(dir, "honeytail-badchecksum"))
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(content)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestFetchArchiveExtractsBinary(t *testing.T) {
	archive := tarGz(t, map[string]string{
		"honeytail-1.8.3/README.md": "docs",
		"honeytail-1.8.3/honeytail": "binary",
	})
	srv := serve(t, http.StatusOK, archive)
	dir := t.TempDir()

	path, err := newFetcher(dir).Fetch(context.Background(), "honeytail", Mirror(srv.URL+"/honeytail-1.8.3-linux-amd64.tar.gz", digest(archive)), true)
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "archive and extraction directory should be cleaned up")
	assert.Equal(t, "honeytail", entries[0].Name())
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.tar.gz")
	require.NoError(t, os.WriteFile(src, tarGz(t, map[string]string{"../honeytail": "x"}), 0o644))

	err := extractArchive(src, ".tar.gz", filepath.Join(dir, "out"))
	assert.Error(t, err)
}

func TestArchiveExt(t *testing.T) {
	tests := map[string]string{
		"https://honeycomb.io/download/honeytail/linux/1.8.3":       "",
		"https://mirror/honeytail-1.8.3.tar.gz":                     ".tar.gz",
		"https://mirror/honeytail.TGZ":                              ".tgz",
		"https://mirror/honeytail.tar.xz?token=abc":                 ".tar.xz",
		"https://mirror/honeytail.7z":                               ".7z",
		"https://mirror/honeytail_1.8.3_darwin_arm64.zip#fragment":  ".zip",
	}
	for u, want := range tests {
		assert.Equal(t, want, Artifact{URL: u}.archiveExt(), u)
	}
}

func TestIsCurrent(t *testing.T) {
	tests := []struct {
		reported string
		want     bool
	}{
		{PinnedVersion, true},
		{"1.8.4", true},
		{"2.0.0", true},
		{"1.8.2", false},
		{"1.1.4", false},
		{"dev", true},
		{"not-a-version", true},
	}
	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCurrent(tt.reported, PinnedVersion))
		})
	}
}

func TestParseVersionOutput(t *testing.T) {
	assert.Equal(t, "1.8.3", parseVersionOutput("Honeytail version 1.8.3\n"))
	assert.Equal(t, "dev", parseVersionOutput("Honeytail version dev"))
}

func TestPinned(t *testing.T) {
	a, err := Pinned("linux")
	require.NoError(t, err)
	assert.Equal(t, "https://honeycomb.io/download/honeytail/linux/"+PinnedVersion, a.URL)

	_, err = Pinned("windows")
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
}

func TestEnsure(t *testing.T) {
	body := []byte("fresh honeytail")

	tests := []struct {
		name      string
		existing  bool
		version   string
		startErr  error
		wantFetch bool
	}{
		{name: "missing binary is fetched", existing: false, wantFetch: true},
		{name: "current binary is kept", existing: true, version: "Honeytail version " + PinnedVersion},
		{name: "dev binary is kept", existing: true, version: "Honeytail version dev"},
		{name: "old binary is replaced", existing: true, version: "Honeytail version 1.0.0", wantFetch: true},
		{name: "unrunnable binary is replaced", existing: true, startErr: errors.New("exec format error"), wantFetch: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, http.StatusOK, body)
			dir := t.TempDir()
			loc := filepath.Join(dir, "bin", "honeytail")
			if tt.existing {
				require.NoError(t, os.MkdirAll(filepath.Dir(loc), 0o755))
				require.NoError(t, os.WriteFile(loc, []byte("old"), 0o755))
			}
			runner := &testutil.FakeRunner{Respond: func(c shell.Cmd) (shell.Result, error) {
				return shell.Result{Output: tt.version}, tt.startErr
			}}
			e := &Ensurer{
				Fetcher:  newFetcher(dir),
				Runner:   runner,
				Console:  logger.New(io.Discard, false, false),
				Artifact: Artifact{URL: srv.URL, SHA256: digest(body)},
			}

			got, err := e.Ensure(context.Background(), loc)
			require.NoError(t, err)
			if tt.wantFetch {
				assert.Equal(t, filepath.Join(dir, "honeytail"), got)
			} else {
				assert.Equal(t, loc, got)
			}
			if tt.existing {
				require.Len(t, runner.Calls, 1)
				assert.Equal(t, []string{"--version"}, runner.Calls[0].Cmd.Args)
			}
		})
	}
}

func TestEnsureUnsupportedPlatform(t *testing.T) {
	e := &Ensurer{
		Fetcher:     newFetcher(t.TempDir()),
		Runner:      &testutil.FakeRunner{},
		Console:     logger.New(io.Discard, false, false),
		PlatformErr: ErrUnsupportedPlatform,
	}
	_, err := e.Ensure(context.Background(), filepath.Join(t.TempDir(), "nothing", "honeytail"))
	assert.True(t, errors.Is(err, ErrUnsupportedPlatform))
}
