package installer

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// PinnedVersion is the honeytail release this installer fetches, and the
// minimum version it accepts from an existing binary.
const PinnedVersion = "1.8.3"

// DefaultLocation is the honeytail location used when the user gives none.
// It is a bare command name; see Ensurer.Ensure for how it is resolved.
const DefaultLocation = "honeytail"

// Release checksums are stamped in at build time, e.g.
//
//	go build -ldflags "-X honey-installer/internal/installer.linuxSHA256=<hex>"
//
// An empty checksum disables verification for that platform.
var (
	linuxSHA256  = ""
	darwinSHA256 = ""
)

// Artifact is one downloadable honeytail build.
type Artifact struct {
	Version string
	URL     string
	// SHA256 is the expected lowercase hex digest; empty skips verification.
	SHA256 string
}

// Pinned returns the honeycomb.io artifact for goos.
// Only Linux and macOS builds are published.
func Pinned(goos string) (Artifact, error) {
	var sum string
	switch goos {
	case "linux":
		sum = linuxSHA256
	case "darwin":
		sum = darwinSHA256
	default:
		return Artifact{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
	return Artifact{
		Version: PinnedVersion,
		URL:     fmt.Sprintf("https://honeycomb.io/download/honeytail/%s/%s", goos, PinnedVersion),
		SHA256:  sum,
	}, nil
}

// Mirror builds an artifact for a user-provided download URL.
func Mirror(rawURL, sha256 string) Artifact {
	return Artifact{Version: PinnedVersion, URL: rawURL, SHA256: strings.ToLower(strings.TrimSpace(sha256))}
}

var archiveExts = []string{".tar.gz", ".tgz", ".tar.bz2", ".tar.xz", ".tar", ".zip", ".7z"}

// archiveExt returns the archive extension of the artifact's URL path,
// or "" when the artifact is a bare executable.
func (a Artifact) archiveExt() string {
	p := a.URL
	if u, err := url.Parse(a.URL); err == nil {
		p = u.Path
	}
	base := strings.ToLower(path.Base(p))
	for _, ext := range archiveExts {
		if strings.HasSuffix(base, ext) {
			return ext
		}
	}
	return ""
}
