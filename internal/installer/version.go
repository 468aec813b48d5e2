package installer

import (
	"strings"

	"golang.org/x/mod/semver"
)

// devVersion is what locally built honeytail binaries report.
const devVersion = "dev"

// parseVersionOutput extracts the version from `honeytail --version`
// output, which looks like "Honeytail version 1.8.3".
func parseVersionOutput(out string) string {
	return strings.TrimSpace(strings.Replace(out, "Honeytail version", "", 1))
}

// IsCurrent reports whether reported is at least minimum.
//
// The "dev" sentinel is always current, and so is anything that is not a
// semantic version: there is no ordering to prove it stale.
func IsCurrent(reported, minimum string) bool {
	if reported == devVersion {
		return true
	}
	v, m := canonical(reported), canonical(minimum)
	if !semver.IsValid(v) || !semver.IsValid(m) {
		return true
	}
	return semver.Compare(v, m) >= 0
}

// canonical adds the "v" prefix golang.org/x/mod/semver requires.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// CompareVersions compares two dotted versions, returning -1, 0 or 1.
// Versions that do not parse sort before every valid version.
func CompareVersions(a, b string) int {
	return semver.Compare(canonical(a), canonical(b))
}
