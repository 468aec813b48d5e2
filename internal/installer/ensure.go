package installer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"honey-installer/internal/logger"
	"honey-installer/internal/shell"
)

// Ensurer makes sure a usable honeytail binary is available.
type Ensurer struct {
	Fetcher *Fetcher
	Runner  shell.Runner
	Console *logger.Console

	// Artifact is what gets downloaded when the existing binary is missing
	// or too old. A zero Artifact means the platform has no published
	// build; PlatformErr then explains why.
	Artifact    Artifact
	PlatformErr error
}

// Ensure returns the absolute path of a honeytail binary that is at least
// PinnedVersion.
//
// loc is tried first. A bare name (the default "honeytail") is looked up in
// the working directory and then on PATH. If nothing is found, or the binary
// found reports an older version, the pinned artifact is downloaded to
// ./honeytail and that path is returned instead.
func (e *Ensurer) Ensure(ctx context.Context, loc string) (string, error) {
	found, ok := lookup(loc)
	if !ok {
		if loc == DefaultLocation {
			e.Console.Info("Downloading honeytail version %s.", PinnedVersion)
		} else {
			e.Console.Info("Couldn't find honeytail at %s.", loc)
			e.Console.Info("Downloading honeytail version %s to ./honeytail.", PinnedVersion)
		}
		return e.fetch(ctx)
	}

	version, current := e.checkVersion(ctx, found)
	if current {
		e.Console.Success("Found usable honeytail binary (version %s)", version)
		e.Console.Println()
		return found, nil
	}

	if loc != DefaultLocation {
		e.Console.Info("Honeytail version at %s is too old (%s).", loc, version)
		e.Console.Info("Downloading new version (%s) to ./honeytail.", PinnedVersion)
	} else {
		e.Console.Info("Honeytail version is too old (%s).", version)
		e.Console.Info("Downloading new version of honeytail (%s)", PinnedVersion)
	}
	return e.fetch(ctx)
}

func (e *Ensurer) fetch(ctx context.Context) (string, error) {
	if e.Artifact.URL == "" {
		err := e.PlatformErr
		if err == nil {
			err = ErrUnsupportedPlatform
		}
		return "", err
	}
	path, err := e.Fetcher.Fetch(ctx, "honeytail", e.Artifact, true)
	if err != nil {
		return "", err
	}
	return filepath.Abs(path)
}

// checkVersion runs `<path> --version` and compares the answer with
// PinnedVersion. A binary that cannot be executed reports "unknown" and is
// treated as outdated.
func (e *Ensurer) checkVersion(ctx context.Context, path string) (string, bool) {
	res, err := e.Runner.Capture(ctx, shell.Cmd{Name: path, Args: []string{"--version"}, CombineOutput: true})
	if err != nil || res.ExitCode != 0 {
		e.Console.Debug("%s --version failed (exit %d): %v", path, res.ExitCode, err)
		return "unknown", false
	}
	version := parseVersionOutput(res.Output)
	e.Console.Debug("existing honeytail reports version %q", version)
	return version, IsCurrent(version, PinnedVersion)
}

// lookup resolves loc to an absolute path of an existing regular file.
func lookup(loc string) (string, bool) {
	if isFile(loc) {
		abs, err := filepath.Abs(loc)
		return abs, err == nil
	}
	if strings.ContainsRune(loc, os.PathSeparator) {
		return "", false
	}
	p, err := exec.LookPath(loc)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	return abs, err == nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// UnsupportedMessage is the explanation printed when no build exists for the platform.
func UnsupportedMessage(installerName, platform string) string {
	return fmt.Sprintf(`Sorry, %s auto configuration is not supported for %s.
Please see the docs or ask for further assistance.
https://honeycomb.io/docs/send-data/agent/`, installerName, platform)
}
