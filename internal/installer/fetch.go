package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"

	"honey-installer/internal/logger"
)

var (
	// ErrUnsupportedPlatform means no honeytail build is published for this OS.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrDownload means the artifact could not be retrieved.
	ErrDownload = errors.New("download failed")
	// ErrChecksumMismatch means the artifact did not match its recorded digest.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ChecksumError carries both digests of a failed verification.
type ChecksumError struct {
	Expected string
	Actual   string
	// Kept is where the rejected download was moved for inspection.
	Kept string
}

// Error reports both digests and where the rejected file was kept.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected %s but received %s (kept at %s)", e.Expected, e.Actual, e.Kept)
}

// Unwrap makes a ChecksumError match ErrChecksumMismatch.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// Fetcher downloads artifacts into a directory.
type Fetcher struct {
	Client    *http.Client
	Dir       string // destination directory, the working directory when empty
	UserAgent string
	Console   *logger.Console
	// Progress enables a progress bar on the console while downloading.
	Progress bool
}

// Fetch downloads a into Dir/name and returns the path.
//
// The body is written to name-tmp first. On a non-200 response nothing is
// written. A digest mismatch moves the partial file to name-badchecksum so it
// cannot be mistaken for a good download. Archive artifacts are unpacked and
// only the executable is kept. When executable is set, the result is mode 0755.
func (f *Fetcher) Fetch(ctx context.Context, name string, a Artifact, executable bool) (string, error) {
	dir := f.Dir
	if dir == "" {
		dir = "."
	}
	dest := filepath.Join(dir, name)
	ext := a.archiveExt()
	tmp := dest + "-tmp" + ext

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	f.Console.Debug("GET %s", a.URL)
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.Console.Debug("failed to close response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		f.Console.Debug("response status code = %d", resp.StatusCode)
		return "", fmt.Errorf("%w: there was an error downloading %s, please try again or let us know what happened", ErrDownload, name)
	}

	sum := sha256.New()
	if err := f.writeBody(tmp, resp, sum); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}

	if a.SHA256 != "" {
		actual := hex.EncodeToString(sum.Sum(nil))
		if actual != a.SHA256 {
			kept := dest + "-badchecksum"
			if err := os.Rename(tmp, kept); err != nil {
				_ = os.Remove(tmp)
				kept = ""
			}
			return "", &ChecksumError{Expected: a.SHA256, Actual: actual, Kept: kept}
		}
		f.Console.Success("Download verified")
	}

	if ext != "" {
		if err := f.unpack(tmp, ext, dir, name, dest); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
		}
	} else if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}

	if executable {
		if err := os.Chmod(dest, 0o755); err != nil {
			return "", fmt.Errorf("failed to mark %s executable: %w", dest, err)
		}
	}
	f.Console.Println()
	return dest, nil
}

// writeBody streams resp into path, hashing as it goes.
func (f *Fetcher) writeBody(path string, resp *http.Response, sum hash.Hash) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	w := io.MultiWriter(out, sum)
	if f.Progress {
		bar := progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(f.Console.Writer()),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(50),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(f.Console.Writer()) }),
		)
		w = io.MultiWriter(out, sum, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// unpack extracts the executable from the archive at tmp into dest and
// removes everything else it wrote.
func (f *Fetcher) unpack(tmp, ext, dir, name, dest string) error {
	defer os.Remove(tmp)

	bin, work, err := extractBinary(tmp, ext, dir, name)
	if work != "" {
		defer os.RemoveAll(work)
	}
	if err != nil {
		return err
	}
	f.Console.Debug("extracted %s from %s", bin, filepath.Base(tmp))
	return os.Rename(bin, dest)
}
