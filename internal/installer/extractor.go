package installer

import (
	"archive/tar"    // For reading .tar archives
	"archive/zip"    // For reading .zip archives
	"compress/bzip2" // For reading .bz2 compressed data
	"compress/gzip"  // For reading .gz compressed data
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip" // For reading .7z archives
	"github.com/xi2/xz"          // For reading .xz compressed data
)

// errNoBinary is returned when an archive holds no file that looks like the wanted executable.
var errNoBinary = errors.New("no executable found in archive")

// extractBinary unpacks the archive at src into a fresh directory under dir
// and returns the path of the executable called name inside it, along with
// the directory so the caller can clean it up.
func extractBinary(src, ext, dir, name string) (binPath, workDir string, err error) {
	workDir, err = os.MkdirTemp(dir, name+"-extract-")
	if err != nil {
		return "", "", fmt.Errorf("cannot create extraction directory: %w", err)
	}

	if err := extractArchive(src, ext, workDir); err != nil {
		return "", workDir, err
	}

	binPath, err = findExecutable(workDir, name)
	if err != nil {
		return "", workDir, err
	}
	return binPath, workDir, nil
}

// extractArchive routes to the extraction function for the archive type.
// ext is passed explicitly because the downloaded file keeps a temporary name.
func extractArchive(src, ext, dest string) error {
	switch ext {
	case ".zip":
		return extractZip(src, dest)
	case ".7z":
		return extract7z(src, dest)
	case ".tar", ".tar.gz", ".tgz", ".tar.bz2", ".tar.xz":
		return extractTar(src, ext, dest)
	default:
		return fmt.Errorf("unsupported archive format: %s", ext)
	}
}

// safeJoin joins an archive member name onto dest, refusing names that
// would land outside dest ("../../etc/passwd" and absolute paths).
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}
	return target, nil
}

// writeFile copies r into path, creating parent directories.
func writeFile(path string, r io.Reader, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// extractTar handles tar and the compressed tar variants.
func extractTar(src, ext, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var reader io.Reader = f
	switch ext {
	case ".tar.gz", ".tgz":
		gr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		defer gr.Close()
		reader = gr
	case ".tar.bz2":
		reader = bzip2.NewReader(f)
	case ".tar.xz":
		xzr, err := xz.NewReader(f, 0)
		if err != nil {
			return err
		}
		reader = xzr
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode)); err != nil {
				return err
			}
		}
	}
}

// extractZip extracts a .zip archive.
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// extract7z handles .7z extraction using the sevenzip library.
func extract7z(src, dest string) error {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, f.Mode())
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// findExecutable walks root for the binary called name.
// An exact file name match wins; otherwise the first executable regular
// file whose name starts with name (e.g. "honeytail_linux_amd64") is used.
func findExecutable(root, name string) (string, error) {
	var exact, prefixed string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if base == name {
			exact = path
			return filepath.SkipAll
		}
		if prefixed == "" && strings.HasPrefix(base, name) {
			if info, err := d.Info(); err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
				prefixed = path
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if exact != "" {
		return exact, nil
	}
	if prefixed != "" {
		return prefixed, nil
	}
	return "", fmt.Errorf("%w: looking for %s", errNoBinary, name)
}
