package fetch

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Compression identifies how a tar archive is compressed.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionXZ   Compression = "xz"
)

// archiveSuffixes maps recognised archive file name suffixes to their compression.
var archiveSuffixes = []struct {
	suffix      string
	compression Compression
}{
	{".tar.gz", CompressionGzip},
	{".tgz", CompressionGzip},
	{".tar.xz", CompressionXZ},
	{".txz", CompressionXZ},
	{".tar", CompressionNone},
}

// DetectCompression returns the compression of an archive by file name.
func DetectCompression(name string) (Compression, bool) {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.compression, true
		}
	}
	return "", false
}

// IsArchive reports whether name is an archive Extract can unpack.
func IsArchive(name string) bool {
	_, ok := DetectCompression(name)
	return ok
}

// Extract unpacks a tar archive (optionally gzip or xz compressed) into destDir.
// Entries that would land outside destDir, directly or through a symlink,
// are rejected.
func Extract(archivePath, destDir string) error {
	compression, ok := DetectCompression(archivePath)
	if !ok {
		return fmt.Errorf("unsupported archive: %s", filepath.Base(archivePath))
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	switch compression {
	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	case CompressionXZ:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to read xz stream: %w", err)
		}
		r = xr
	}

	return untar(r, destDir)
}

func untar(r io.Reader, destDir string) error {
	abs, err := filepath.Abs(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", destDir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", abs, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", abs, err)
	}

	// Every write goes through dest, which refuses to follow a symlink out of
	// root even if one slipped past the target checks below.
	dest, err := os.OpenRoot(root)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", root, err)
	}
	defer dest.Close()

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}

		name, err := entryName(hdr.Name)
		if err != nil {
			return err
		}

		mode := os.FileMode(hdr.Mode).Perm()

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := dest.MkdirAll(name, mode|0700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr, name, mode); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if err := linkEntry(dest, root, name, hdr.Linkname); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", hdr.Name, err)
			}
		case tar.TypeLink:
			source, err := entryName(hdr.Linkname)
			if err != nil {
				return err
			}
			if err := dest.MkdirAll(filepath.Dir(name), 0755); err != nil {
				return err
			}
			if err := dest.Link(source, name); err != nil {
				return fmt.Errorf("failed to create link %s: %w", hdr.Name, err)
			}
		default:
			// Devices, fifos and pax metadata have no place in a source tree.
			continue
		}
	}
}

// entryName cleans an archive entry name into a path relative to the
// extraction directory.
func entryName(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return clean, nil
}

// linkEntry creates a symlink at name. The target is resolved from the real
// location of the link's parent, so a chain of links cannot climb out of root.
func linkEntry(dest *os.Root, root, name, target string) error {
	if filepath.IsAbs(target) {
		return fmt.Errorf("target %s is outside the archive", target)
	}

	parent := filepath.Dir(name)
	if err := dest.MkdirAll(parent, 0755); err != nil {
		return err
	}
	realParent, err := filepath.EvalSymlinks(filepath.Join(root, parent))
	if err != nil {
		return err
	}
	if !within(root, realParent) || !within(root, filepath.Join(realParent, target)) {
		return fmt.Errorf("target %s is outside the archive", target)
	}
	return dest.Symlink(target, name)
}

// within reports whether path is root or lies under it.
func within(root, path string) bool {
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}

func writeEntry(dest *os.Root, r io.Reader, name string, mode os.FileMode) error {
	if err := dest.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return err
	}
	f, err := dest.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
