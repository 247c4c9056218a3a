// Package fetch downloads artifact files and unpacks archives.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// ErrChecksumMismatch is returned when a pinned SHA-256 does not match.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// ProgressCallback is called with download progress updates.
type ProgressCallback func(downloaded, total int64)

// Downloader handles artifact downloads.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a new downloader.
func NewDownloader() *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: 0, // No timeout for large downloads; cancel via context
		},
	}
}

// NewDownloaderWithClient creates a downloader with a custom HTTP client (for testing).
func NewDownloaderWithClient(client *http.Client) *Downloader {
	return &Downloader{client: client}
}

// Options configures a download.
type Options struct {
	URL        string
	DestPath   string
	SHA256     string // Expected checksum (optional)
	OnProgress ProgressCallback
}

// Download downloads a file, verifying its checksum when one is pinned.
// The file only appears at DestPath once it is complete.
func (d *Downloader) Download(ctx context.Context, opts Options) error {
	destDir := filepath.Dir(opts.DestPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmpPath := opts.DestPath + ".downloading"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	renamed := false
	defer func() {
		out.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	klog.V(2).Infof("downloading %s", opts.URL)
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s failed: %w", opts.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s failed: HTTP %d", opts.URL, resp.StatusCode)
	}

	hasher := sha256.New()
	reader := &progressReader{
		reader:     io.TeeReader(resp.Body, hasher),
		total:      resp.ContentLength,
		onProgress: opts.OnProgress,
	}

	n, err := io.Copy(out, reader)
	if err != nil {
		return fmt.Errorf("download %s failed: %w", opts.URL, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}

	if opts.SHA256 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(got, opts.SHA256) {
			return fmt.Errorf("%w for %s: expected %s, got %s", ErrChecksumMismatch, opts.URL, opts.SHA256, got)
		}
	}

	if err := os.Rename(tmpPath, opts.DestPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	renamed = true

	klog.V(2).Infof("downloaded %s (%d bytes)", opts.DestPath, n)
	return nil
}

// progressReader wraps a reader and reports progress.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	onProgress ProgressCallback
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.downloaded += int64(n)
	if r.onProgress != nil {
		r.onProgress(r.downloaded, r.total)
	}
	return n, err
}
