package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveBytes(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/re2-20131024.tgz" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_Success(t *testing.T) {
	body := []byte("archive bytes")
	srv := serveBytes(t, body)
	dest := filepath.Join(t.TempDir(), "sub", "re2-20131024.tgz")

	var last int64
	d := NewDownloaderWithClient(srv.Client())
	err := d.Download(context.Background(), Options{
		URL:        srv.URL + "/files/re2-20131024.tgz",
		DestPath:   dest,
		OnProgress: func(downloaded, total int64) { last = downloaded },
	})

	require.NoError(t, err)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, int64(len(body)), last)

	_, err = os.Stat(dest + ".downloading")
	assert.True(t, os.IsNotExist(err), "temp file should be gone")
}

func TestDownload_NotFound(t *testing.T) {
	srv := serveBytes(t, nil)
	dest := filepath.Join(t.TempDir(), "missing.tgz")

	d := NewDownloaderWithClient(srv.Client())
	err := d.Download(context.Background(), Options{URL: srv.URL + "/files/missing.tgz", DestPath: dest})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dest + ".downloading")
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownload_Checksum(t *testing.T) {
	body := []byte("pinned content")
	sum := sha256.Sum256(body)
	srv := serveBytes(t, body)
	url := srv.URL + "/files/re2-20131024.tgz"

	tests := []struct {
		name    string
		sha     string
		wantErr bool
	}{
		{name: "match", sha: hex.EncodeToString(sum[:]), wantErr: false},
		{name: "match upper case", sha: hexUpper(sum[:]), wantErr: false},
		{name: "mismatch", sha: hex.EncodeToString(make([]byte, 32)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "re2.tgz")
			d := NewDownloaderWithClient(srv.Client())
			err := d.Download(context.Background(), Options{URL: url, DestPath: dest, SHA256: tt.sha})

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrChecksumMismatch))
				_, statErr := os.Stat(dest)
				assert.True(t, os.IsNotExist(statErr), "mismatched download must not be kept")
				return
			}
			require.NoError(t, err)
			assert.FileExists(t, dest)
		})
	}
}

func TestDownload_Cancelled(t *testing.T) {
	srv := serveBytes(t, []byte("x"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloaderWithClient(srv.Client())
	err := d.Download(ctx, Options{URL: srv.URL + "/files/re2-20131024.tgz", DestPath: filepath.Join(t.TempDir(), "re2.tgz")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func hexUpper(b []byte) string {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0f])
	}
	return string(out)
}
