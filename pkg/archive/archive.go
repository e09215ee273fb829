// Package archive downloads and unpacks the raw dataset archive. A fetch
// that does not return a success status is fatal: the compiler cannot
// proceed without its primary data source.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when an archive entry would escape the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination directory")

// Downloader fetches and unpacks dataset archives.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a Downloader. A nil client falls back to
// http.DefaultClient.
func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client}
}

// Download fetches the archive at url and unpacks it into destDir. When
// destDir already exists it is left alone unless overwrite is set, in which
// case it is removed and re-created. Returns whether anything was fetched.
func (d *Downloader) Download(ctx context.Context, url, destDir string, overwrite bool) (bool, error) {
	if _, err := os.Stat(destDir); err == nil {
		if !overwrite {
			return false, nil
		}
		if err := os.RemoveAll(destDir); err != nil {
			return false, fmt.Errorf("remove existing dataset dir: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch archive: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("read archive body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("archive fetch failed: [%d] %s", resp.StatusCode, truncate(string(body), 200))
	}

	if err := Unzip(body, destDir); err != nil {
		return false, err
	}
	return true, nil
}

// Unzip extracts an in-memory zip archive into destDir.
func Unzip(data []byte, destDir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	for _, file := range reader.File {
		path := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(destDir)+string(filepath.Separator)) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("create dir %s: %w", file.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create parent dir for %s: %w", file.Name, err)
		}

		src, err := file.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", file.Name, err)
		}

		dst, err := os.Create(path)
		if err != nil {
			src.Close()
			return fmt.Errorf("create %s: %w", path, err)
		}

		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", file.Name, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
