package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDownloadAndUnzip(t *testing.T) {
	t.Parallel()
	payload := zipBytes(t, map[string]string{
		"claim.csv": "claim_id\nc1\n",
		"tweet.csv": "tweet_id\n10\n",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	destDir := filepath.Join(t.TempDir(), "dataset")
	d := NewDownloader(server.Client())

	fetched, err := d.Download(context.Background(), server.URL, destDir, false)
	require.NoError(t, err)
	assert.True(t, fetched)

	data, err := os.ReadFile(filepath.Join(destDir, "claim.csv"))
	require.NoError(t, err)
	assert.Equal(t, "claim_id\nc1\n", string(data))

	// Existing directory without overwrite is left untouched.
	fetched, err = d.Download(context.Background(), server.URL, destDir, false)
	require.NoError(t, err)
	assert.False(t, fetched)
}

func TestDownloadNonSuccessIsFatal(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDownloader(server.Client())
	_, err := d.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "x"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestUnzipRejectsPathTraversal(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("../escape.csv")
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	err = Unzip(buf.Bytes(), t.TempDir())
	require.ErrorIs(t, err, ErrUnsafePath)
}
