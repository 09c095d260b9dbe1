package dataset

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungetti/cts/internal/errors"
)

const testRevision = "c21de4450f88a20ac5968628d375787745932a5a"

// buildArchive returns a zip holding files under name -> content.
func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestFetcher(url string) *ArchiveFetcher {
	return NewArchiveFetcher(
		WithURLTemplate(url+"/archive/%s.zip"),
		WithMaxRetries(2),
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func TestArchiveFetcherURL(t *testing.T) {
	assert.Equal(t,
		"https://github.com/google-coral/test_data/archive/"+testRevision+".zip",
		NewArchiveFetcher().URL(testRevision))
}

func TestArchiveFetcherFetch(t *testing.T) {
	root := "test_data-" + testRevision + "/"
	files := map[string]string{}
	files[root] = ""
	files[root+"mobilenet_v1.tflite"] = "model"
	files[root+"labels/imagenet.txt"] = "cat\ndog\n"
	files[root+"nested/deeper/bird.bmp"] = "BM"
	archive := buildArchive(t, files)
	var requested string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = r.URL.Path
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	parent := t.TempDir()
	dest := filepath.Join(parent, "test_data")

	require.NoError(t, newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, dest))

	assert.Equal(t, "/archive/"+testRevision+".zip", requested)
	data, err := os.ReadFile(filepath.Join(dest, "labels", "imagenet.txt"))
	require.NoError(t, err)
	assert.Equal(t, "cat\ndog\n", string(data))
	assert.FileExists(t, filepath.Join(dest, "nested", "deeper", "bird.bmp"))

	// Only the destination is left behind; the staging area is removed.
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test_data", entries[0].Name())
}

func TestArchiveFetcherRetriesServerErrors(t *testing.T) {
	archive := buildArchive(t, map[string]string{"test_data-" + testRevision + "/a.txt": "a"})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "test_data")

	require.NoError(t, newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, dest))
	assert.Equal(t, int32(3), hits.Load())
}

func TestArchiveFetcherGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, filepath.Join(t.TempDir(), "test_data"))

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.Network))
	assert.Equal(t, int32(3), hits.Load())
}

func TestArchiveFetcherClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	err := newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, filepath.Join(t.TempDir(), "test_data"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestArchiveFetcherWrongTopLevel(t *testing.T) {
	archive := buildArchive(t, map[string]string{"test_data-master/a.txt": "a"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "test_data")

	err := newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, dest)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain")
	assert.NoDirExists(t, dest)
}

func TestArchiveFetcherRejectsEscapingEntries(t *testing.T) {
	archive := buildArchive(t, map[string]string{"../escape.txt": "x"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()
	parent := t.TempDir()

	err := newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, filepath.Join(parent, "test_data"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the destination")
	assert.NoFileExists(t, filepath.Join(parent, "escape.txt"))
}

func TestArchiveFetcherCorruptArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	err := newTestFetcher(srv.URL).Fetch(context.Background(), testRevision, filepath.Join(t.TempDir(), "test_data"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot open archive")
}

func TestArchiveFetcherCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestFetcher(srv.URL).Fetch(ctx, testRevision, filepath.Join(t.TempDir(), "test_data"))

	require.Error(t, err)
}

func TestGateWithArchiveFetcher(t *testing.T) {
	archive := buildArchive(t, map[string]string{"test_data-" + testRevision + "/a.txt": "a"})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(archive)
	}))
	defer srv.Close()
	gate := NewGate(newTestFetcher(srv.URL), WithRevision(testRevision))
	dest := filepath.Join(t.TempDir(), "test_data")

	require.NoError(t, gate.Ensure(context.Background(), dest))
	require.NoError(t, gate.Ensure(context.Background(), dest))

	assert.Equal(t, int32(1), hits.Load())
	assert.FileExists(t, filepath.Join(dest, "a.txt"))
}
