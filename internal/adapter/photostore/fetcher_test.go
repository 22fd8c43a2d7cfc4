package photostore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photos/sky.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pngHeader)
		case "/photos/empty.jpg":
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client())

	photo, err := f.Fetch(context.Background(), srv.URL+"/photos/sky.png")
	require.NoError(t, err)
	assert.Equal(t, "sky.png", photo.Filename)
	assert.Equal(t, "image/png", photo.ContentType)
	assert.Equal(t, pngHeader, photo.Data)

	_, err = f.Fetch(context.Background(), srv.URL+"/photos/missing.jpg")
	require.ErrorContains(t, err, "unexpected status 404")

	_, err = f.Fetch(context.Background(), srv.URL+"/photos/empty.jpg")
	require.ErrorContains(t, err, "empty")
}

func TestFetcher_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "night.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))

	photo, err := NewFetcher(nil).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "night.png", photo.Filename)
	assert.Equal(t, pngHeader, photo.Data)

	_, err = NewFetcher(nil).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
}

func TestFetcher_EmptyReference(t *testing.T) {
	_, err := NewFetcher(nil).Fetch(context.Background(), "  ")
	require.Error(t, err)
}
