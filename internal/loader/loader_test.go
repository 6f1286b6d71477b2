package loader

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestFetchLocalPath(t *testing.T) {
	path := writePNG(t, 8, 6)

	img, err := New(time.Second).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())

	img, err = New(time.Second).Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestFetchHTTP(t *testing.T) {
	path := writePNG(t, 3, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/step-1.png" {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}))
	defer srv.Close()

	f := New(time.Second)
	img, err := f.Fetch(context.Background(), srv.URL+"/step-1.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "404")
}

func TestFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(20*time.Millisecond).Fetch(context.Background(), srv.URL+"/slow.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), err.Error())
}

func TestFetchErrors(t *testing.T) {
	f := New(time.Second)

	_, err := f.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	_, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(t.TempDir(), "garbage.png")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	_, err = f.Fetch(context.Background(), garbage)
	assert.ErrorIs(t, err, image.ErrFormat)

	_, err = f.Fetch(context.Background(), "ftp://example.com/a.png")
	assert.ErrorContains(t, err, "unsupported scheme")
}
