// Package loader fetches and decodes map background and frame images from
// local paths, file:// URLs, or HTTP.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmptyURL is returned when asked to load an empty location.
var ErrEmptyURL = errors.New("image url is empty")

// Fetcher loads images with a bounded wait.
type Fetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

// New returns a Fetcher that gives up after timeout. A zero timeout waits
// as long as ctx allows.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{Client: http.DefaultClient, Timeout: timeout}
}

// Fetch loads and decodes the image at location.
func (f *Fetcher) Fetch(ctx context.Context, location string) (image.Image, error) {
	if location == "" {
		return nil, ErrEmptyURL
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	rc, err := f.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, _, err := image.Decode(rc)
		ch <- result{img, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load %s: %w", location, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to decode image %s: %w", location, r.err)
		}
		return r.img, nil
	}
}

func (f *Fetcher) open(ctx context.Context, location string) (io.ReadCloser, error) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare paths, including Windows drive letters.
		return openFile(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", location, err)
		}
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("load %s: unexpected status %s", location, resp.Status)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("load %s: unsupported scheme %q", location, u.Scheme)
	}
}

func openFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return file, nil
}
