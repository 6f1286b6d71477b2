// Package framesource turns a directory that a model run writes frame
// images into a stream of frames.
package framesource

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"spill-map/internal/frames"
	"spill-map/internal/logging"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

var stepNumber = regexp.MustCompile(`(\d+)\D*$`)

// Watcher polls a directory and reports each new image once, in
// modification order. The production latency of a frame is the time between
// its modification time and that of the frame before it.
type Watcher struct {
	dir      string
	interval time.Duration
	latency  time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	seen    map[string]bool
	last    time.Time
	next    int64
	onFrame func(frames.Frame)
	stopCh  chan struct{}
}

// NewWatcher watches dir every interval. It fails if dir is not a directory.
func NewWatcher(dir string, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("frames directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frames directory: %s is not a directory", dir)
	}
	return &Watcher{
		dir:      dir,
		interval: interval,
		log:      logging.Component(logger, "framesource").With("dir", dir),
		seen:     make(map[string]bool),
		next:     1,
	}, nil
}

// SetLatency makes every frame report a fixed production latency instead of
// the measured one. Zero restores measuring.
func (w *Watcher) SetLatency(d time.Duration) {
	w.mu.Lock()
	w.latency = d
	w.mu.Unlock()
}

// OnFrame sets the callback invoked for every new frame. It is called from
// the watcher goroutine.
func (w *Watcher) OnFrame(fn func(frames.Frame)) {
	w.mu.Lock()
	w.onFrame = fn
	w.mu.Unlock()
}

// Start scans once right away and then every interval until Stop. Starting
// a running watcher does nothing.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.stopCh != nil {
		w.mu.Unlock()
		return
	}
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()
	go w.watchLoop(stop)
}

// Rewind forgets every reported image so the next scan reports them again.
func (w *Watcher) Rewind() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seen = make(map[string]bool)
	w.last = time.Time{}
	w.next = 1
}

// Stop ends the watcher goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *Watcher) watchLoop(stop chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.emit()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (w *Watcher) emit() {
	found, err := w.Scan()
	if err != nil {
		w.log.Warn("frame scan failed", "error", err)
		return
	}
	w.mu.Lock()
	fn := w.onFrame
	w.mu.Unlock()
	if fn == nil {
		return
	}
	for _, f := range found {
		fn(f)
	}
}

type candidate struct {
	path string
	mod  time.Time
}

// Scan returns frames for images that appeared since the previous scan.
func (w *Watcher) Scan() ([]frames.Frame, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var fresh []candidate
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if w.seen[path] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fresh = append(fresh, candidate{path: path, mod: info.ModTime()})
	}

	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].mod.Equal(fresh[j].mod) {
			return fresh[i].path < fresh[j].path
		}
		return fresh[i].mod.Before(fresh[j].mod)
	})

	out := make([]frames.Frame, 0, len(fresh))
	for _, c := range fresh {
		w.seen[c.path] = true

		latency := w.latency
		if latency == 0 && !w.last.IsZero() && c.mod.After(w.last) {
			latency = c.mod.Sub(w.last)
		}
		w.last = c.mod

		out = append(out, frames.Frame{ID: w.frameID(c.path), URL: c.path, ProductionLatency: latency})
	}
	if len(out) > 0 {
		w.log.Debug("new frames", "count", len(out))
	}
	return out, nil
}

// frameID uses the trailing number in the file name when there is one,
// otherwise the next sequence number.
func (w *Watcher) frameID(path string) int64 {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if m := stepNumber.FindStringSubmatch(base); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			if id >= w.next {
				w.next = id + 1
			}
			return id
		}
	}
	id := w.next
	w.next++
	return id
}
