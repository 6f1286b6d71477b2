// Package frames paces the display of simulation frames against the time
// the server took to produce them.
//
// A Scheduler is not safe for concurrent use. Every method, and every
// callback it hands to its Timer and Loader, must run on the same goroutine.
package frames

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/logging"
	"spill-map/internal/metrics"
)

// Status is the lifecycle state of a frame in the registry.
type Status int

const (
	StatusUnknown Status = iota
	StatusRequested
	StatusLoaded
	StatusDisplayed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRequested:
		return "requested"
	case StatusLoaded:
		return "loaded"
	case StatusDisplayed:
		return "displayed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Frame is one rendered time step.
type Frame struct {
	ID                int64
	URL               string
	ProductionLatency time.Duration
}

// Policy holds the minimum time a frame should stay visible.
type Policy struct {
	Threshold time.Duration
}

// Timeout returns how long to wait before showing a frame that took latency
// to produce: the remainder of the threshold, or zero once it has elapsed.
func (p Policy) Timeout(latency time.Duration) time.Duration {
	if latency < 0 {
		latency = 0
	}
	if latency < p.Threshold {
		return p.Threshold - latency
	}
	return 0
}

// Timer runs fn once after d.
type Timer interface {
	AfterFunc(d time.Duration, fn func())
}

// Loader fetches an image and reports the outcome through done.
type Loader interface {
	Load(url string, done func(image.Image, error))
}

type entry struct {
	frame  Frame
	status Status
	image  image.Image
}

// Options configures a Scheduler.
type Options struct {
	Policy Policy
	Timer  Timer
	Loader Loader
	Bus    *app.Bus
	Logger *slog.Logger
	View   string
}

// Scheduler tracks frames by ID and decides when each becomes visible.
type Scheduler struct {
	policy Policy
	timer  Timer
	loader Loader
	bus    *app.Bus
	log    *slog.Logger
	view   string

	entries    map[int64]*entry
	displayed  *entry
	generation uint64
	revealed   bool
}

// New creates a Scheduler.
func New(opts Options) *Scheduler {
	bus := opts.Bus
	if bus == nil {
		bus = app.NewBus()
	}
	return &Scheduler{
		policy:  opts.Policy,
		timer:   opts.Timer,
		loader:  opts.Loader,
		bus:     bus,
		log:     logging.Component(opts.Logger, "frames"),
		view:    opts.View,
		entries: make(map[int64]*entry),
	}
}

// Produce accepts a newly produced frame. A frame whose image is already
// loaded is a replay and is shown after the full threshold. Producing a
// frame again while its image is still loading is dropped; a frame whose
// load failed is fetched again.
func (s *Scheduler) Produce(f Frame) {
	metrics.FramesProduced.WithLabelValues(s.view).Inc()

	if e, ok := s.entries[f.ID]; ok {
		switch e.status {
		case StatusLoaded, StatusDisplayed:
			metrics.FramesReplayed.WithLabelValues(s.view).Inc()
			s.schedule(f.ID, s.policy.Timeout(0))
			return
		case StatusRequested:
			s.log.Debug("frame already loading", "frame", f.ID)
			return
		}
	}

	e := &entry{frame: f, status: StatusRequested}
	s.entries[f.ID] = e

	gen := s.generation
	id := f.ID
	s.loader.Load(f.URL, func(img image.Image, err error) {
		s.loaded(gen, id, img, err)
	})
}

func (s *Scheduler) loaded(gen uint64, id int64, img image.Image, err error) {
	if gen != s.generation {
		s.log.Debug("dropping load from before reset", "frame", id)
		return
	}
	e, ok := s.entries[id]
	if !ok || e.status != StatusRequested {
		return
	}

	if err != nil {
		e.status = StatusFailed
		metrics.ImageLoadFailures.WithLabelValues(s.view, "frame").Inc()
		s.log.Warn("frame image failed to load", "frame", id, "url", e.frame.URL, "error", err)
		s.bus.Emit(app.EventFrameLoadFailed, app.LoadFailed{FrameID: id, URL: e.frame.URL, Err: err})
		return
	}

	e.status = StatusLoaded
	e.image = img
	s.schedule(id, s.policy.Timeout(e.frame.ProductionLatency))
}

func (s *Scheduler) schedule(id int64, delay time.Duration) {
	metrics.ObserveDelay(s.view, delay)
	s.log.Debug("frame scheduled", "frame", id, "delay", delay)

	gen := s.generation
	s.timer.AfterFunc(delay, func() {
		s.show(gen, id)
	})
}

// show makes frame id the displayed frame if gen is still current.
func (s *Scheduler) show(gen uint64, id int64) {
	if gen != s.generation {
		s.log.Debug("dropping show from before reset", "frame", id)
		return
	}

	target, ok := s.entries[id]
	if !ok || (target.status != StatusLoaded && target.status != StatusDisplayed) {
		status := StatusUnknown
		if ok {
			status = target.status
		}
		metrics.FrameShowMisses.WithLabelValues(s.view).Inc()
		s.log.Error("could not load image for time step", "frame", id, "status", status)
		s.bus.Emit(app.EventAnimationError, app.AnimationError{
			FrameID: id,
			Message: fmt.Sprintf("An animation error occurred (time step %d).", id),
		})
		return
	}

	if s.displayed != nil && s.displayed != target {
		s.displayed.status = StatusLoaded
	}
	target.status = StatusDisplayed
	s.displayed = target
	metrics.FramesDisplayed.WithLabelValues(s.view).Inc()

	if !s.revealed {
		s.revealed = true
		s.bus.Emit(app.EventContainerRevealed, id)
	}
	s.bus.Emit(app.EventFrameChanged, nil)
}

// Reset forgets every frame. Pending timers and loads become no-ops.
func (s *Scheduler) Reset() {
	s.generation++
	s.entries = make(map[int64]*entry)
	s.displayed = nil
}

// Status reports the state of a frame.
func (s *Scheduler) Status(id int64) Status {
	if e, ok := s.entries[id]; ok {
		return e.status
	}
	return StatusUnknown
}

// Displayed returns the currently displayed frame and its image.
func (s *Scheduler) Displayed() (Frame, image.Image, bool) {
	if s.displayed == nil {
		return Frame{}, nil, false
	}
	return s.displayed.frame, s.displayed.image, true
}

// Len returns the number of frames in the registry.
func (s *Scheduler) Len() int {
	return len(s.entries)
}
