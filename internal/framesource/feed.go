package framesource

import (
	"sync"

	"spill-map/internal/frames"
)

// Feed releases frames one at a time. The next frame is handed out only
// after Next reports that the previous one has been shown or given up on,
// so a backlog found in a single scan plays in file order at the pace each
// frame was produced.
type Feed struct {
	deliver func(frames.Frame)

	mu      sync.Mutex
	pending []frames.Frame
	busy    bool
}

// NewFeed creates a Feed that passes each released frame to deliver.
func NewFeed(deliver func(frames.Frame)) *Feed {
	return &Feed{deliver: deliver}
}

// Push queues frames in order and releases the first one if nothing is in
// flight.
func (f *Feed) Push(fs ...frames.Frame) {
	f.mu.Lock()
	f.pending = append(f.pending, fs...)
	fr, ok := f.take()
	f.mu.Unlock()
	if ok {
		f.deliver(fr)
	}
}

// Next marks the frame in flight as done and releases the following one.
func (f *Feed) Next() {
	f.mu.Lock()
	f.busy = false
	fr, ok := f.take()
	f.mu.Unlock()
	if ok {
		f.deliver(fr)
	}
}

// Reset drops queued frames and forgets the one in flight.
func (f *Feed) Reset() {
	f.mu.Lock()
	f.pending = nil
	f.busy = false
	f.mu.Unlock()
}

// Pending returns the number of queued frames.
func (f *Feed) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// take pops the head of the queue when nothing is in flight. Callers hold mu.
func (f *Feed) take() (frames.Frame, bool) {
	if f.busy || len(f.pending) == 0 {
		return frames.Frame{}, false
	}
	fr := f.pending[0]
	f.pending = f.pending[1:]
	f.busy = true
	return fr, true
}
