// Package app provides the event bus shared by the map view components and
// the desktop theme.
package app

import (
	"sync"

	"spill-map/pkg/geometry"
)

// EventType identifies different map view events.
type EventType int

const (
	// EventFrameChanged fires after a new frame becomes the displayed frame.
	EventFrameChanged EventType = iota
	// EventSpillDrawn carries a SpillDrawn once a drag gesture completes.
	EventSpillDrawn
	// EventMapClicked carries a MapClicked under click capture.
	EventMapClicked
	// EventDraggingFinished carries a DraggingFinished for rectangle selection.
	EventDraggingFinished
	// EventReady fires when the background has loaded and layers exist.
	EventReady
	// EventContainerRevealed fires once, when the first frame is shown.
	EventContainerRevealed
	// EventAnimationError carries an AnimationError meant for the user.
	EventAnimationError
	// EventFrameLoadFailed carries a LoadFailed for a frame image.
	EventFrameLoadFailed
	// EventBackgroundLoadFailed carries a LoadFailed for the background.
	EventBackgroundLoadFailed
	// EventPlaceholderChanged carries a bool: true when the placeholder shows.
	EventPlaceholderChanged
	// EventModeChanged carries the new cursor mode name.
	EventModeChanged
)

var eventNames = map[EventType]string{
	EventFrameChanged:         "frame_changed",
	EventSpillDrawn:           "spill_drawn",
	EventMapClicked:           "map_clicked",
	EventDraggingFinished:     "dragging_finished",
	EventReady:                "ready",
	EventContainerRevealed:    "container_revealed",
	EventAnimationError:       "animation_error",
	EventFrameLoadFailed:      "frame_load_failed",
	EventBackgroundLoadFailed: "background_load_failed",
	EventPlaceholderChanged:   "placeholder_changed",
	EventModeChanged:          "mode_changed",
}

func (e EventType) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// SpillDrawn holds the endpoints of a newly drawn spill as [lon, lat] pairs.
type SpillDrawn struct {
	Start [2]float64
	End   [2]float64

	// Outside is set when either end falls beyond the mapped region, as
	// happens when a drag leaves the image.
	Outside bool
}

// MapClicked holds raw page coordinates of a click on the displayed frame.
type MapClicked struct {
	X, Y float64
}

// DraggingFinished holds the page coordinates where a rectangle selection
// started and ended.
type DraggingFinished [2]geometry.Point2D

// AnimationError describes a frame that could not be displayed.
type AnimationError struct {
	FrameID int64
	Message string
}

// LoadFailed describes an image that never finished loading.
type LoadFailed struct {
	FrameID int64 // zero for the background
	URL     string
	Err     error
}

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Bus dispatches events to registered listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[EventType][]EventListener)}
}

// On registers an event listener for the specified event type.
func (b *Bus) On(event EventType, listener EventListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type. Listeners run
// synchronously on the caller's goroutine.
func (b *Bus) Emit(event EventType, data interface{}) {
	b.mu.RLock()
	listeners := b.listeners[event]
	b.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
