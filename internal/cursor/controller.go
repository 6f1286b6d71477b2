// Package cursor maps the externally selected interaction mode onto the
// affordances the map view offers.
package cursor

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"spill-map/internal/logging"
	"spill-map/internal/metrics"
)

// Mode is the interaction mode chosen by the user.
type Mode int

const (
	ModeResting Mode = iota
	ModeZoomingIn
	ModeZoomingOut
	ModeMoving
	ModeDrawingSpill
)

var modeNames = []string{
	ModeResting:      "resting",
	ModeZoomingIn:    "zooming-in",
	ModeZoomingOut:   "zooming-out",
	ModeMoving:       "moving",
	ModeDrawingSpill: "spill",
}

// Modes lists every mode in toolbar order.
func Modes() []Mode {
	return []Mode{ModeZoomingIn, ModeZoomingOut, ModeResting, ModeMoving, ModeDrawingSpill}
}

func (m Mode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// CursorName is the cursor style shown while the mode is active.
func (m Mode) CursorName() string {
	switch m {
	case ModeResting:
		return "regular-cursor"
	default:
		return m.String() + "-cursor"
	}
}

// ParseMode accepts the names returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	if s == "drawing-spill" {
		return ModeDrawingSpill, nil
	}
	return ModeResting, fmt.Errorf("unknown cursor mode %q", s)
}

// Affordances are the interactions enabled by a mode.
type Affordances struct {
	ClickCapture    bool
	RectangleSelect bool
	Pan             bool
	DrawingEnabled  bool
	Cursor          string
}

// AffordancesFor returns the affordances a mode enables, starting from none.
func AffordancesFor(m Mode) Affordances {
	a := Affordances{Cursor: m.CursorName()}
	switch m {
	case ModeZoomingIn:
		a.ClickCapture = true
		a.RectangleSelect = true
	case ModeZoomingOut:
		a.ClickCapture = true
	case ModeMoving:
		a.Pan = true
	case ModeDrawingSpill:
		a.DrawingEnabled = true
	}
	return a
}

// Controller holds the current mode and the drawing-enabled gate.
// It is safe for concurrent use; the gate is last-write-wins.
type Controller struct {
	mu       sync.RWMutex
	mode     Mode
	aff      Affordances
	gate     atomic.Bool
	onChange []func(Mode, Affordances)
	log      *slog.Logger
	view     string
}

// NewController starts in ModeResting.
func NewController(logger *slog.Logger, view string) *Controller {
	return &Controller{
		mode: ModeResting,
		aff:  AffordancesFor(ModeResting),
		log:  logging.Component(logger, "cursor"),
		view: view,
	}
}

// OnChange registers a hook called after every transition.
func (c *Controller) OnChange(fn func(Mode, Affordances)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// SetMode clears the affordances of the previous mode, then applies those
// of m. Any mode is reachable from any other.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	prev := c.mode

	c.aff = Affordances{}
	c.gate.Store(false)

	c.mode = m
	c.aff = AffordancesFor(m)
	c.gate.Store(c.aff.DrawingEnabled)

	aff := c.aff
	hooks := c.onChange
	c.mu.Unlock()

	metrics.ModeChanges.WithLabelValues(c.view, m.String()).Inc()
	c.log.Debug("cursor mode changed", "from", prev, "to", m)

	for _, fn := range hooks {
		fn(m, aff)
	}
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Affordances returns the affordances of the current mode.
func (c *Controller) Affordances() Affordances {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.aff
}

// DrawingEnabled reports whether pointer drags draw spills.
func (c *Controller) DrawingEnabled() bool {
	return c.gate.Load()
}
