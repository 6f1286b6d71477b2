// Package prefs persists what the viewer had open between runs.
package prefs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// MaxRecent bounds the recent-maps list.
const MaxRecent = 8

// Session is the persisted viewer state.
type Session struct {
	Background string   `json:"background,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	Spills     string   `json:"spills,omitempty"`
	Recent     []string `json:"recent,omitempty"`
}

// Prefs guards a Session and the file it is saved to.
type Prefs struct {
	mu      sync.Mutex
	path    string
	session Session
}

// DefaultPath is spill-map/session.json under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, "spill-map", "session.json")
}

// Load reads the session at DefaultPath.
func Load() *Prefs {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the session at path. A missing or unreadable file gives an
// empty session that will be written back to path on Save.
func LoadFrom(path string) *Prefs {
	p := &Prefs{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("reading preferences", "path", path, "error", err)
		}
		return p
	}
	if err := json.Unmarshal(data, &p.session); err != nil {
		slog.Warn("ignoring corrupt preferences", "path", path, "error", err)
		p.session = Session{}
	}
	return p
}

// Session returns a copy of the current state.
func (p *Prefs) Session() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.session
	s.Recent = slices.Clone(p.session.Recent)
	return s
}

// SetMode records the cursor mode name.
func (p *Prefs) SetMode(name string) {
	p.mu.Lock()
	p.session.Mode = name
	p.mu.Unlock()
}

// SetSpills records the spill file last drawn.
func (p *Prefs) SetSpills(path string) {
	p.mu.Lock()
	p.session.Spills = path
	p.mu.Unlock()
}

// SetBackground records the current map and moves it to the front of the
// recent list. An empty url clears the current map but keeps the list.
func (p *Prefs) SetBackground(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Background = url
	if url == "" {
		return
	}
	recent := slices.DeleteFunc(p.session.Recent, func(s string) bool { return s == url })
	recent = append([]string{url}, recent...)
	if len(recent) > MaxRecent {
		recent = recent[:MaxRecent]
	}
	p.session.Recent = recent
}

// Save writes the session through a temporary file so a crash mid-write
// leaves the previous file intact.
func (p *Prefs) Save() error {
	p.mu.Lock()
	data, err := json.MarshalIndent(p.session, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}
