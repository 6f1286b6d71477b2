package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	p := LoadFrom(path)
	assert.Equal(t, Session{}, p.Session())

	p.SetBackground("maps/bay.png")
	p.SetMode("spill")
	p.SetSpills("runs/spills.yaml")
	require.NoError(t, p.Save())

	got := LoadFrom(path).Session()
	assert.Equal(t, "maps/bay.png", got.Background)
	assert.Equal(t, "spill", got.Mode)
	assert.Equal(t, "runs/spills.yaml", got.Spills)
	assert.Equal(t, []string{"maps/bay.png"}, got.Recent)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestRecentMaps(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "session.json"))

	p.SetBackground("a.png")
	p.SetBackground("b.png")
	p.SetBackground("a.png")
	assert.Equal(t, []string{"a.png", "b.png"}, p.Session().Recent)

	p.SetBackground("")
	s := p.Session()
	assert.Empty(t, s.Background)
	assert.Equal(t, []string{"a.png", "b.png"}, s.Recent)

	for i := 0; i < MaxRecent+3; i++ {
		p.SetBackground(fmt.Sprintf("m%d.png", i))
	}
	s = p.Session()
	require.Len(t, s.Recent, MaxRecent)
	assert.Equal(t, fmt.Sprintf("m%d.png", MaxRecent+2), s.Recent[0])
}

func TestSessionIsACopy(t *testing.T) {
	p := LoadFrom(filepath.Join(t.TempDir(), "session.json"))
	p.SetBackground("a.png")

	s := p.Session()
	s.Recent[0] = "changed"
	assert.Equal(t, "a.png", p.Session().Recent[0])
}

func TestCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	p := LoadFrom(path)
	assert.Equal(t, Session{}, p.Session())
}
