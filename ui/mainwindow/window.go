// Package mainwindow provides the main viewer window.
package mainwindow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spill-map/internal/app"
	"spill-map/internal/cursor"
	"spill-map/internal/drawing"
	"spill-map/internal/mapview"
	"spill-map/internal/version"
	"spill-map/ui/canvas"
	"spill-map/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const prefKeyLastDir = "lastDirectory"

var modeLabels = map[cursor.Mode]string{
	cursor.ModeZoomingIn:    "Zoom In",
	cursor.ModeZoomingOut:   "Zoom Out",
	cursor.ModeResting:      "Select",
	cursor.ModeMoving:       "Pan",
	cursor.ModeDrawingSpill: "Draw Spill",
}

// MainWindow is the viewer window.
type MainWindow struct {
	fyne.Window
	app       fyne.App
	view      *mapview.View
	prefs     *prefs.Prefs
	canvas    *canvas.MapCanvas
	modes     *widget.RadioGroup
	statusBar *widget.Label
}

// New creates the main window for view.
func New(fyneApp fyne.App, view *mapview.View, p *prefs.Prefs) *MainWindow {
	win := fyneApp.NewWindow("Spill Map")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		view:   view,
		prefs:  p,
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewMapCanvas(mw.view)
	mw.statusBar = widget.NewLabel("Ready")

	content := container.NewBorder(
		mw.createToolbar(),                // top
		container.NewPadded(mw.statusBar), // bottom
		nil,                               // left
		nil,                               // right
		mw.canvas.Container(),             // center
	)
	mw.SetContent(content)
	mw.Resize(fyne.NewSize(1024, 720))
}

// createToolbar creates the cursor mode selector.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	labels := make([]string, 0, len(modeLabels))
	for _, m := range cursor.Modes() {
		labels = append(labels, modeLabels[m])
	}

	mw.modes = widget.NewRadioGroup(labels, func(selected string) {
		for m, label := range modeLabels {
			if label == selected {
				mw.view.SetMode(m)
				return
			}
		}
	})
	mw.modes.Horizontal = true
	mw.modes.Required = true
	mw.modes.SetSelected(modeLabels[mw.view.Mode()])

	return container.NewHBox(widget.NewLabel("Mode:"), mw.modes)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	var items []*fyne.MenuItem
	for _, url := range mw.prefs.Session().Recent {
		items = append(items, fyne.NewMenuItem(filepath.Base(url), func() {
			mw.SetBackground(url)
		}))
	}
	recent := fyne.NewMenuItem("Recent Maps", nil)
	if len(items) > 0 {
		recent.ChildMenu = fyne.NewMenu("", items...)
	} else {
		recent.Disabled = true
	}

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open Map Image...", mw.onOpenBackground),
		recent,
		fyne.NewMenuItem("Load Spills...", mw.onLoadSpills),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Clear Map", mw.onClearBackground),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, helpMenu))
}

// setupEventHandlers reports view events in the status bar.
func (mw *MainWindow) setupEventHandlers() {
	bus := mw.view.Bus()

	bus.On(app.EventReady, func(interface{}) {
		mw.updateStatus("Map loaded")
	})

	bus.On(app.EventBackgroundLoadFailed, func(data interface{}) {
		if failed, ok := data.(app.LoadFailed); ok {
			mw.updateStatus(fmt.Sprintf("Could not load map %s: %v", filepath.Base(failed.URL), failed.Err))
		}
	})

	bus.On(app.EventFrameLoadFailed, func(data interface{}) {
		if failed, ok := data.(app.LoadFailed); ok {
			mw.updateStatus(fmt.Sprintf("Time step %d failed to load", failed.FrameID))
		}
	})

	bus.On(app.EventAnimationError, func(data interface{}) {
		if e, ok := data.(app.AnimationError); ok {
			mw.updateStatus(e.Message)
		}
	})

	bus.On(app.EventFrameChanged, func(interface{}) {
		go mw.showTimeStep()
	})

	bus.On(app.EventSpillDrawn, func(data interface{}) {
		if s, ok := data.(app.SpillDrawn); ok {
			mw.updateStatus(fmt.Sprintf("Spill from %.4f, %.4f to %.4f, %.4f",
				s.Start[0], s.Start[1], s.End[0], s.End[1]))
		}
	})

	bus.On(app.EventMapClicked, func(data interface{}) {
		if c, ok := data.(app.MapClicked); ok {
			mw.updateStatus(fmt.Sprintf("Clicked at %.0f, %.0f", c.X, c.Y))
		}
	})

	bus.On(app.EventDraggingFinished, func(data interface{}) {
		if d, ok := data.(app.DraggingFinished); ok {
			mw.updateStatus(fmt.Sprintf("Selected %.0f, %.0f to %.0f, %.0f", d[0].X, d[0].Y, d[1].X, d[1].Y))
		}
	})

	bus.On(app.EventModeChanged, func(data interface{}) {
		if name, ok := data.(string); ok {
			mw.prefs.SetMode(name)
		}
	})
}

func (mw *MainWindow) showTimeStep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := mw.view.State(ctx)
	if err != nil || !st.HasFrame {
		return
	}
	mw.updateStatus(fmt.Sprintf("Time step %d", st.FrameID))
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	mw.statusBar.SetText(text)
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.app.Preferences().String(prefKeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// saveLastDir saves the directory of the given file path.
func (mw *MainWindow) saveLastDir(filePath string) {
	mw.app.Preferences().SetString(prefKeyLastDir, filepath.Dir(filePath))
}

// SavePreferences writes the viewer preferences to disk.
func (mw *MainWindow) SavePreferences() {
	if err := mw.prefs.Save(); err != nil {
		mw.updateStatus("Could not save preferences: " + err.Error())
	}
}

// LoadSpillsFile reads a spill YAML file and draws it.
func (mw *MainWindow) LoadSpillsFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	spills, err := drawing.LoadSpills(f)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := mw.view.DrawSpills(ctx, spills); err != nil {
		return err
	}
	mw.prefs.SetSpills(path)
	mw.updateStatus(fmt.Sprintf("Loaded %d spills", len(spills)))
	return nil
}

// SetBackground loads a map image and remembers it.
func (mw *MainWindow) SetBackground(url string) {
	mw.prefs.SetBackground(url)
	mw.view.SetBackground(url)
	mw.setupMenus()
	if url != "" {
		mw.updateStatus("Loading " + filepath.Base(url))
	}
}

// Menu action handlers

func (mw *MainWindow) onOpenBackground() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		mw.SetBackground(path)
	}, mw.Window)

	fd.SetFilter(storage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onLoadSpills() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		path := reader.URI().Path()
		mw.saveLastDir(path)
		if err := mw.LoadSpillsFile(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)

	fd.SetFilter(storage.NewExtensionFileFilter([]string{".yaml", ".yml"}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onClearBackground() {
	mw.SetBackground("")
	mw.updateStatus("Map cleared")
}

// SelectMode updates the mode selector, which in turn switches the view.
func (mw *MainWindow) SelectMode(m cursor.Mode) {
	if label, ok := modeLabels[m]; ok {
		mw.modes.SetSelected(label)
	}
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About Spill Map",
		fmt.Sprintf("Spill Map v%s\n\n"+
			"Animated oil spill model output over a georeferenced map.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			version.Version, version.BuildTime, strings.TrimSpace(version.GitCommit)),
		mw.Window)
}
