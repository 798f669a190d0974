package fyne

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/ui/fyne/widgets"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
	"github.com/tejashwikalptaru/beatstage/res"
)

// Window defaults.
const (
	AppName = "beatstage"
	Width   = 480
	Height  = 640
)

// MainWindow is the main UI window implementing the UIView interface.
//
// The MainWindow follows the MVP pattern:
// - It's a "dumb view" that just displays data
// - All business logic is in the Presenter
// - User interactions are forwarded to the Presenter
//
// UIView methods may be called from any goroutine; they hop onto the UI
// goroutine with fyne.Do.
type MainWindow struct {
	app    fyne.App
	window fyne.Window
	logger *slog.Logger

	// UI components
	prevButton     *widget.Button
	playButton     *widget.Button
	nextButton     *widget.Button
	songInfo       *widget.Label
	currentTime    *widget.Label
	endTime        *widget.Label
	progressSlider *widget.Slider
	variantSelect  *widget.Select
	bars           *widgets.Bars
	lyrics         *widgets.LyricsView

	version string

	// Lifecycle management
	closeOnce sync.Once

	// Presenter (set after construction)
	presenter *Presenter
}

// NewMainWindow creates a new main window with barCount visualizer bars.
// version is shown in the About dialog.
func NewMainWindow(app fyne.App, barCount int, version string, logger *slog.Logger) *MainWindow {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &MainWindow{
		app:     app,
		logger:  logger,
		version: version,
		bars:    widgets.NewBars(barCount),
		lyrics:  widgets.NewLyricsView(),
	}

	w.window = app.NewWindow(AppName)
	w.buildUI()
	w.window.Resize(fyne.NewSize(Width, Height))

	return w
}

// Bars returns the visualizer widget, which is the animator's sink.
func (w *MainWindow) Bars() *widgets.Bars {
	return w.bars
}

// Lyrics returns the lyrics view.
func (w *MainWindow) Lyrics() *widgets.LyricsView {
	return w.lyrics
}

// SetPresenter connects the presenter to this view.
// This must be called before showing the window.
func (w *MainWindow) SetPresenter(presenter *Presenter) {
	w.presenter = presenter
	w.wirePresenterHandlers()
	w.addShortcuts()
}

// buildUI constructs the UI components.
func (w *MainWindow) buildUI() {
	// Control buttons
	w.prevButton = widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), nil)
	w.playButton = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), nil)
	w.nextButton = widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), nil)

	// Song info label
	w.songInfo = widget.NewLabel("No track loaded")
	w.songInfo.Truncation = fyne.TextTruncateEllipsis
	w.songInfo.TextStyle = fyne.TextStyle{Bold: true, Italic: true}

	// Visualizer variant picker
	names := make([]string, 0, 4)
	for _, v := range []visual.Variant{visual.VariantBars, visual.VariantSpectrum, visual.VariantWaveform, visual.VariantPulse} {
		names = append(names, v.String())
	}
	w.variantSelect = widget.NewSelect(names, nil)

	buttonsHBox := container.NewHBox(w.prevButton, w.playButton, w.nextButton)
	buttonsHolder := container.NewBorder(nil, nil, buttonsHBox, w.variantSelect, w.songInfo)

	// Progress slider
	w.progressSlider = widget.NewSlider(0, 1)
	w.progressSlider.Step = 0.1
	w.currentTime = widget.NewLabel(formatTime(0))
	w.endTime = widget.NewLabel(formatTime(0))
	sliderHolder := container.NewBorder(nil, nil, w.currentTime, w.endTime, w.progressSlider)

	// Bars above, lyrics below
	split := container.NewVSplit(container.NewPadded(w.bars), w.lyrics)
	split.Offset = 0.3

	controls := container.NewVBox(buttonsHolder, sliderHolder)
	w.window.SetContent(container.NewPadded(container.NewBorder(nil, controls, nil, nil, split)))

	// Menu
	w.window.SetMainMenu(fyne.NewMainMenu(w.createMenu()...))
}

// wirePresenterHandlers connects UI events to presenter handlers.
func (w *MainWindow) wirePresenterHandlers() {
	if w.presenter == nil {
		return
	}

	w.playButton.OnTapped = w.presenter.OnPlayClicked
	w.nextButton.OnTapped = w.presenter.OnNextClicked
	w.prevButton.OnTapped = w.presenter.OnPreviousClicked

	w.progressSlider.OnChangeEnded = w.presenter.OnSeekRequested

	w.variantSelect.OnChanged = w.presenter.OnVariantSelected

	w.lyrics.OnLineTapped = w.presenter.OnLineTapped
	w.lyrics.OnRetry = w.presenter.OnRetryClicked
}

// createMenu creates the application menu.
func (w *MainWindow) createMenu() []*fyne.Menu {
	separator := fyne.NewMenuItemSeparator()

	openFile := fyne.NewMenuItem("Open", w.handleOpenFile)
	openFolder := fyne.NewMenuItem("Open Folder", w.handleOpenFolder)
	exitMenu := fyne.NewMenuItem("Exit", w.Close)
	fileMenu := fyne.NewMenu("File", openFile, openFolder, separator, exitMenu)

	about := fyne.NewMenuItem("About", w.showAbout)
	helpMenu := fyne.NewMenu("Help", about)

	return []*fyne.Menu{fileMenu, helpMenu}
}

// handleOpenFile handles the "Open" menu action.
func (w *MainWindow) handleOpenFile() {
	if w.presenter == nil {
		return
	}

	NewFileDialog(w.window, func(filePath string) {
		if err := w.presenter.OnFileOpened(filePath); err != nil {
			w.ShowNotification("Error", fmt.Sprintf("Failed to open file: %v", err))
		}
	}, w.logger).Show()
}

// handleOpenFolder handles the "Open Folder" menu action.
func (w *MainWindow) handleOpenFolder() {
	if w.presenter == nil {
		return
	}

	NewFolderDialog(w.window, func(folderPath string) {
		if err := w.presenter.OnFolderOpened(folderPath); err != nil {
			w.ShowNotification("Error", fmt.Sprintf("Failed to open folder: %v", err))
		}
	}, w.logger).Show()
}

func (w *MainWindow) showAbout() {
	content := widget.NewRichTextFromMarkdown(res.AboutContent(w.version))
	content.Wrapping = fyne.TextWrapWord
	d := dialog.NewCustom("About "+AppName, "Close", content, w.window)
	d.Resize(fyne.NewSize(Width*0.8, Height*0.5))
	d.Show()
}

// addShortcuts adds keyboard shortcuts.
func (w *MainWindow) addShortcuts() {
	canvas := w.window.Canvas()

	canvas.AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeySpace,
		Modifier: desktop.AltModifier,
	}, func(fyne.Shortcut) {
		w.presenter.OnPlayClicked()
	})

	canvas.AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyRight,
		Modifier: desktop.AltModifier,
	}, func(fyne.Shortcut) {
		w.presenter.OnNextClicked()
	})

	canvas.AddShortcut(&desktop.CustomShortcut{
		KeyName:  fyne.KeyLeft,
		Modifier: desktop.AltModifier,
	}, func(fyne.Shortcut) {
		w.presenter.OnPreviousClicked()
	})
}

// ShowAndRun shows the window and runs the application.
func (w *MainWindow) ShowAndRun() {
	w.window.ShowAndRun()
}

// SetOnClosed registers a callback run when the window closes.
func (w *MainWindow) SetOnClosed(fn func()) {
	w.window.SetOnClosed(fn)
}

// Close closes the window.
// It's safe to call multiple times (idempotent).
func (w *MainWindow) Close() {
	w.closeOnce.Do(func() {
		w.window.Close()
	})
}

// GetWindow returns the underlying Fyne window.
func (w *MainWindow) GetWindow() fyne.Window {
	return w.window
}

// UIView interface implementation

// SetPlayState updates the play/pause button state.
func (w *MainWindow) SetPlayState(playing bool) {
	fyne.Do(func() {
		if playing {
			w.playButton.SetIcon(theme.MediaPauseIcon())
		} else {
			w.playButton.SetIcon(theme.MediaPlayIcon())
		}
	})
}

// SetTrackInfo updates the displayed track information.
func (w *MainWindow) SetTrackInfo(title, artist string) {
	// Format: "Artist - Title"
	var text string
	switch {
	case artist != "" && title != "":
		text = fmt.Sprintf("%s - %s", artist, title)
	case title != "":
		text = title
	default:
		text = "No track loaded"
	}

	fyne.Do(func() {
		w.songInfo.SetText(text)
		w.window.SetTitle(AppName + " - " + text)
	})
}

// SetProgress updates the slider and both time labels.
func (w *MainWindow) SetProgress(position, duration float64) {
	fyne.Do(func() {
		w.currentTime.SetText(formatTime(position))
		w.endTime.SetText(formatTime(duration))
		if duration > 0 {
			w.progressSlider.Max = duration
			w.progressSlider.Value = math.Min(position, duration)
			w.progressSlider.Refresh()
		}
	})
}

// SetLyricsView renders a synchronizer snapshot.
func (w *MainWindow) SetLyricsView(view domain.LyricsView) {
	fyne.Do(func() {
		w.lyrics.SetView(view)
	})
}

// SetActiveLine highlights a lyric line.
func (w *MainWindow) SetActiveLine(index int) {
	fyne.Do(func() {
		w.lyrics.SetActive(index)
	})
}

// SetVariant shows the selected visualizer variant.
func (w *MainWindow) SetVariant(variant visual.Variant) {
	fyne.Do(func() {
		if w.variantSelect.Selected == variant.String() {
			return
		}
		// Avoid feeding the change back to the presenter
		onChanged := w.variantSelect.OnChanged
		w.variantSelect.OnChanged = nil
		w.variantSelect.SetSelected(variant.String())
		w.variantSelect.OnChanged = onChanged
	})
}

// ShowNotification displays a system notification.
func (w *MainWindow) ShowNotification(title, message string) {
	w.app.SendNotification(fyne.NewNotification(title, message))
}

func formatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	return fmt.Sprintf("%.2d:%.2d", int(seconds/60), int(math.Mod(seconds, 60)))
}

// Verify UIView implementation
var _ UIView = (*MainWindow)(nil)
