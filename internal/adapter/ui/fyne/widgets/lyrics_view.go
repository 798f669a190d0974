package widgets

import (
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// ScrollDuration is the length of the smooth scroll to the active line.
const ScrollDuration = 250 * time.Millisecond

// Status messages shown instead of the lyric list.
const (
	MessageNoLyrics     = "No lyrics for this track"
	MessageLoading      = "Loading lyrics..."
	MessageTranscribing = "Transcribing lyrics..."
	MessageFailed       = "Transcription failed"
)

// LyricsView shows the lyric lines of the current track with the active one
// highlighted and scrolled to the centre, or a status screen while there is
// nothing to show.
//
// All methods must be called on the Fyne UI goroutine.
type LyricsView struct {
	widget.BaseWidget

	// OnLineTapped is called with the index of a tapped line
	OnLineTapped func(index int)

	// OnRetry is called when the retry button is pressed
	OnRetry func()

	message  *widget.Label
	progress *widget.ProgressBarInfinite
	retry    *widget.Button
	status   *fyne.Container

	lines  *fyne.Container
	scroll *container.Scroll
	root   *fyne.Container

	labels     []*LyricLine
	active     int
	state      domain.SyncState
	scrollAnim *fyne.Animation
}

// NewLyricsView creates an empty view in the no lyrics state.
func NewLyricsView() *LyricsView {
	v := &LyricsView{active: -1}

	v.message = widget.NewLabel(MessageNoLyrics)
	v.message.Alignment = fyne.TextAlignCenter
	v.progress = widget.NewProgressBarInfinite()
	v.retry = widget.NewButton("Retry", func() {
		if v.OnRetry != nil {
			v.OnRetry()
		}
	})
	v.status = container.NewCenter(container.NewVBox(v.message, v.progress, v.retry))

	v.lines = container.NewVBox()
	v.scroll = container.NewVScroll(v.lines)
	v.root = container.NewStack(v.status, v.scroll)

	v.ExtendBaseWidget(v)
	v.showStatus(MessageNoLyrics, false, false)
	return v
}

// CreateRenderer implements fyne.Widget.
func (v *LyricsView) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(v.root)
}

// SetView renders a synchronizer snapshot.
func (v *LyricsView) SetView(view domain.LyricsView) {
	v.state = view.State

	switch view.State {
	case domain.StateLoading:
		v.showStatus(MessageLoading, true, false)
	case domain.StateTranscribing:
		v.showStatus(MessageTranscribing, true, false)
	case domain.StateFailed:
		v.retry.SetText("Retry")
		v.showStatus(MessageFailed, false, view.CanRetry)
	case domain.StateCompleted:
		if view.HasLyrics() {
			v.showLines(view.Segments)
			v.SetActive(view.ActiveIndex)
			return
		}
		v.showStatus(MessageNoLyrics, false, false)
	default:
		v.retry.SetText("Transcribe")
		v.showStatus(MessageNoLyrics, false, view.CanRetry)
	}
}

func (v *LyricsView) showStatus(text string, busy, canRetry bool) {
	v.message.SetText(text)
	setVisible(v.progress, busy)
	setVisible(v.retry, canRetry)
	v.status.Show()
	v.scroll.Hide()

	v.labels = nil
	v.active = -1
	v.lines.RemoveAll()
}

func (v *LyricsView) showLines(segments []domain.LyricSegment) {
	v.labels = make([]*LyricLine, len(segments))
	objects := make([]fyne.CanvasObject, len(segments))
	for i, seg := range segments {
		line := NewLyricLine(seg.Text, i, v.lineTapped)
		v.labels[i] = line
		objects[i] = line
	}
	v.lines.Objects = objects
	v.lines.Refresh()

	v.active = -1
	v.status.Hide()
	v.scroll.Show()
	v.scroll.ScrollToTop()
}

func (v *LyricsView) lineTapped(index int) {
	if v.OnLineTapped != nil {
		v.OnLineTapped(index)
	}
}

// SetActive highlights line index and scrolls it to the centre.
// A negative index clears the highlight.
func (v *LyricsView) SetActive(index int) {
	if index >= len(v.labels) || index == v.active {
		return
	}
	if v.active >= 0 {
		v.labels[v.active].SetActive(false)
	}
	v.active = index
	if index < 0 {
		return
	}

	v.labels[index].SetActive(true)
	v.scrollToLine(index)
}

// scrollToLine animates the scroll offset so line index sits in the middle.
func (v *LyricsView) scrollToLine(index int) {
	line := v.labels[index]
	viewport := v.scroll.Size().Height
	content := v.lines.MinSize().Height

	target := line.Position().Y + line.Size().Height/2 - viewport/2
	target = max(0, min(target, content-viewport))

	if v.scrollAnim != nil {
		v.scrollAnim.Stop()
	}
	from := v.scroll.Offset.Y
	v.scrollAnim = fyne.NewAnimation(ScrollDuration, func(f float32) {
		v.scroll.Offset = fyne.NewPos(0, from+(target-from)*f)
		v.scroll.Refresh()
	})
	v.scrollAnim.Curve = fyne.AnimationEaseInOut
	v.scrollAnim.Start()
}

// State returns the state last rendered.
func (v *LyricsView) State() domain.SyncState {
	return v.state
}

// ActiveIndex returns the highlighted line, or -1.
func (v *LyricsView) ActiveIndex() int {
	return v.active
}

// LineCount returns the number of lyric lines shown.
func (v *LyricsView) LineCount() int {
	return len(v.labels)
}

// Line returns the widget for line index.
func (v *LyricsView) Line(index int) *LyricLine {
	return v.labels[index]
}

// Message returns the status text, empty while lines are shown.
func (v *LyricsView) Message() string {
	if !v.status.Visible() {
		return ""
	}
	return v.message.Text
}

// RetryVisible reports whether the retry button is offered.
func (v *LyricsView) RetryVisible() bool {
	return v.status.Visible() && v.retry.Visible()
}

// Retry returns the retry button.
func (v *LyricsView) Retry() *widget.Button {
	return v.retry
}

func setVisible(o fyne.CanvasObject, visible bool) {
	if visible {
		o.Show()
	} else {
		o.Hide()
	}
}
