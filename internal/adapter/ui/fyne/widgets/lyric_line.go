package widgets

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
)

// Ensure LyricLine implements the Tappable interface
var _ fyne.Tappable = (*LyricLine)(nil)

// LyricLine is a wrapping label for one lyric segment that reports taps
// with its line index.
type LyricLine struct {
	widget.Label
	index  int
	tapped func(index int)
}

// NewLyricLine creates a line for segment index.
func NewLyricLine(text string, index int, tapped func(index int)) *LyricLine {
	l := &LyricLine{index: index, tapped: tapped}
	l.Text = text
	l.Wrapping = fyne.TextWrapWord
	l.Alignment = fyne.TextAlignCenter
	l.ExtendBaseWidget(l)
	return l
}

// Index returns the segment index of the line.
func (l *LyricLine) Index() int {
	return l.index
}

// SetActive switches between the highlighted and the normal style.
func (l *LyricLine) SetActive(active bool) {
	l.TextStyle = fyne.TextStyle{Bold: active}
	if active {
		l.Importance = widget.HighImportance
	} else {
		l.Importance = widget.MediumImportance
	}
	l.Refresh()
}

// Tapped implements fyne.Tappable.
func (l *LyricLine) Tapped(_ *fyne.PointEvent) {
	if l.tapped != nil {
		l.tapped(l.index)
	}
}
