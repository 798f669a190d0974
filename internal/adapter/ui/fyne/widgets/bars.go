// Package widgets provides custom Fyne widgets for the beatstage player.
package widgets

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

// RestDuration is the length of the eased transition to the rest pose.
const RestDuration = 350 * time.Millisecond

// Bars draws one rectangle per bar, bottom-aligned, with height following
// the bar scale and alpha following its opacity. It implements visual.BarSink.
type Bars struct {
	widget.BaseWidget

	mu      sync.Mutex
	bars    []visual.Bar
	fill    color.Color
	gap     float32
	resting *fyne.Animation
}

// NewBars creates a bar widget showing n bars at rest.
func NewBars(n int) *Bars {
	b := &Bars{
		bars: make([]visual.Bar, max(n, 1)),
		fill: theme.Color(theme.ColorNamePrimary),
		gap:  4,
	}
	for i := range b.bars {
		b.bars[i] = visual.Bar{Scale: visual.RestScale, Opacity: visual.RestOpacity}
	}
	b.ExtendBaseWidget(b)
	return b
}

// SetColor changes the bar colour.
func (b *Bars) SetColor(c color.Color) {
	b.mu.Lock()
	b.fill = c
	b.mu.Unlock()
	b.Refresh()
}

// Snapshot returns a copy of the bars as currently drawn.
func (b *Bars) Snapshot() []visual.Bar {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]visual.Bar(nil), b.bars...)
}

// Apply implements visual.BarSink. Safe to call from the animation goroutine.
func (b *Bars) Apply(bars []visual.Bar) {
	b.mu.Lock()
	copy(b.bars, bars)
	b.mu.Unlock()

	fyne.Do(func() {
		b.stopRest()
		b.Refresh()
	})
}

// Rest implements visual.BarSink by easing every bar to scale and opacity.
func (b *Bars) Rest(scale, opacity float64) {
	from := b.Snapshot()

	fyne.Do(func() {
		b.stopRest()

		anim := fyne.NewAnimation(RestDuration, func(f float32) {
			t := float64(f)
			b.mu.Lock()
			for i := range b.bars {
				b.bars[i].Scale = from[i].Scale + (scale-from[i].Scale)*t
				b.bars[i].Opacity = from[i].Opacity + (opacity-from[i].Opacity)*t
			}
			b.mu.Unlock()
			b.Refresh()
		})
		anim.Curve = fyne.AnimationEaseOut

		b.mu.Lock()
		b.resting = anim
		b.mu.Unlock()
		anim.Start()
	})
}

func (b *Bars) stopRest() {
	b.mu.Lock()
	anim := b.resting
	b.resting = nil
	b.mu.Unlock()

	if anim != nil {
		anim.Stop()
	}
}

// MinSize keeps the bars visible in tight layouts.
func (b *Bars) MinSize() fyne.Size {
	return fyne.NewSize(float32(len(b.bars))*8, 48)
}

// CreateRenderer implements fyne.Widget.
func (b *Bars) CreateRenderer() fyne.WidgetRenderer {
	r := &barsRenderer{bars: b}
	r.rects = make([]*canvas.Rectangle, len(b.bars))
	r.objects = make([]fyne.CanvasObject, len(b.bars))
	for i := range r.rects {
		rect := canvas.NewRectangle(b.fill)
		rect.CornerRadius = 2
		r.rects[i] = rect
		r.objects[i] = rect
	}
	return r
}

type barsRenderer struct {
	bars    *Bars
	rects   []*canvas.Rectangle
	objects []fyne.CanvasObject
	size    fyne.Size
}

func (r *barsRenderer) Layout(size fyne.Size) {
	r.size = size
	r.update()
}

func (r *barsRenderer) MinSize() fyne.Size {
	return r.bars.MinSize()
}

func (r *barsRenderer) Refresh() {
	r.update()
	canvas.Refresh(r.bars)
}

func (r *barsRenderer) update() {
	n := len(r.rects)
	if n == 0 || r.size.Width <= 0 {
		return
	}

	bars := r.bars.Snapshot()
	r.bars.mu.Lock()
	fill := r.bars.fill
	gap := r.bars.gap
	r.bars.mu.Unlock()

	width := (r.size.Width - gap*float32(n-1)) / float32(n)
	width = max(width, 1)
	red, green, blue, _ := fill.RGBA()

	for i, rect := range r.rects {
		h := float32(bars[i].Scale) * r.size.Height
		rect.Resize(fyne.NewSize(width, h))
		rect.Move(fyne.NewPos(float32(i)*(width+gap), r.size.Height-h))
		rect.FillColor = color.NRGBA{
			R: uint8(red >> 8),
			G: uint8(green >> 8),
			B: uint8(blue >> 8),
			A: uint8(bars[i].Opacity * 255),
		}
		rect.Refresh()
	}
}

func (r *barsRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *barsRenderer) Destroy() {}

// Verify that Bars implements the BarSink interface
var _ visual.BarSink = (*Bars)(nil)
