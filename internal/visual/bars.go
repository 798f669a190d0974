// Package visual computes audio-reactive visual parameters frame by frame.
//
// The animator writes straight into a BarSink on every tick; nothing here
// allocates per frame or goes through the event bus.
package visual

import "math"

// Bar is the visual state of one bar for one frame.
type Bar struct {
	Scale   float64 // vertical scale in [MinScale, MaxScale]
	Opacity float64 // derived from Scale
}

const (
	// MinScale and MaxScale bound every bar's scale.
	MinScale = 0.15
	MaxScale = 1.0

	// RestScale and RestOpacity are applied when playback stops.
	RestScale   = 0.2
	RestOpacity = 0.5

	baseOpacity  = 0.6
	opacityRange = 0.4
)

// BarSink is the render target for an animator.
//
// Apply is called from the animation goroutine and must copy what it keeps;
// the slice is reused on the next frame. Rest asks the sink to ease every
// bar to the given scale and opacity.
type BarSink interface {
	Apply(bars []Bar)
	Rest(scale, opacity float64)
}

// SyntheticScale is the three-sine bar motion for elapsed time t (seconds)
// and the bar's phase, clamped to [MinScale, MaxScale]. Nominal centre 0.7.
func SyntheticScale(t, phase float64) float64 {
	wave1 := math.Sin(t*3.5+phase) * 0.35
	wave2 := math.Sin(t*5.7+phase*1.3) * 0.25
	wave3 := math.Sin(t*8.2+phase*0.7) * 0.10
	scale := 0.35 + wave1 + wave2 + wave3 + 0.35
	return ClampScale(scale)
}

// ClampScale bounds a scale to [MinScale, MaxScale].
func ClampScale(scale float64) float64 {
	return max(MinScale, min(MaxScale, scale))
}

// OpacityFor maps a clamped scale to opacity in [0.66, 1.0].
func OpacityFor(scale float64) float64 {
	return baseOpacity + scale*opacityRange
}

// barFor builds a Bar from an unclamped scale.
func barFor(scale float64) Bar {
	s := ClampScale(scale)
	return Bar{Scale: s, Opacity: OpacityFor(s)}
}
