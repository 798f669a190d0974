package visual

import (
	"fmt"
	"math"
	"strings"

	"github.com/tejashwikalptaru/beatstage/internal/analysis"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// Variant selects how bars are driven.
type Variant int

// Available visualizer variants.
const (
	// VariantBars is synthetic sine motion, independent of audio data
	VariantBars Variant = iota

	// VariantSpectrum samples raw frequency bins with logarithmic grouping
	VariantSpectrum

	// VariantWaveform mirrors per-band levels out from the centre bar
	VariantWaveform

	// VariantPulse drives every bar from the frame's average energy
	VariantPulse
)

var variantNames = map[Variant]string{
	VariantBars:     "bars",
	VariantSpectrum: "spectrum",
	VariantWaveform: "waveform",
	VariantPulse:    "pulse",
}

// String returns the config name of the variant.
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVariant parses a config or CLI variant name.
func ParseVariant(name string) (Variant, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return VariantBars, fmt.Errorf("%w: %q", domain.ErrUnknownVariant, name)
}

// NeedsAudio reports whether the variant reads audio frames.
func (v Variant) NeedsAudio() bool {
	return v != VariantBars
}

// FrameInput is everything a variant may read for one frame.
type FrameInput struct {
	Elapsed float64 // seconds since the animation loop started
	Phases  []float64
	Frame   domain.AudioLevelFrame
	Energy  float64 // smoothed average energy, used by VariantPulse

	scratch []float64
}

// Render fills out (len(out) == len(in.Phases)) for the given variant.
// Data-driven variants fall back to synthetic motion when the frame is empty.
func Render(v Variant, in *FrameInput, out []Bar) {
	switch {
	case v == VariantSpectrum && len(in.Frame.Frequency) > 0:
		renderSpectrum(in, out)
	case v == VariantWaveform && len(in.Frame.Levels) > 0:
		renderWaveform(in, out)
	case v == VariantPulse && !in.Frame.Empty():
		renderPulse(in, out)
	default:
		renderSynthetic(in, out)
	}
}

func renderSynthetic(in *FrameInput, out []Bar) {
	for i := range out {
		s := SyntheticScale(in.Elapsed, in.Phases[i])
		out[i] = Bar{Scale: s, Opacity: OpacityFor(s)}
	}
}

func renderSpectrum(in *FrameInput, out []Bar) {
	in.scratch = analysis.GroupBins(in.Frame.Frequency, len(out), in.scratch)
	for i, g := range in.scratch {
		out[i] = barFor(MinScale + g*(MaxScale-MinScale))
	}
}

func renderWaveform(in *FrameInput, out []Bar) {
	levels := in.Frame.Levels
	n := len(out)
	centre := float64(n-1) / 2
	reach := math.Max(centre, 1)

	for i := range out {
		d := math.Abs(float64(i)-centre) / reach
		idx := int(math.Round(d * float64(len(levels)-1)))
		idx = max(0, min(idx, len(levels)-1))
		out[i] = barFor(MinScale + levels[idx]*(MaxScale-MinScale))
	}
}

func renderPulse(in *FrameInput, out []Bar) {
	for i := range out {
		wobble := math.Sin(in.Elapsed*2+in.Phases[i]) * 0.05
		out[i] = barFor(0.35 + in.Energy*0.65 + wobble)
	}
}
