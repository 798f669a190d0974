package analysis

import "math"

// BandEnergy holds smoothed low/mid/high energy for a frame.
type BandEnergy struct {
	Bass float64
	Mid  float64
	High float64
}

// Average returns the mean of the three bands.
func (e BandEnergy) Average() float64 {
	return (e.Bass + e.Mid + e.High) / 3
}

// MeasureEnergy splits normalized frequency bins into bass (bins 1-9),
// mid (10-49) and high (50+) and returns the root of each band's mean.
// Frames too short for a band report 0 for it.
func MeasureEnergy(frequency []byte) BandEnergy {
	return BandEnergy{
		Bass: bandRMS(frequency, 1, 10),
		Mid:  bandRMS(frequency, 10, 50),
		High: bandRMS(frequency, 50, len(frequency)),
	}
}

func bandRMS(frequency []byte, from, to int) float64 {
	if from >= len(frequency) || to <= from {
		return 0
	}
	to = min(to, len(frequency))

	var sum float64
	for i := from; i < to; i++ {
		sum += float64(frequency[i]) / 255
	}
	return math.Sqrt(sum / float64(to-from))
}

// Smooth blends next into e with the given weight for the previous value.
func (e BandEnergy) Smooth(next BandEnergy, keep float64) BandEnergy {
	return BandEnergy{
		Bass: e.Bass*keep + next.Bass*(1-keep),
		Mid:  e.Mid*keep + next.Mid*(1-keep),
		High: e.High*keep + next.High*(1-keep),
	}
}

// GroupBins maps frequency bins onto n bars using logarithmic bin grouping
// (bar x covers bins up to 2^(x·10/(n-1))) and returns each bar's peak in
// [0, 1]. The DC bin is skipped. out is reused when it has length n.
func GroupBins(frequency []byte, n int, out []float64) []float64 {
	if len(out) != n {
		out = make([]float64, n)
	}
	clear(out)
	if len(frequency) < 2 || n < 1 {
		return out
	}

	b0 := 1
	for x := range n {
		b1 := len(frequency) - 1
		if n > 1 {
			b1 = int(math.Pow(2, float64(x)*10.0/float64(n-1)))
		}
		b1 = max(min(b1, len(frequency)-1), b0)

		var peak byte
		for b := b0; b <= b1 && b < len(frequency); b++ {
			peak = max(peak, frequency[b])
		}
		out[x] = float64(peak) / 255
		b0 = b1 + 1
	}
	return out
}
