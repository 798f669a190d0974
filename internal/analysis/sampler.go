// Package analysis turns PCM audio into per-frame level data for visualizers.
package analysis

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/madelynnblue/go-dsp/fft"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

const (
	// DefaultWindowSize is the FFT window in samples.
	DefaultWindowSize = 2048

	// DefaultBands is the number of smoothed level bands.
	DefaultBands = 32

	minFrequency = 20.0
	maxFrequency = 20000.0

	decayWhenSilent = 0.8
)

// Sampler computes AudioLevelFrames from windows of mono PCM samples.
// It keeps the previous frame for temporal smoothing, so one Sampler
// serves one audio source.
//
// Thread-safety: Analyze may be called from any goroutine; calls serialize.
type Sampler struct {
	sampleRate float64
	windowSize int
	bands      int

	mu     sync.Mutex
	buf    []float64 // reusable windowed input
	window []float64 // precomputed Hann coefficients
	edges  []float64 // band edges in Hz, len = bands+1
	prev   []float64
}

// NewSampler creates a sampler. Non-positive windowSize or bands use defaults.
func NewSampler(sampleRate float64, windowSize, bands int) *Sampler {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if bands <= 0 {
		bands = DefaultBands
	}

	s := &Sampler{
		sampleRate: sampleRate,
		windowSize: windowSize,
		bands:      bands,
		buf:        make([]float64, windowSize),
		window:     make([]float64, windowSize),
		edges:      make([]float64, bands+1),
		prev:       make([]float64, bands),
	}

	for i := range windowSize {
		s.window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize-1)))
	}

	top := math.Min(maxFrequency, sampleRate/2)
	ratio := math.Pow(top/minFrequency, 1/float64(bands))
	for i := range s.edges {
		s.edges[i] = minFrequency * math.Pow(ratio, float64(i))
	}

	return s
}

// WindowSize returns the number of samples one analysis consumes.
func (s *Sampler) WindowSize() int {
	return s.windowSize
}

// Analyze runs one analysis pass. Empty input decays the previous levels
// and yields an all-zero spectrum, which is the quiescent output.
func (s *Sampler) Analyze(samples []float64) domain.AudioLevelFrame {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := domain.AudioLevelFrame{
		Levels:    make([]float64, s.bands),
		Frequency: make([]byte, s.windowSize/2),
	}

	if len(samples) == 0 {
		for b := range s.bands {
			frame.Levels[b] = s.prev[b] * decayWhenSilent
			s.prev[b] = frame.Levels[b]
		}
		return frame
	}

	clear(s.buf)
	copy(s.buf, samples)
	for i := range s.buf {
		s.buf[i] *= s.window[i]
	}

	spectrum := fft.FFTReal(s.buf)
	half := len(spectrum) / 2

	// Bins: linear magnitude to a 0..255 byte through a -100..-30 dB range
	for i := 0; i < half && i < len(frame.Frequency); i++ {
		mag := cmplx.Abs(spectrum[i]) / float64(s.windowSize)
		frame.Frequency[i] = magnitudeToByte(mag)
	}

	binHz := s.sampleRate / float64(s.windowSize)
	for b := range s.bands {
		lo := max(int(s.edges[b]/binHz), 1)
		hi := min(int(s.edges[b+1]/binHz), half-1)

		var sum float64
		count := 0
		for i := lo; i <= hi; i++ {
			sum += cmplx.Abs(spectrum[i])
			count++
		}
		if count > 0 {
			sum /= float64(count)
		}

		level := 0.0
		if sum > 0 {
			level = (20*math.Log10(sum) + 10) / 50
		}
		level = clamp01(level)

		// Fast attack, slow decay
		if level > s.prev[b] {
			level = level*0.6 + s.prev[b]*0.4
		} else {
			level = level*0.25 + s.prev[b]*0.75
		}
		frame.Levels[b] = level
		s.prev[b] = level
	}

	return frame
}

// Reset forgets the smoothing history.
func (s *Sampler) Reset() {
	s.mu.Lock()
	clear(s.prev)
	s.mu.Unlock()
}

func magnitudeToByte(mag float64) byte {
	const minDB, maxDB = -100.0, -30.0
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := (db - minDB) / (maxDB - minDB)
	return byte(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
