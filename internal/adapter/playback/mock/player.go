// Package mock provides a simulated implementation of the PlaybackContext
// interface. Time advances with the wall clock and the level data is
// synthetic, so visualizers and the lyric synchronizer can run without audio.
package mock

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

const (
	defaultDuration = 180.0 // seconds
	defaultBands    = 32
	defaultBins     = 1024
)

// Player is a mock implementation of the PlaybackContext interface.
//
// Thread-safety: This implementation is thread-safe.
type Player struct {
	// Dependencies
	logger *slog.Logger
	now    func() time.Time

	// Configuration
	duration float64
	bands    int
	bins     int

	// Queue state
	queue []domain.Track
	index int

	// Clock state: position is offset plus time since started while playing
	playing bool
	offset  float64
	started time.Time

	// Behavior configuration (for testing error scenarios)
	failSeek bool

	mu sync.RWMutex
}

// Option configures a Player.
type Option func(*Player)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Player) {
		p.now = now
	}
}

// WithDuration sets the simulated length of every track in seconds.
func WithDuration(seconds float64) Option {
	return func(p *Player) {
		if seconds > 0 {
			p.duration = seconds
		}
	}
}

// WithResolution sets the number of level bands and frequency bins.
func WithResolution(bands, bins int) Option {
	return func(p *Player) {
		if bands > 0 {
			p.bands = bands
		}
		if bins > 0 {
			p.bins = bins
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger
	}
}

// NewPlayer creates a paused player with an empty queue.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		logger:   slog.New(slog.DiscardHandler),
		now:      time.Now,
		duration: defaultDuration,
		bands:    defaultBands,
		bins:     defaultBins,
		index:    -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetFailSeek configures the mock to fail seeking (for testing).
func (p *Player) SetFailSeek(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSeek = fail
}

// CurrentTime returns the simulated position in seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positionLocked()
}

func (p *Player) positionLocked() float64 {
	pos := p.offset
	if p.playing {
		pos += p.now().Sub(p.started).Seconds()
	}
	return math.Min(pos, p.duration)
}

// Duration returns the simulated track length.
func (p *Player) Duration() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index < 0 {
		return 0
	}
	return p.duration
}

// IsPlaying reports whether the clock is running and the track has not ended.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing && p.positionLocked() < p.duration
}

// Current returns the current track, or nil with an empty queue.
func (p *Player) Current() *domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index < 0 || p.index >= len(p.queue) {
		return nil
	}
	track := p.queue[p.index]
	return &track
}

// AudioLevels returns synthetic band levels; all zero while paused.
func (p *Player) AudioLevels() []float64 {
	return p.Frame().Levels
}

// FrequencyData returns synthetic bin magnitudes; all zero while paused.
func (p *Player) FrequencyData() []byte {
	return p.Frame().Frequency
}

// Frame returns levels and bins for the same instant.
func (p *Player) Frame() domain.AudioLevelFrame {
	p.mu.RLock()
	t := p.positionLocked()
	playing := p.playing && t < p.duration
	bands, bins := p.bands, p.bins
	p.mu.RUnlock()

	frame := domain.AudioLevelFrame{
		Levels:    make([]float64, bands),
		Frequency: make([]byte, bins),
	}
	if !playing {
		return frame
	}

	// A slow beat envelope over a falling spectrum
	beat := 0.5 + 0.5*math.Sin(t*2*math.Pi*2)
	for i := range frame.Levels {
		x := float64(i) / float64(max(bands-1, 1))
		tilt := 1 - 0.6*x
		ripple := 0.5 + 0.5*math.Sin(t*3+float64(i)*0.7)
		frame.Levels[i] = math.Min(1, tilt*(0.3+0.7*beat*ripple))
	}
	for i := range frame.Frequency {
		x := float64(i) / float64(bins)
		v := (1 - x) * (0.4 + 0.6*beat) * (0.6 + 0.4*math.Sin(t*5+float64(i)*0.05))
		frame.Frequency[i] = byte(math.Max(0, math.Min(255, v*255)))
	}
	return frame
}

// TogglePlayPause flips between playing and paused. No-op with an empty queue.
func (p *Player) TogglePlayPause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.index < 0 {
		return
	}
	if p.playing {
		p.offset = p.positionLocked()
		p.playing = false
	} else {
		if p.offset >= p.duration {
			p.offset = 0
		}
		p.started = p.now()
		p.playing = true
	}
	p.logger.Debug("mock playback toggled", slog.Bool("playing", p.playing))
}

// Seek moves the simulated position.
func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failSeek {
		return domain.ErrInvalidPosition
	}
	if p.index < 0 {
		return domain.ErrQueueEmpty
	}
	if seconds < 0 || seconds > p.duration {
		return &domain.ValidationError{
			Field:   "position",
			Value:   seconds,
			Message: "outside the track",
			Err:     domain.ErrInvalidPosition,
		}
	}

	p.offset = seconds
	p.started = p.now()
	return nil
}

// SetQueue replaces the queue and selects the track at index, paused at 0.
func (p *Player) SetQueue(tracks []domain.Track, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(tracks) == 0 {
		p.queue, p.index = nil, -1
		p.resetLocked()
		return nil
	}
	if index < 0 || index >= len(tracks) {
		return &domain.ValidationError{Field: "index", Value: index, Message: "outside the queue", Err: domain.ErrInvalidIndex}
	}

	p.queue = append([]domain.Track(nil), tracks...)
	p.index = index
	p.resetLocked()
	return nil
}

// PlayNext advances to the next track and keeps the play state.
func (p *Player) PlayNext() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return domain.ErrQueueEmpty
	}
	if p.index+1 >= len(p.queue) {
		return domain.ErrEndOfQueue
	}
	p.index++
	p.restartLocked()
	return nil
}

// PlayPrevious goes back one track and keeps the play state.
func (p *Player) PlayPrevious() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return domain.ErrQueueEmpty
	}
	if p.index == 0 {
		return domain.ErrStartOfQueue
	}
	p.index--
	p.restartLocked()
	return nil
}

func (p *Player) resetLocked() {
	p.playing = false
	p.offset = 0
}

func (p *Player) restartLocked() {
	p.offset = 0
	p.started = p.now()
}

// Verify that Player implements the PlaybackContext interface
var (
	_ ports.PlaybackContext = (*Player)(nil)
	_ ports.FrameSource     = (*Player)(nil)
)
