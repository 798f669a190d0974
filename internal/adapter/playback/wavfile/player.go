// Package wavfile implements the PlaybackContext interface over decoded WAV
// files. It does not drive an output device: the position follows the wall
// clock and the level data is computed from the decoded PCM at that position,
// which is enough to drive visualizers and lyric sync from real audio.
package wavfile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/tejashwikalptaru/beatstage/internal/analysis"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// decodeChunk is how many frames are pulled from the decoder per Stream call.
const decodeChunk = 4096

// Clip is a decoded mono clip.
type Clip struct {
	Format  beep.Format
	Samples []float64
}

// Duration returns the length of the clip.
func (c *Clip) Duration() time.Duration {
	return c.Format.SampleRate.D(len(c.Samples))
}

// Decode reads a WAV file fully into memory as a mono mix.
func Decode(path string) (*Clip, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, err
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	clip := &Clip{Format: format, Samples: make([]float64, 0, max(streamer.Len(), 0))}
	buf := make([][2]float64, decodeChunk)
	for {
		n, ok := streamer.Stream(buf)
		for _, s := range buf[:n] {
			clip.Samples = append(clip.Samples, (s[0]+s[1])/2)
		}
		if !ok {
			break
		}
	}
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return clip, nil
}

// Player plays a queue of WAV tracks silently.
//
// Thread-safety: This implementation is thread-safe.
type Player struct {
	// Dependencies
	logger  *slog.Logger
	now     func() time.Time
	sampler *analysis.Sampler
	bands   int

	// Queue state
	queue []domain.Track
	index int
	clip  *Clip

	// Clock state
	playing bool
	offset  float64
	started time.Time

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

// WithBands sets the number of level bands.
func WithBands(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.bands = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger
	}
}

// NewPlayer creates a player with an empty queue.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		bands:  analysis.DefaultBands,
		index:  -1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CurrentTime returns the playback position in seconds.
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
	return math.Min(pos, p.durationLocked())
}

func (p *Player) durationLocked() float64 {
	if p.clip == nil {
		return 0
	}
	return p.clip.Duration().Seconds()
}

// Duration returns the length of the current clip.
func (p *Player) Duration() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.durationLocked()
}

// IsPlaying reports whether the clock runs and the clip has not ended.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing && p.positionLocked() < p.durationLocked()
}

// Current returns the current track, or nil with an empty queue.
func (p *Player) Current() *domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index < 0 {
		return nil
	}
	track := p.queue[p.index]
	return &track
}

// AudioLevels returns band levels at the current position.
func (p *Player) AudioLevels() []float64 {
	return p.Frame().Levels
}

// FrequencyData returns bin magnitudes at the current position.
func (p *Player) FrequencyData() []byte {
	return p.Frame().Frequency
}

// Frame analyses the window of samples ending at the current position.
// While paused the sampler is fed silence and the levels decay.
func (p *Player) Frame() domain.AudioLevelFrame {
	p.mu.RLock()
	clip, sampler := p.clip, p.sampler
	pos := p.positionLocked()
	playing := p.playing && pos < p.durationLocked()
	p.mu.RUnlock()

	if clip == nil || sampler == nil {
		return domain.AudioLevelFrame{}
	}
	if !playing {
		return sampler.Analyze(nil)
	}

	end := min(clip.Format.SampleRate.N(time.Duration(pos*float64(time.Second))), len(clip.Samples))
	start := max(0, end-sampler.WindowSize())
	return sampler.Analyze(clip.Samples[start:end])
}

// TogglePlayPause flips between playing and paused.
func (p *Player) TogglePlayPause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil {
		return
	}
	if p.playing {
		p.offset = p.positionLocked()
		p.playing = false
		return
	}
	if p.offset >= p.durationLocked() {
		p.offset = 0
	}
	p.started = p.now()
	p.playing = true
}

// Seek moves the playback position.
func (p *Player) Seek(seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clip == nil {
		return domain.ErrQueueEmpty
	}
	if seconds < 0 || seconds > p.durationLocked() {
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

// SetQueue replaces the queue and decodes the track at index.
func (p *Player) SetQueue(tracks []domain.Track, index int) error {
	if len(tracks) > 0 && (index < 0 || index >= len(tracks)) {
		return &domain.ValidationError{Field: "index", Value: index, Message: "outside the queue", Err: domain.ErrInvalidIndex}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(tracks) == 0 {
		p.queue, p.index, p.clip, p.sampler = nil, -1, nil, nil
		p.playing, p.offset = false, 0
		return nil
	}

	if err := p.loadLocked(tracks[index]); err != nil {
		return err
	}
	p.queue = append([]domain.Track(nil), tracks...)
	p.index = index
	p.playing, p.offset = false, 0
	return nil
}

// PlayNext advances to the next track and keeps the play state.
func (p *Player) PlayNext() error {
	return p.step(1)
}

// PlayPrevious goes back one track and keeps the play state.
func (p *Player) PlayPrevious() error {
	return p.step(-1)
}

func (p *Player) step(delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return domain.ErrQueueEmpty
	}
	next := p.index + delta
	if next >= len(p.queue) {
		return domain.ErrEndOfQueue
	}
	if next < 0 {
		return domain.ErrStartOfQueue
	}

	if err := p.loadLocked(p.queue[next]); err != nil {
		return err
	}
	p.index = next
	p.offset = 0
	p.started = p.now()
	return nil
}

func (p *Player) loadLocked(track domain.Track) error {
	clip, err := Decode(track.FilePath)
	if err != nil {
		p.logger.Warn("failed to load track", slog.String("file_path", track.FilePath), slog.Any("error", err))
		return err
	}

	p.clip = clip
	p.sampler = analysis.NewSampler(float64(clip.Format.SampleRate), analysis.DefaultWindowSize, p.bands)

	p.logger.Debug("track decoded",
		slog.String("file_path", track.FilePath),
		slog.Int("sample_rate", int(clip.Format.SampleRate)),
		slog.Duration("duration", clip.Duration()))
	return nil
}

// Verify that Player implements the PlaybackContext interface
var (
	_ ports.PlaybackContext = (*Player)(nil)
	_ ports.FrameSource     = (*Player)(nil)
)
