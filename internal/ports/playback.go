package ports

import (
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// PlaybackContext is the shared audio playback state that flows down into
// visualizers and the lyric synchronizer. It is passed explicitly to every
// consumer rather than reached through a global.
//
// Thread-safety: implementations must be safe for concurrent readers; the
// animation loop and the UI ticker read it from different goroutines.
type PlaybackContext interface {
	// State query methods

	// CurrentTime returns the playback position in seconds.
	CurrentTime() float64

	// Duration returns the total length of the current track in seconds.
	Duration() float64

	// IsPlaying reports whether audio is currently playing.
	IsPlaying() bool

	// Current returns the current track, or nil if the queue is empty.
	Current() *domain.Track

	// Level sampling methods

	// AudioLevels returns per-band normalized magnitudes in [0, 1].
	// The returned slice is owned by the caller's frame and never mutated later.
	// Quiescent (all zero or last value) while not playing.
	AudioLevels() []float64

	// FrequencyData returns raw frequency-bin magnitudes in [0, 255].
	// Same ownership rules as AudioLevels.
	FrequencyData() []byte

	// Control methods

	// TogglePlayPause flips between playing and paused.
	TogglePlayPause()

	// Seek moves the playback position to the given second.
	Seek(seconds float64) error

	// SetQueue replaces the queue and selects the track at index.
	SetQueue(tracks []domain.Track, index int) error

	// PlayNext advances to the next track in the queue.
	PlayNext() error

	// PlayPrevious goes back to the previous track in the queue.
	PlayPrevious() error
}

// FrameSource is an optional extension for playback contexts that can hand
// out levels and frequency data from the same analysis pass.
type FrameSource interface {
	Frame() domain.AudioLevelFrame
}

// ReadFrame returns the current analysis frame from any PlaybackContext.
func ReadFrame(pc PlaybackContext) domain.AudioLevelFrame {
	if fs, ok := pc.(FrameSource); ok {
		return fs.Frame()
	}
	return domain.AudioLevelFrame{
		Levels:    pc.AudioLevels(),
		Frequency: pc.FrequencyData(),
	}
}
