// Package domain contains core models and logic with no external dependencies.
// This package defines the tracks, lyrics and audio frames that the
// visualizers and the lyric synchronizer operate on.
package domain

import "strings"

// Track represents a playable track as known to the player.
type Track struct {
	// ID is the backend track identifier (or a generated UUID for local files)
	ID string

	// Title is the song title
	Title string

	// Artist is the performing artist name
	Artist string

	// AudioURL is the remote audio source. Empty for local-only tracks.
	AudioURL string

	// Local indicates the audio comes from the local filesystem
	Local bool

	// FilePath is the local file path when Local is true
	FilePath string

	// Lyrics holds lyrics already delivered with the track object, if any
	Lyrics *LyricsTrack
}

// Transcribable reports whether the backend can transcribe this track.
// Only tracks with a non-local audio source qualify.
func (t Track) Transcribable() bool {
	if t.Local {
		return false
	}
	url := strings.ToLower(strings.TrimSpace(t.AudioURL))
	if url == "" || strings.HasPrefix(url, "file:") || strings.HasPrefix(url, "blob:") {
		return false
	}
	return true
}

// CachedLyrics returns the lyrics carried by the track when they are
// completed and non-empty.
func (t Track) CachedLyrics() (*LyricsTrack, bool) {
	if t.Lyrics == nil {
		return nil, false
	}
	if t.Lyrics.Status != LyricsCompleted || len(t.Lyrics.Segments) == 0 {
		return nil, false
	}
	return t.Lyrics, true
}

// LyricSegment is a timestamped unit of transcribed lyric text.
// Segments are immutable once received from the backend.
type LyricSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

// Contains reports whether the given time falls inside [Start, End).
func (s LyricSegment) Contains(seconds float64) bool {
	return s.Start <= seconds && seconds < s.End
}

// LyricsStatus is the backend-side status of a track's transcription.
type LyricsStatus string

const (
	LyricsPending    LyricsStatus = "pending"
	LyricsProcessing LyricsStatus = "processing"
	LyricsCompleted  LyricsStatus = "completed"
	LyricsFailed     LyricsStatus = "failed"
)

// InProgress reports whether the backend is still working on the lyrics.
func (s LyricsStatus) InProgress() bool {
	return s == LyricsPending || s == LyricsProcessing
}

// LyricsTrack is the set of segments for a track plus their status.
// Segments are ordered by Start and do not overlap.
type LyricsTrack struct {
	TrackID  string         `json:"track_id"`
	Status   LyricsStatus   `json:"status"`
	Segments []LyricSegment `json:"segments"`
}

// HasLyrics reports whether there is anything to display.
func (l *LyricsTrack) HasLyrics() bool {
	return l != nil && len(l.Segments) > 0
}

// SyncState is the synchronizer state for the currently selected track.
type SyncState int

const (
	// StateNoLyrics means nothing to show and no transcription running
	StateNoLyrics SyncState = iota

	// StateLoading means the initial backend fetch is in flight
	StateLoading

	// StateTranscribing means the backend is transcribing and we are polling
	StateTranscribing

	// StateCompleted means segments are available
	StateCompleted

	// StateFailed means transcription failed; a manual retry is possible
	StateFailed
)

// String returns a human-readable representation of the sync state.
func (s SyncState) String() string {
	switch s {
	case StateNoLyrics:
		return "no_lyrics"
	case StateLoading:
		return "loading"
	case StateTranscribing:
		return "transcribing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// LyricsView is a snapshot of the synchronizer for the presentation layer.
type LyricsView struct {
	Track       *Track
	State       SyncState
	Segments    []LyricSegment
	ActiveIndex int // -1 when no line is active
	CanRetry    bool
}

// HasLyrics reports whether the snapshot holds displayable segments.
func (v LyricsView) HasLyrics() bool {
	return len(v.Segments) > 0
}

// AudioLevelFrame is one animation frame of analysed audio.
// Producers allocate a new frame each tick; consumers must not mutate it.
type AudioLevelFrame struct {
	// Levels holds normalized per-band magnitudes in [0, 1]
	Levels []float64

	// Frequency holds raw frequency-bin magnitudes in [0, 255]
	Frequency []byte
}

// Empty reports whether the frame carries no data.
func (f AudioLevelFrame) Empty() bool {
	return len(f.Levels) == 0 && len(f.Frequency) == 0
}
