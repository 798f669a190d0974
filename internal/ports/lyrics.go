// Package ports define interfaces for dependency inversion.
// These interfaces keep the services independent of the HTTP backend,
// the playback implementation and the UI toolkit.
package ports

import (
	"context"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// LyricsAPI is the subset of the remote backend the lyric synchronizer uses.
//
// Implementations must be thread-safe: the poller calls GetLyrics from a
// background goroutine while selection calls happen on the caller's.
type LyricsAPI interface {
	// GetLyrics fetches the lyrics and transcription status for a track.
	// Returns domain.ErrLyricsNotFound (possibly wrapped) when none exist.
	GetLyrics(ctx context.Context, trackID string) (*domain.LyricsTrack, error)

	// RequestTranscription asks the backend to start transcribing a track.
	RequestTranscription(ctx context.Context, trackID string) error
}

// TrackReader builds tracks from local audio files.
type TrackReader interface {
	// ReadTrack extracts metadata (title, artist, embedded lyrics) from a file.
	ReadTrack(path string) (*domain.Track, error)
}
