// Package domain defines events for the event-driven architecture.
// Services publish these; the presenter and CLI subscribe to them.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Lyrics lifecycle events
	EventTrackSelected          EventType = "lyrics.track_selected"
	EventLyricsStateChanged     EventType = "lyrics.state_changed"
	EventTranscriptionRequested EventType = "lyrics.transcription_requested"
	EventLyricsPolled           EventType = "lyrics.polled"
	EventActiveLineChanged      EventType = "lyrics.active_line_changed"

	// Playback events
	EventPlaybackToggled EventType = "playback.toggled"
	EventSeekRequested   EventType = "playback.seek_requested"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// TrackSelectedEvent is published when the synchronizer switches tracks.
type TrackSelectedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackSelectedEvent) Type() EventType {
	return EventTrackSelected
}

// NewTrackSelectedEvent creates a new TrackSelectedEvent.
func NewTrackSelectedEvent(track Track) TrackSelectedEvent {
	return TrackSelectedEvent{baseEvent: newBaseEvent(), Track: track}
}

// LyricsStateChangedEvent is published on every synchronizer state transition.
type LyricsStateChangedEvent struct {
	baseEvent
	TrackID  string
	State    SyncState
	Segments []LyricSegment
	Err      error // set when the transition was caused by a failure
}

// Type returns the event type.
func (e LyricsStateChangedEvent) Type() EventType {
	return EventLyricsStateChanged
}

// NewLyricsStateChangedEvent creates a new LyricsStateChangedEvent.
func NewLyricsStateChangedEvent(trackID string, state SyncState, segments []LyricSegment, err error) LyricsStateChangedEvent {
	return LyricsStateChangedEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
		State:     state,
		Segments:  segments,
		Err:       err,
	}
}

// TranscriptionRequestedEvent is published after a transcribe call succeeds.
type TranscriptionRequestedEvent struct {
	baseEvent
	TrackID string
	Manual  bool // true for user-triggered retries
}

// Type returns the event type.
func (e TranscriptionRequestedEvent) Type() EventType {
	return EventTranscriptionRequested
}

// NewTranscriptionRequestedEvent creates a new TranscriptionRequestedEvent.
func NewTranscriptionRequestedEvent(trackID string, manual bool) TranscriptionRequestedEvent {
	return TranscriptionRequestedEvent{baseEvent: newBaseEvent(), TrackID: trackID, Manual: manual}
}

// LyricsPolledEvent is published after each poll attempt.
type LyricsPolledEvent struct {
	baseEvent
	TrackID string
	Status  LyricsStatus // empty when the poll failed
	Err     error
}

// Type returns the event type.
func (e LyricsPolledEvent) Type() EventType {
	return EventLyricsPolled
}

// NewLyricsPolledEvent creates a new LyricsPolledEvent.
func NewLyricsPolledEvent(trackID string, status LyricsStatus, err error) LyricsPolledEvent {
	return LyricsPolledEvent{baseEvent: newBaseEvent(), TrackID: trackID, Status: status, Err: err}
}

// ActiveLineChangedEvent is published when the highlighted lyric line changes.
type ActiveLineChangedEvent struct {
	baseEvent
	TrackID  string
	Index    int
	Previous int
	Segment  LyricSegment
}

// Type returns the event type.
func (e ActiveLineChangedEvent) Type() EventType {
	return EventActiveLineChanged
}

// NewActiveLineChangedEvent creates a new ActiveLineChangedEvent.
func NewActiveLineChangedEvent(trackID string, index, previous int, segment LyricSegment) ActiveLineChangedEvent {
	return ActiveLineChangedEvent{
		baseEvent: newBaseEvent(),
		TrackID:   trackID,
		Index:     index,
		Previous:  previous,
		Segment:   segment,
	}
}

// PlaybackToggledEvent is published when the playing flag flips.
type PlaybackToggledEvent struct {
	baseEvent
	Playing bool
}

// Type returns the event type.
func (e PlaybackToggledEvent) Type() EventType {
	return EventPlaybackToggled
}

// NewPlaybackToggledEvent creates a new PlaybackToggledEvent.
func NewPlaybackToggledEvent(playing bool) PlaybackToggledEvent {
	return PlaybackToggledEvent{baseEvent: newBaseEvent(), Playing: playing}
}

// SeekRequestedEvent is published when a lyric line click asks for a seek.
type SeekRequestedEvent struct {
	baseEvent
	Position float64 // seconds
}

// Type returns the event type.
func (e SeekRequestedEvent) Type() EventType {
	return EventSeekRequested
}

// NewSeekRequestedEvent creates a new SeekRequestedEvent.
func NewSeekRequestedEvent(position float64) SeekRequestedEvent {
	return SeekRequestedEvent{baseEvent: newBaseEvent(), Position: position}
}
