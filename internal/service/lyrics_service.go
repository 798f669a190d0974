// Package service provides business logic for the beatstage player.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// DefaultPollInterval is how often a transcribing track is re-fetched.
const DefaultPollInterval = 5 * time.Second

// SeekFunc moves playback to the given second.
type SeekFunc func(seconds float64) error

// LyricsService keeps the lyric state of the selected track in sync with the
// backend and with the playback position.
//
// Every SelectTrack starts a new generation with its own context. Results
// from the initial fetch, a transcription request or a poll are applied only
// if their generation is still current, so answers for a track the user has
// left are dropped.
//
// Thread-safety: all methods are safe for concurrent use. Events are
// published after the internal lock is released, so handlers may call back
// into the service.
type LyricsService struct {
	// Dependencies (injected)
	logger *slog.Logger
	api    ports.LyricsAPI
	bus    ports.EventBus
	seek   SeekFunc

	// Configuration
	pollInterval time.Duration
	leadOffset   float64

	// State
	track     *domain.Track
	state     domain.SyncState
	segments  []domain.LyricSegment
	active    int
	lastErr   error
	attempted map[string]bool // track ids with an automatic transcription request

	// Concurrency control
	mu         sync.Mutex
	generation uint64
	selCtx     context.Context
	cancel     context.CancelFunc
	root       context.Context
	rootCancel context.CancelFunc
	wg         sync.WaitGroup // poll goroutines
	closed     bool
}

// LyricsOption configures a LyricsService.
type LyricsOption func(*LyricsService)

// WithPollInterval overrides the transcription poll interval.
func WithPollInterval(d time.Duration) LyricsOption {
	return func(s *LyricsService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLeadOffset overrides the lead added to playback time before matching.
func WithLeadOffset(seconds float64) LyricsOption {
	return func(s *LyricsService) {
		s.leadOffset = seconds
	}
}

// WithSeekFunc sets the callback invoked when a lyric line is clicked.
func WithSeekFunc(fn SeekFunc) LyricsOption {
	return func(s *LyricsService) {
		s.seek = fn
	}
}

// NewLyricsService creates a new lyrics service.
func NewLyricsService(
	logger *slog.Logger,
	api ports.LyricsAPI,
	bus ports.EventBus,
	opts ...LyricsOption,
) *LyricsService {
	root, rootCancel := context.WithCancel(context.Background())
	s := &LyricsService{
		logger:       logger.With(slog.String("service", "lyrics")),
		api:          api,
		bus:          bus,
		pollInterval: DefaultPollInterval,
		leadOffset:   domain.DefaultLeadOffset,
		state:        domain.StateNoLyrics,
		active:       -1,
		attempted:    make(map[string]bool),
		root:         root,
		rootCancel:   rootCancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Debug("lyrics service initialized",
		slog.Duration("poll_interval", s.pollInterval),
		slog.Float64("lead_offset", s.leadOffset))

	return s
}

// SelectTrack makes track the current one and resolves its lyrics.
//
// Completed lyrics carried by the track are used as is. Otherwise the
// backend is asked; a track still being transcribed is polled, and a
// transcribable track with no lyrics gets one automatic transcription
// request per track id. The call blocks for the initial fetch (and the
// automatic request, if any); polling continues in the background.
func (s *LyricsService) SelectTrack(ctx context.Context, track domain.Track) error {
	resolve, err := s.BeginSelection(track)
	if err != nil || resolve == nil {
		return err
	}
	return resolve(ctx)
}

// ResolveFunc completes a selection started by BeginSelection.
type ResolveFunc func(ctx context.Context) error

// BeginSelection makes track current without touching the backend and
// returns the fetch that resolves its lyrics, or nil when the track carries
// completed lyrics. Callers that resolve in the background must call
// BeginSelection in selection order; the last call wins even if an earlier
// resolve finishes after it.
func (s *LyricsService) BeginSelection(track domain.Track) (ResolveFunc, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrClosed
	}

	gen, selCtx := s.beginSelectionLocked(track)
	events := []domain.Event{domain.NewTrackSelectedEvent(track)}

	if cached, ok := track.CachedLyrics(); ok {
		s.logger.Debug("using lyrics carried by track", slog.String("track_id", track.ID))
		events = append(events, s.setStateLocked(domain.StateCompleted, cached.Segments, nil))
		s.mu.Unlock()
		s.publish(events...)
		return nil, nil
	}

	events = append(events, s.setStateLocked(domain.StateLoading, nil, nil))
	s.mu.Unlock()
	s.publish(events...)

	return func(ctx context.Context) error {
		fetchCtx, stop := linkContext(ctx, selCtx)
		defer stop()

		lyrics, err := s.api.GetLyrics(fetchCtx, track.ID)
		return s.resolveFetch(fetchCtx, gen, track, lyrics, err)
	}, nil
}

// beginSelectionLocked cancels the previous selection and starts a new generation.
func (s *LyricsService) beginSelectionLocked(track domain.Track) (uint64, context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	s.selCtx, s.cancel = context.WithCancel(s.root)

	s.track = &track
	s.segments = nil
	s.active = -1
	s.lastErr = nil

	s.logger.Debug("track selected",
		slog.String("track_id", track.ID),
		slog.Uint64("generation", s.generation))

	return s.generation, s.selCtx
}

// resolveFetch applies the result of the initial fetch for generation gen.
func (s *LyricsService) resolveFetch(ctx context.Context, gen uint64, track domain.Track, lyrics *domain.LyricsTrack, err error) error {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale lyrics fetch", slog.String("track_id", track.ID))
		return nil
	}

	notFound := errors.Is(err, domain.ErrLyricsNotFound)
	if err != nil && !notFound {
		s.logger.Warn("failed to fetch lyrics", slog.String("track_id", track.ID), slog.Any("error", err))
		event := s.setStateLocked(domain.StateNoLyrics, nil, err)
		s.mu.Unlock()
		s.publish(event)
		return domain.NewServiceError("LyricsService", "SelectTrack", "failed to fetch lyrics", err)
	}

	if !notFound && lyrics != nil {
		switch {
		case lyrics.Status == domain.LyricsCompleted && lyrics.HasLyrics():
			event := s.setStateLocked(domain.StateCompleted, lyrics.Segments, nil)
			s.mu.Unlock()
			s.publish(event)
			return nil

		case lyrics.Status.InProgress():
			event := s.setStateLocked(domain.StateTranscribing, nil, nil)
			s.startPollLocked(gen, track.ID)
			s.mu.Unlock()
			s.publish(event)
			return nil

		case lyrics.Status == domain.LyricsFailed:
			event := s.setStateLocked(domain.StateFailed, nil, domain.ErrTranscriptionFailed)
			s.mu.Unlock()
			s.publish(event)
			return nil
		}
	}

	// No lyrics on the backend
	if !track.Transcribable() || s.attempted[track.ID] {
		event := s.setStateLocked(domain.StateNoLyrics, nil, nil)
		s.mu.Unlock()
		s.publish(event)
		return nil
	}

	s.attempted[track.ID] = true
	event := s.setStateLocked(domain.StateTranscribing, nil, nil)
	s.mu.Unlock()
	s.publish(event)

	s.logger.Info("requesting automatic transcription", slog.String("track_id", track.ID))
	return s.requestTranscription(ctx, gen, track, false)
}

// Retry clears the attempted marker for the current track and asks the
// backend to transcribe it again. Allowed from Failed or NoLyrics only.
func (s *LyricsService) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrClosed
	}
	if s.track == nil {
		s.mu.Unlock()
		return domain.ErrNoTrackSelected
	}

	track := *s.track
	if !track.Transcribable() {
		s.mu.Unlock()
		return &domain.ValidationError{
			Field:   "track",
			Value:   track.ID,
			Message: "track has no remote audio source",
			Err:     domain.ErrNotTranscribable,
		}
	}
	if s.state != domain.StateFailed && s.state != domain.StateNoLyrics {
		state := s.state
		s.mu.Unlock()
		return &domain.ValidationError{
			Field:   "state",
			Value:   state.String(),
			Message: "retry is only possible after a failure or when no lyrics exist",
			Err:     domain.ErrRetryNotAllowed,
		}
	}

	// The manual request replaces the automatic marker
	s.attempted[track.ID] = true
	gen, selCtx := s.generation, s.selCtx
	event := s.setStateLocked(domain.StateTranscribing, nil, nil)
	s.mu.Unlock()
	s.publish(event)

	s.logger.Info("retrying transcription", slog.String("track_id", track.ID))

	reqCtx, stop := linkContext(ctx, selCtx)
	defer stop()
	return s.requestTranscription(reqCtx, gen, track, true)
}

// requestTranscription posts the transcribe request and starts polling on success.
func (s *LyricsService) requestTranscription(ctx context.Context, gen uint64, track domain.Track, manual bool) error {
	err := s.api.RequestTranscription(ctx, track.ID)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale transcription response", slog.String("track_id", track.ID))
		return nil
	}

	if err != nil {
		s.logger.Warn("transcription request failed", slog.String("track_id", track.ID), slog.Any("error", err))
		event := s.setStateLocked(domain.StateFailed, nil, err)
		s.mu.Unlock()
		s.publish(event)
		return domain.NewServiceError("LyricsService", "RequestTranscription", "transcription request failed", err)
	}

	s.startPollLocked(gen, track.ID)
	s.mu.Unlock()

	s.publish(domain.NewTranscriptionRequestedEvent(track.ID, manual))
	return nil
}

// startPollLocked launches the poll goroutine for generation gen.
func (s *LyricsService) startPollLocked(gen uint64, trackID string) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go s.poll(s.selCtx, gen, trackID)
}

// poll re-fetches lyrics every poll interval until they complete or fail,
// the selection changes, or the service closes. Fetch errors are logged
// and retried on the next tick.
func (s *LyricsService) poll(ctx context.Context, gen uint64, trackID string) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		lyrics, err := s.api.GetLyrics(ctx, trackID)
		if ctx.Err() != nil {
			return
		}

		if s.applyPoll(gen, trackID, lyrics, err) {
			return
		}
	}
}

// applyPoll applies one poll answer and reports whether polling is over.
// Answers for a generation that is no longer current are dropped without
// an event. Fetch errors keep polling.
func (s *LyricsService) applyPoll(gen uint64, trackID string, lyrics *domain.LyricsTrack, err error) bool {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding stale poll result", slog.String("track_id", trackID))
		return true
	}

	var status domain.LyricsStatus
	if lyrics != nil {
		status = lyrics.Status
	}
	polled := domain.NewLyricsPolledEvent(trackID, status, err)

	if err != nil {
		s.mu.Unlock()
		s.logger.Debug("lyrics poll failed, retrying next tick",
			slog.String("track_id", trackID), slog.Any("error", err))
		s.publish(polled)
		return false
	}

	var event domain.Event
	switch {
	case lyrics == nil || lyrics.Status.InProgress():
		s.mu.Unlock()
		s.publish(polled)
		return false

	case lyrics.Status == domain.LyricsCompleted && lyrics.HasLyrics():
		s.logger.Info("transcription completed",
			slog.String("track_id", trackID), slog.Int("segments", len(lyrics.Segments)))
		event = s.setStateLocked(domain.StateCompleted, lyrics.Segments, nil)

	case lyrics.Status == domain.LyricsCompleted:
		event = s.setStateLocked(domain.StateNoLyrics, nil, nil)

	case lyrics.Status == domain.LyricsFailed:
		s.logger.Warn("transcription failed", slog.String("track_id", trackID))
		event = s.setStateLocked(domain.StateFailed, nil, domain.ErrTranscriptionFailed)

	default:
		s.logger.Warn("unknown lyrics status", slog.String("status", string(lyrics.Status)))
		s.mu.Unlock()
		s.publish(polled)
		return false
	}
	s.mu.Unlock()

	s.publish(polled, event)
	return true
}

// UpdateTime recomputes the active line for the given playback position.
// ActiveLineChangedEvent is published only when the index changes.
func (s *LyricsService) UpdateTime(seconds float64) {
	s.mu.Lock()
	if s.state != domain.StateCompleted || len(s.segments) == 0 {
		s.mu.Unlock()
		return
	}

	index := domain.ActiveSegmentIndex(s.segments, seconds+s.leadOffset)
	if index == s.active {
		s.mu.Unlock()
		return
	}

	previous := s.active
	s.active = index
	event := domain.NewActiveLineChangedEvent(s.track.ID, index, previous, s.segments[index])
	s.mu.Unlock()

	s.publish(event)
}

// Seek invokes the seek callback with the start time of line index.
func (s *LyricsService) Seek(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.segments) {
		count := len(s.segments)
		s.mu.Unlock()
		return &domain.ValidationError{
			Field:   "index",
			Value:   index,
			Message: fmt.Sprintf("must be within the %d lyric lines", count),
			Err:     domain.ErrInvalidIndex,
		}
	}
	start := s.segments[index].Start
	seek := s.seek
	s.mu.Unlock()

	s.publish(domain.NewSeekRequestedEvent(start))

	if seek == nil {
		return nil
	}
	return seek(start)
}

// State returns a snapshot for the presentation layer.
func (s *LyricsService) State() domain.LyricsView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := domain.LyricsView{
		State:       s.state,
		Segments:    s.segments,
		ActiveIndex: s.active,
	}
	if s.track != nil {
		track := *s.track
		view.Track = &track
		view.CanRetry = track.Transcribable() &&
			(s.state == domain.StateFailed || s.state == domain.StateNoLyrics)
	}
	return view
}

// LastError returns the error behind the latest failure transition, if any.
func (s *LyricsService) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops any polling and waits for background work to finish.
func (s *LyricsService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.rootCancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Debug("lyrics service closed")
}

// setStateLocked records a transition and returns the event describing it.
func (s *LyricsService) setStateLocked(state domain.SyncState, segments []domain.LyricSegment, err error) domain.Event {
	if s.state != state {
		s.logger.Debug("lyrics state changed",
			slog.String("from", s.state.String()),
			slog.String("to", state.String()))
	}
	s.state = state
	s.segments = segments
	s.active = -1
	s.lastErr = err

	return domain.NewLyricsStateChangedEvent(s.track.ID, state, segments, err)
}

func (s *LyricsService) currentLocked(gen uint64) bool {
	return !s.closed && gen == s.generation
}

func (s *LyricsService) publish(events ...domain.Event) {
	if s.bus == nil {
		return
	}
	for _, e := range events {
		s.bus.Publish(e)
	}
}

// linkContext returns a context cancelled when either parent or sel is done.
func linkContext(parent, sel context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	unlink := context.AfterFunc(sel, cancel)
	return ctx, func() {
		unlink()
		cancel()
	}
}
