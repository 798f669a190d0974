// Package mock provides an in-memory implementation of the LyricsAPI interface.
// It is used to test services without a running backend, and by the CLI's
// offline mode.
package mock

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// Response is one scripted GetLyrics answer.
type Response struct {
	Lyrics *domain.LyricsTrack
	Err    error
}

// API is a mock implementation of the LyricsAPI interface.
// Answers are scripted per track id; the last scripted answer repeats.
// Tracks with no script answer domain.ErrLyricsNotFound.
//
// Thread-safety: This implementation is thread-safe.
type API struct {
	// Dependencies
	logger *slog.Logger

	// Scripted behaviour
	responses   map[string][]Response
	transcripts map[string]transcript
	gates       map[string]chan struct{}

	// Behavior configuration (for testing error scenarios)
	failGet        error
	failTranscribe error

	// Call counters
	getCalls        map[string]int
	transcribeCalls map[string]int

	mu sync.Mutex
}

// transcript is what a transcription request turns into.
type transcript struct {
	segments   []domain.LyricSegment
	afterPolls int
	failed     bool
}

// NewAPI creates a new mock backend.
func NewAPI() *API {
	return &API{
		logger:          slog.New(slog.DiscardHandler),
		responses:       make(map[string][]Response),
		transcripts:     make(map[string]transcript),
		gates:           make(map[string]chan struct{}),
		getCalls:        make(map[string]int),
		transcribeCalls: make(map[string]int),
	}
}

// SetLogger sets the logger for this API.
func (m *API) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// SetLyrics makes every GetLyrics for trackID return lyrics.
func (m *API) SetLyrics(trackID string, lyrics *domain.LyricsTrack) {
	m.Script(trackID, Response{Lyrics: lyrics})
}

// Script queues answers for trackID. Each GetLyrics consumes one; the last
// one keeps being returned.
func (m *API) Script(trackID string, responses ...Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[trackID] = append([]Response(nil), responses...)
}

// SetTranscript configures what RequestTranscription does for trackID: the
// track reports "processing" for afterPolls fetches and then completes with
// segments (or fails when segments is nil and failed is true).
func (m *API) SetTranscript(trackID string, segments []domain.LyricSegment, afterPolls int, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[trackID] = transcript{segments: segments, afterPolls: afterPolls, failed: failed}
}

// Gate blocks GetLyrics for trackID until the returned release func is
// called. The block ignores the request context, so the answer arrives late.
func (m *API) Gate(trackID string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan struct{})
	m.gates[trackID] = ch

	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// SetFailGetLyrics makes every GetLyrics fail with err (nil to clear).
func (m *API) SetFailGetLyrics(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = err
}

// SetFailTranscribe makes every RequestTranscription fail with err (nil to clear).
func (m *API) SetFailTranscribe(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failTranscribe = err
}

// GetLyricsCalls returns how many times GetLyrics was called for trackID.
func (m *API) GetLyricsCalls(trackID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls[trackID]
}

// TranscribeCalls returns how many times RequestTranscription was called for trackID.
func (m *API) TranscribeCalls(trackID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transcribeCalls[trackID]
}

// GetLyrics returns the next scripted answer for trackID.
func (m *API) GetLyrics(ctx context.Context, trackID string) (*domain.LyricsTrack, error) {
	m.mu.Lock()
	m.getCalls[trackID]++
	gate := m.gates[trackID]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failGet != nil {
		return nil, m.failGet
	}

	queue := m.responses[trackID]
	if len(queue) == 0 {
		return nil, domain.ErrLyricsNotFound
	}

	next := queue[0]
	if len(queue) > 1 {
		m.responses[trackID] = queue[1:]
	}
	m.logger.Debug("mock lyrics answer", slog.String("track_id", trackID), slog.Any("error", next.Err))

	if next.Lyrics == nil {
		return nil, next.Err
	}
	lyrics := *next.Lyrics
	return &lyrics, next.Err
}

// RequestTranscription records the call and scripts the transcription
// configured with SetTranscript, if any.
func (m *API) RequestTranscription(ctx context.Context, trackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.transcribeCalls[trackID]++
	if m.failTranscribe != nil {
		return m.failTranscribe
	}

	tr, ok := m.transcripts[trackID]
	if !ok {
		m.responses[trackID] = []Response{{Lyrics: &domain.LyricsTrack{TrackID: trackID, Status: domain.LyricsPending}}}
		return nil
	}

	script := make([]Response, 0, tr.afterPolls+1)
	for range tr.afterPolls {
		script = append(script, Response{Lyrics: &domain.LyricsTrack{TrackID: trackID, Status: domain.LyricsProcessing}})
	}
	final := &domain.LyricsTrack{TrackID: trackID, Status: domain.LyricsCompleted, Segments: tr.segments}
	if tr.failed {
		final = &domain.LyricsTrack{TrackID: trackID, Status: domain.LyricsFailed}
	}
	m.responses[trackID] = append(script, Response{Lyrics: final})

	m.logger.Debug("mock transcription scheduled",
		slog.String("track_id", trackID), slog.Int("after_polls", tr.afterPolls))
	return nil
}

// Verify that API implements the LyricsAPI interface
var _ ports.LyricsAPI = (*API)(nil)
