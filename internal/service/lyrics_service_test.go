package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/backend/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
	"github.com/tejashwikalptaru/beatstage/internal/testutil"
)

const testPollInterval = 5 * time.Millisecond

// eventRecorder collects every event published on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) handle(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(eventType domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (r *eventRecorder) states() []domain.SyncState {
	var out []domain.SyncState
	for _, e := range r.ofType(domain.EventLyricsStateChanged) {
		out = append(out, e.(domain.LyricsStateChangedEvent).State)
	}
	return out
}

// Helper to create a test lyrics service
func newTestLyricsService(t *testing.T, opts ...LyricsOption) (*LyricsService, *mock.API, *eventRecorder) {
	t.Helper()

	api := mock.NewAPI()
	bus := eventbus.NewSyncEventBus(logger.NewTestLogger())
	rec := &eventRecorder{}
	bus.SubscribeAll(rec.handle)

	opts = append([]LyricsOption{WithPollInterval(testPollInterval)}, opts...)
	service := NewLyricsService(logger.NewTestLogger(), api, bus, opts...)
	t.Cleanup(func() {
		service.Close()
		_ = bus.Close()
	})

	return service, api, rec
}

// Helper to create a remote test track
func remoteTrack(id string) domain.Track {
	return domain.Track{
		ID:       id,
		Title:    "Song " + id,
		Artist:   "Test Artist",
		AudioURL: "https://cdn.example.com/audio/" + id + ".mp3",
	}
}

func testSegments() []domain.LyricSegment {
	return []domain.LyricSegment{
		{Text: "first", Start: 0, End: 5},
		{Text: "second", Start: 5, End: 10},
		{Text: "third", Start: 10, End: 15},
	}
}

func completed(trackID string, segs []domain.LyricSegment) *domain.LyricsTrack {
	return &domain.LyricsTrack{TrackID: trackID, Status: domain.LyricsCompleted, Segments: segs}
}

func waitForState(t *testing.T, s *LyricsService, want domain.SyncState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State().State == want
	}, 2*time.Second, time.Millisecond, "state never became %s (is %s)", want, s.State().State)
}

func TestLyricsService_InitialState(t *testing.T) {
	service, _, _ := newTestLyricsService(t)

	view := service.State()
	assert.Equal(t, domain.StateNoLyrics, view.State)
	assert.Nil(t, view.Track)
	assert.Equal(t, -1, view.ActiveIndex)
	assert.False(t, view.CanRetry)
}

func TestLyricsService_CachedLyrics(t *testing.T) {
	service, api, rec := newTestLyricsService(t)

	track := remoteTrack("t1")
	track.Lyrics = completed("t1", testSegments())

	require.NoError(t, service.SelectTrack(context.Background(), track))

	view := service.State()
	assert.Equal(t, domain.StateCompleted, view.State)
	assert.Len(t, view.Segments, 3)
	assert.Equal(t, 0, api.GetLyricsCalls("t1"), "cached lyrics skip the backend")
	assert.Len(t, rec.ofType(domain.EventTrackSelected), 1)
}

func TestLyricsService_CachedButEmptyGoesToBackend(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", testSegments()))

	track := remoteTrack("t1")
	track.Lyrics = completed("t1", nil)

	require.NoError(t, service.SelectTrack(context.Background(), track))
	assert.Equal(t, 1, api.GetLyricsCalls("t1"))
	assert.Equal(t, domain.StateCompleted, service.State().State)
}

func TestLyricsService_FetchCompleted(t *testing.T) {
	service, api, rec := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", testSegments()))

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	assert.Equal(t, domain.StateCompleted, service.State().State)
	assert.Equal(t, []domain.SyncState{domain.StateLoading, domain.StateCompleted}, rec.states())
	assert.Equal(t, 0, api.TranscribeCalls("t1"))
}

func TestLyricsService_PollsUntilCompleted(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, api, rec := newTestLyricsService(t)
	processing := &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsProcessing}
	api.Script("t1",
		mock.Response{Lyrics: processing},
		mock.Response{Lyrics: processing},
		mock.Response{Lyrics: completed("t1", testSegments())},
	)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, domain.StateTranscribing, service.State().State)

	waitForState(t, service, domain.StateCompleted)
	calls := api.GetLyricsCalls("t1")
	assert.Equal(t, 3, calls)

	// No polls once completed
	time.Sleep(10 * testPollInterval)
	assert.Equal(t, calls, api.GetLyricsCalls("t1"))
	assert.Len(t, rec.ofType(domain.EventLyricsPolled), 2)

	service.Close()
}

func TestLyricsService_PendingIsPolledLikeProcessing(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.Script("t1",
		mock.Response{Lyrics: &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsPending}},
		mock.Response{Lyrics: completed("t1", testSegments())},
	)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, domain.StateTranscribing, service.State().State)
	waitForState(t, service, domain.StateCompleted)
}

func TestLyricsService_PollErrorsAreRetried(t *testing.T) {
	service, api, rec := newTestLyricsService(t)
	api.Script("t1",
		mock.Response{Lyrics: &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsProcessing}},
		mock.Response{Err: errors.New("connection refused")},
		mock.Response{Err: errors.New("connection refused")},
		mock.Response{Lyrics: completed("t1", testSegments())},
	)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	waitForState(t, service, domain.StateCompleted)

	var failed int
	for _, e := range rec.ofType(domain.EventLyricsPolled) {
		if e.(domain.LyricsPolledEvent).Err != nil {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
	assert.NotContains(t, rec.states(), domain.StateFailed)
}

func TestLyricsService_PollFailedStatus(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.Script("t1",
		mock.Response{Lyrics: &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsProcessing}},
		mock.Response{Lyrics: &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsFailed}},
	)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	waitForState(t, service, domain.StateFailed)

	view := service.State()
	assert.True(t, view.CanRetry)
	assert.ErrorIs(t, service.LastError(), domain.ErrTranscriptionFailed)

	calls := api.GetLyricsCalls("t1")
	time.Sleep(10 * testPollInterval)
	assert.Equal(t, calls, api.GetLyricsCalls("t1"), "failed stops polling")
}

func TestLyricsService_AutoTranscribeOnce(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, api, rec := newTestLyricsService(t)
	api.SetTranscript("t1", testSegments(), 2, false)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, 1, api.TranscribeCalls("t1"))
	assert.Equal(t, domain.StateTranscribing, service.State().State)

	waitForState(t, service, domain.StateCompleted)

	requested := rec.ofType(domain.EventTranscriptionRequested)
	require.Len(t, requested, 1)
	assert.False(t, requested[0].(domain.TranscriptionRequestedEvent).Manual)

	service.Close()
}

func TestLyricsService_NoDuplicateAutomaticRequests(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.SetFailTranscribe(errors.New("queue full"))

	err := service.SelectTrack(context.Background(), remoteTrack("t1"))
	require.Error(t, err)
	var svcErr *domain.ServiceError
	assert.True(t, errors.As(err, &svcErr))
	assert.Equal(t, domain.StateFailed, service.State().State)

	// Reselecting the same track does not request again
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, 1, api.TranscribeCalls("t1"))
	assert.Equal(t, domain.StateNoLyrics, service.State().State)
	assert.True(t, service.State().CanRetry)

	// Another track still gets its own automatic request
	_ = service.SelectTrack(context.Background(), remoteTrack("t2"))
	assert.Equal(t, 1, api.TranscribeCalls("t2"))
}

func TestLyricsService_LocalTrackIsNotTranscribed(t *testing.T) {
	service, api, _ := newTestLyricsService(t)

	local := domain.Track{ID: "local-1", Title: "Demo", Local: true, FilePath: "/music/demo.mp3"}
	require.NoError(t, service.SelectTrack(context.Background(), local))

	view := service.State()
	assert.Equal(t, domain.StateNoLyrics, view.State)
	assert.False(t, view.CanRetry)
	assert.Equal(t, 0, api.TranscribeCalls("local-1"))

	err := service.Retry(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotTranscribable)
}

func TestLyricsService_RetryAfterFailure(t *testing.T) {
	service, api, rec := newTestLyricsService(t)
	api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsFailed})

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, domain.StateFailed, service.State().State)

	api.SetTranscript("t1", testSegments(), 1, false)
	require.NoError(t, service.Retry(context.Background()))
	assert.Equal(t, domain.StateTranscribing, service.State().State)

	waitForState(t, service, domain.StateCompleted)
	assert.Equal(t, 1, api.TranscribeCalls("t1"))

	requested := rec.ofType(domain.EventTranscriptionRequested)
	require.Len(t, requested, 1)
	assert.True(t, requested[0].(domain.TranscriptionRequestedEvent).Manual)
}

func TestLyricsService_RetryNotAllowed(t *testing.T) {
	service, api, _ := newTestLyricsService(t)

	assert.ErrorIs(t, service.Retry(context.Background()), domain.ErrNoTrackSelected)

	api.SetLyrics("t1", completed("t1", testSegments()))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	err := service.Retry(context.Background())
	assert.ErrorIs(t, err, domain.ErrRetryNotAllowed)
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "state", vErr.Field)
}

func TestLyricsService_FetchErrorSurfaces(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.SetFailGetLyrics(domain.NewAPIError("get_lyrics", 503, "unavailable", nil))

	err := service.SelectTrack(context.Background(), remoteTrack("t1"))
	require.Error(t, err)

	var apiErr *domain.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 503, apiErr.Status)
	assert.Equal(t, domain.StateNoLyrics, service.State().State)
	assert.Equal(t, 0, api.TranscribeCalls("t1"))
}

func TestLyricsService_StaleFetchDiscarded(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("slow", completed("slow", []domain.LyricSegment{{Text: "stale", Start: 0, End: 1}}))
	api.SetLyrics("fast", completed("fast", testSegments()))
	release := api.Gate("slow")

	done := make(chan error, 1)
	go func() {
		done <- service.SelectTrack(context.Background(), remoteTrack("slow"))
	}()
	require.Eventually(t, func() bool { return api.GetLyricsCalls("slow") == 1 }, time.Second, time.Millisecond)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("fast")))
	release()
	require.NoError(t, <-done)

	view := service.State()
	assert.Equal(t, "fast", view.Track.ID)
	assert.Equal(t, domain.StateCompleted, view.State)
	assert.Equal(t, "first", view.Segments[0].Text)

	service.Close()
}

func TestLyricsService_StalePollDiscarded(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("a", &domain.LyricsTrack{TrackID: "a", Status: domain.LyricsProcessing})
	api.SetLyrics("b", completed("b", testSegments()))

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("a")))
	require.Eventually(t, func() bool { return api.GetLyricsCalls("a") >= 2 }, time.Second, time.Millisecond)

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("b")))

	// Track a finishes after the switch; its answer must not leak into b
	api.SetLyrics("a", completed("a", []domain.LyricSegment{{Text: "stale", Start: 0, End: 1}}))
	callsA := api.GetLyricsCalls("a")
	time.Sleep(10 * testPollInterval)

	view := service.State()
	assert.Equal(t, "b", view.Track.ID)
	assert.Equal(t, "first", view.Segments[0].Text)
	assert.LessOrEqual(t, api.GetLyricsCalls("a"), callsA+1, "poll for a stops after the switch")

	service.Close()
}

func TestLyricsService_UpdateTime(t *testing.T) {
	service, api, rec := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", testSegments()))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	tests := []struct {
		name string
		time float64
		want int
	}{
		{"before first boundary", 1.0, 0},
		{"lead offset crosses boundary", 4.9, 1},
		{"same line", 6.0, 1},
		{"past the end", 14.9, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service.UpdateTime(tt.time)
			assert.Equal(t, tt.want, service.State().ActiveIndex)
		})
	}

	changes := rec.ofType(domain.EventActiveLineChanged)
	require.Len(t, changes, 3, "unchanged index publishes nothing")

	last := changes[2].(domain.ActiveLineChangedEvent)
	assert.Equal(t, 2, last.Index)
	assert.Equal(t, 1, last.Previous)
	assert.Equal(t, "third", last.Segment.Text)
}

func TestLyricsService_UpdateTimeGap(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", []domain.LyricSegment{
		{Text: "a", Start: 2, End: 4},
		{Text: "b", Start: 6, End: 8},
	}))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	service.UpdateTime(4.5)
	assert.Equal(t, 0, service.State().ActiveIndex)
}

func TestLyricsService_UpdateTimeWithoutLyrics(t *testing.T) {
	service, _, rec := newTestLyricsService(t)
	service.UpdateTime(10)

	require.NoError(t, service.SelectTrack(context.Background(), domain.Track{ID: "l", Local: true}))
	service.UpdateTime(10)

	assert.Equal(t, -1, service.State().ActiveIndex)
	assert.Empty(t, rec.ofType(domain.EventActiveLineChanged))
}

func TestLyricsService_CustomLeadOffset(t *testing.T) {
	service, api, _ := newTestLyricsService(t, WithLeadOffset(0))
	api.SetLyrics("t1", completed("t1", testSegments()))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	service.UpdateTime(4.9)
	assert.Equal(t, 0, service.State().ActiveIndex)
}

func TestLyricsService_Seek(t *testing.T) {
	var sought []float64
	service, api, rec := newTestLyricsService(t, WithSeekFunc(func(seconds float64) error {
		sought = append(sought, seconds)
		return nil
	}))
	api.SetLyrics("t1", completed("t1", testSegments()))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	require.NoError(t, service.Seek(2))
	assert.Equal(t, []float64{10}, sought)
	assert.Len(t, rec.ofType(domain.EventSeekRequested), 1)

	err := service.Seek(3)
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
	err = service.Seek(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidIndex)
}

func TestLyricsService_SeekError(t *testing.T) {
	seekErr := errors.New("no track loaded")
	service, api, _ := newTestLyricsService(t, WithSeekFunc(func(float64) error { return seekErr }))
	api.SetLyrics("t1", completed("t1", testSegments()))
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))

	assert.ErrorIs(t, service.Seek(0), seekErr)
}

func TestLyricsService_CloseStopsPolling(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsProcessing})

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	require.Eventually(t, func() bool { return api.GetLyricsCalls("t1") >= 2 }, time.Second, time.Millisecond)

	service.Close()
	service.Close()

	calls := api.GetLyricsCalls("t1")
	time.Sleep(5 * testPollInterval)
	assert.Equal(t, calls, api.GetLyricsCalls("t1"))

	assert.ErrorIs(t, service.SelectTrack(context.Background(), remoteTrack("t2")), domain.ErrClosed)
	assert.ErrorIs(t, service.Retry(context.Background()), domain.ErrClosed)
}

func TestLyricsService_HandlersMayCallBack(t *testing.T) {
	api := mock.NewAPI()
	api.SetLyrics("t1", completed("t1", testSegments()))
	bus := eventbus.NewSyncEventBus(nil)
	defer bus.Close()

	service := NewLyricsService(logger.NewTestLogger(), api, bus)
	defer service.Close()

	var seen []domain.SyncState
	bus.Subscribe(domain.EventLyricsStateChanged, func(domain.Event) {
		seen = append(seen, service.State().State)
	})

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	assert.Equal(t, []domain.SyncState{domain.StateLoading, domain.StateCompleted}, seen)
}

func TestLyricsService_BeginSelectionLastCallWins(t *testing.T) {
	service, api, _ := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", testSegments()))
	api.SetLyrics("t2", completed("t2", testSegments()[:1]))

	resolveFirst, err := service.BeginSelection(remoteTrack("t1"))
	require.NoError(t, err)
	resolveSecond, err := service.BeginSelection(remoteTrack("t2"))
	require.NoError(t, err)
	assert.Equal(t, domain.StateLoading, service.State().State)

	// The earlier selection resolves last
	require.NoError(t, resolveSecond(context.Background()))
	require.NoError(t, resolveFirst(context.Background()))

	view := service.State()
	require.NotNil(t, view.Track)
	assert.Equal(t, "t2", view.Track.ID)
	assert.Equal(t, domain.StateCompleted, view.State)
	assert.Len(t, view.Segments, 1)
}

func TestLyricsService_BeginSelectionWithCachedLyrics(t *testing.T) {
	service, api, _ := newTestLyricsService(t)

	track := remoteTrack("t1")
	track.Lyrics = completed("t1", testSegments())

	resolve, err := service.BeginSelection(track)
	require.NoError(t, err)
	assert.Nil(t, resolve)
	assert.Equal(t, domain.StateCompleted, service.State().State)
	assert.Equal(t, 0, api.GetLyricsCalls("t1"))

	service.Close()
	_, err = service.BeginSelection(track)
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestLyricsService_StalePollAnswerPublishesNothing(t *testing.T) {
	service, api, rec := newTestLyricsService(t)
	api.SetLyrics("t1", completed("t1", testSegments()))
	api.SetLyrics("t2", completed("t2", testSegments()))

	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t1")))
	service.mu.Lock()
	staleGen := service.generation
	service.mu.Unlock()
	require.NoError(t, service.SelectTrack(context.Background(), remoteTrack("t2")))

	processing := &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsProcessing}
	assert.True(t, service.applyPoll(staleGen, "t1", processing, nil))
	assert.True(t, service.applyPoll(staleGen, "t1", nil, errors.New("timeout")))

	assert.Empty(t, rec.ofType(domain.EventLyricsPolled))
	assert.Equal(t, "t2", service.State().Track.ID)
	assert.Equal(t, domain.StateCompleted, service.State().State)
}
