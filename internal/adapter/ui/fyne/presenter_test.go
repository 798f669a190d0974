package fyne

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	backendmock "github.com/tejashwikalptaru/beatstage/internal/adapter/backend/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/metadata"
	playbackmock "github.com/tejashwikalptaru/beatstage/internal/adapter/playback/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/repository/memory"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
	"github.com/tejashwikalptaru/beatstage/internal/service"
	"github.com/tejashwikalptaru/beatstage/internal/testutil"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

// fakeView records every UIView call.
type fakeView struct {
	mu            sync.Mutex
	playing       bool
	title, artist string
	position      float64
	duration      float64
	lyrics        domain.LyricsView
	active        int
	variant       visual.Variant
	notifications []string
}

func (v *fakeView) SetPlayState(playing bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playing = playing
}

func (v *fakeView) SetTrackInfo(title, artist string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.title, v.artist = title, artist
}

func (v *fakeView) SetProgress(position, duration float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position, v.duration = position, duration
}

func (v *fakeView) SetLyricsView(view domain.LyricsView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lyrics = view
	v.active = view.ActiveIndex
}

func (v *fakeView) SetActiveLine(index int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.active = index
}

func (v *fakeView) SetVariant(variant visual.Variant) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.variant = variant
}

func (v *fakeView) ShowNotification(title, message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notifications = append(v.notifications, title+": "+message)
}

func (v *fakeView) lyricsState() domain.SyncState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lyrics.State
}

func (v *fakeView) activeLine() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}

func (v *fakeView) notificationCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.notifications)
}

// countingSink counts animator output.
type countingSink struct {
	mu     sync.Mutex
	frames int
	rests  int
}

func (s *countingSink) Apply([]visual.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
}

func (s *countingSink) Rest(float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rests++
}

func (s *countingSink) restCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rests
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type presenterFixture struct {
	presenter *Presenter
	view      *fakeView
	player    *playbackmock.Player
	api       *backendmock.API
	lyrics    *service.LyricsService
	animator  *visual.Animator
	sink      *countingSink
	clock     *fakeClock
	bus       *eventbus.SyncEventBus
}

// newPresenterFixture wires a presenter whose ticker never fires on its own;
// tests drive it through refresh.
func newPresenterFixture(t *testing.T, opts ...PresenterOption) *presenterFixture {
	t.Helper()

	f := &presenterFixture{
		view:  &fakeView{active: -1},
		api:   backendmock.NewAPI(),
		sink:  &countingSink{},
		clock: &fakeClock{now: time.Unix(1_700_000_000, 0)},
		bus:   eventbus.NewSyncEventBus(logger.NewTestLogger()),
	}
	f.player = playbackmock.NewPlayer(playbackmock.WithClock(f.clock.Now))
	f.lyrics = service.NewLyricsService(logger.NewTestLogger(), f.api, f.bus,
		service.WithPollInterval(5*time.Millisecond),
		service.WithSeekFunc(f.player.Seek))

	animator, err := visual.NewAnimator(5, f.sink)
	require.NoError(t, err)
	f.animator = animator

	opts = append([]PresenterOption{WithProgressInterval(time.Hour)}, opts...)
	f.presenter = NewPresenter(logger.NewTestLogger(), f.lyrics, f.player, f.animator, f.bus, f.view, opts...)

	t.Cleanup(func() {
		f.presenter.Shutdown()
		f.lyrics.Close()
		f.animator.Close()
		_ = f.bus.Close()
	})
	return f
}

func remote(id string) domain.Track {
	return domain.Track{ID: id, Title: "Song " + id, Artist: "Band", AudioURL: "https://cdn.example.com/" + id + ".mp3"}
}

var presenterSegments = []domain.LyricSegment{
	{Text: "one", Start: 0, End: 5},
	{Text: "two", Start: 5, End: 10},
	{Text: "three", Start: 10, End: 15},
}

func TestPresenter_InitialState(t *testing.T) {
	f := newPresenterFixture(t, WithInitialVariant(visual.VariantPulse))

	assert.Equal(t, domain.StateNoLyrics, f.view.lyricsState())
	assert.Equal(t, visual.VariantPulse, f.view.variant)
	assert.False(t, f.view.playing)
}

func TestPresenter_SelectsLyricsForCurrentTrack(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsCompleted, Segments: presenterSegments})

	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))

	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)
	assert.Equal(t, "Song t1", f.view.title)
	assert.Equal(t, "Band", f.view.artist)

	// The same track is not selected twice
	f.presenter.refresh()
	assert.Equal(t, 1, f.api.GetLyricsCalls("t1"))
}

func TestPresenter_ActiveLineFollowsPlayback(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsCompleted, Segments: presenterSegments})
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)

	f.presenter.OnPlayClicked()
	assert.Equal(t, 0, f.view.activeLine())
	assert.True(t, f.view.playing)
	assert.True(t, f.animator.IsPlaying())

	// 4.9s plus the lead offset lands in the second line
	f.clock.Advance(4900 * time.Millisecond)
	f.presenter.refresh()
	assert.Equal(t, 1, f.view.activeLine())

	f.clock.Advance(10 * time.Second)
	f.presenter.refresh()
	assert.Equal(t, 2, f.view.activeLine())
	assert.InDelta(t, 14.9, f.view.position, 1e-9)
	assert.Equal(t, 180.0, f.view.duration)
}

func TestPresenter_PlayStateDrivesAnimator(t *testing.T) {
	f := newPresenterFixture(t)
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))

	var toggles []bool
	f.bus.Subscribe(domain.EventPlaybackToggled, func(e domain.Event) {
		toggles = append(toggles, e.(domain.PlaybackToggledEvent).Playing)
	})

	f.presenter.OnPlayClicked()
	f.presenter.refresh() // no change, no event
	f.presenter.OnPlayClicked()

	assert.Equal(t, []bool{true, false}, toggles)
	assert.False(t, f.animator.IsPlaying())
	assert.Equal(t, 1, f.sink.restCount())
}

func TestPresenter_PlayWithoutTrack(t *testing.T) {
	f := newPresenterFixture(t)

	f.presenter.OnPlayClicked()
	assert.False(t, f.player.IsPlaying())
	assert.Equal(t, 1, f.view.notificationCount())
}

func TestPresenter_LineTappedSeeks(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsCompleted, Segments: presenterSegments})
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)

	f.presenter.OnLineTapped(2)
	assert.Equal(t, 10.0, f.player.CurrentTime())
	assert.Equal(t, 2, f.view.activeLine())

	f.presenter.OnLineTapped(9)
	assert.Equal(t, 1, f.view.notificationCount())
}

func TestPresenter_SeekRequested(t *testing.T) {
	f := newPresenterFixture(t)
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))

	f.presenter.OnSeekRequested(42)
	assert.Equal(t, 42.0, f.player.CurrentTime())

	f.player.SetFailSeek(true)
	f.presenter.OnSeekRequested(50)
	assert.Equal(t, 1, f.view.notificationCount())
}

func TestPresenter_RetryForLocalTrackNotifies(t *testing.T) {
	f := newPresenterFixture(t)
	local := domain.Track{ID: "local-1", Title: "Demo", Local: true, FilePath: "/tmp/demo.wav"}
	require.NoError(t, f.presenter.SetQueue([]domain.Track{local}, 0))
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateNoLyrics
	}, time.Second, time.Millisecond)

	f.presenter.OnRetryClicked()
	require.Eventually(t, func() bool {
		return f.view.notificationCount() == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 0, f.api.TranscribeCalls("local-1"))
}

func TestPresenter_RetryAfterFailure(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.Script("t1", backendmock.Response{Lyrics: &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsFailed}})
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateFailed
	}, time.Second, time.Millisecond)
	assert.True(t, f.view.lyrics.CanRetry)

	f.api.SetTranscript("t1", presenterSegments, 1, false)
	f.presenter.OnRetryClicked()

	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, f.api.TranscribeCalls("t1"))
}

func TestPresenter_Navigation(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.SetLyrics("t2", &domain.LyricsTrack{TrackID: "t2", Status: domain.LyricsCompleted, Segments: presenterSegments})
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1"), remote("t2")}, 0))

	f.presenter.OnNextClicked()
	assert.Equal(t, "t2", f.player.Current().ID)
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)
	assert.Equal(t, "Song t2", f.view.title)

	// Running off either end is silent
	f.presenter.OnNextClicked()
	f.presenter.OnPreviousClicked()
	f.presenter.OnPreviousClicked()
	assert.Equal(t, "t1", f.player.Current().ID)
	assert.Equal(t, 0, f.view.notificationCount())
}

func TestPresenter_RapidNextKeepsLyricsOnPlayingTrack(t *testing.T) {
	for run := range 50 {
		f := newPresenterFixture(t)
		tracks := make([]domain.Track, 4)
		for i := range tracks {
			id := fmt.Sprintf("t%d", i)
			tracks[i] = remote(id)
			f.api.SetLyrics(id, &domain.LyricsTrack{TrackID: id, Status: domain.LyricsCompleted, Segments: presenterSegments})
		}
		require.NoError(t, f.presenter.SetQueue(tracks, 0))

		f.presenter.OnNextClicked()
		f.presenter.OnNextClicked()
		f.presenter.OnNextClicked()

		require.Eventually(t, func() bool {
			return f.lyrics.State().State == domain.StateCompleted
		}, time.Second, time.Millisecond)
		time.Sleep(5 * time.Millisecond)

		view := f.lyrics.State()
		require.NotNil(t, view.Track)
		require.Equal(t, f.player.Current().ID, view.Track.ID, "run %d", run)
		assert.Equal(t, domain.StateCompleted, view.State)
	}
}

func TestPresenter_LateFetchForSkippedTrackIsDropped(t *testing.T) {
	f := newPresenterFixture(t)
	f.api.SetLyrics("t1", &domain.LyricsTrack{TrackID: "t1", Status: domain.LyricsCompleted, Segments: presenterSegments})
	f.api.SetLyrics("t2", &domain.LyricsTrack{
		TrackID:  "t2",
		Status:   domain.LyricsCompleted,
		Segments: []domain.LyricSegment{{Text: "only", Start: 0, End: 3}},
	})
	release := f.api.Gate("t1")
	defer release()

	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1"), remote("t2")}, 0))
	assert.Equal(t, domain.StateLoading, f.lyrics.State().State)

	f.presenter.OnNextClicked()
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)

	// The first track's answer arrives after the skip
	release()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, f.api.GetLyricsCalls("t1"))

	view := f.lyrics.State()
	require.NotNil(t, view.Track)
	assert.Equal(t, "t2", view.Track.ID)
	assert.Len(t, view.Segments, 1)
}

func TestPresenter_FileOpened(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.lrc"), []byte("[00:00.00]hi\n[00:02.00]there\n"), 0o600))

	f := newPresenterFixture(t, WithTrackReader(metadata.NewReader(nil)))

	require.NoError(t, f.presenter.OnFileOpened(path))
	require.Len(t, f.presenter.Queue(), 1)
	require.Eventually(t, func() bool {
		return f.view.lyricsState() == domain.StateCompleted
	}, time.Second, time.Millisecond)
	assert.Equal(t, "take", f.view.title)
	assert.Equal(t, 0, f.api.GetLyricsCalls(f.player.Current().ID), "embedded lyrics skip the backend")

	assert.ErrorIs(t, f.presenter.OnFileOpened(filepath.Join(dir, "missing.wav")), domain.ErrFileNotFound)
}

func TestPresenter_FileOpenedWithoutReader(t *testing.T) {
	f := newPresenterFixture(t)

	var svcErr *domain.ServiceError
	assert.ErrorAs(t, f.presenter.OnFileOpened("/tmp/x.wav"), &svcErr)
}

func TestPresenter_FolderOpened(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.WAV", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("RIFF....WAVE"), 0o600))
	}

	f := newPresenterFixture(t, WithTrackReader(metadata.NewReader(nil)))
	require.NoError(t, f.presenter.OnFolderOpened(dir))

	queue := f.presenter.Queue()
	require.Len(t, queue, 2)
	assert.Equal(t, "a", queue[0].Title)
	assert.Equal(t, "b", queue[1].Title)
	assert.Equal(t, queue[0].ID, f.player.Current().ID)

	assert.ErrorIs(t, f.presenter.OnFolderOpened(t.TempDir()), domain.ErrNoAudioFiles)
}

func TestPresenter_VariantSelected(t *testing.T) {
	app := test.NewTempApp(t)
	session := memory.NewSessionRepository(app.Preferences())
	f := newPresenterFixture(t, WithSession(session))

	f.presenter.OnVariantSelected("spectrum")
	assert.Equal(t, visual.VariantSpectrum, f.view.variant)

	saved, err := session.LoadVariant()
	require.NoError(t, err)
	assert.Equal(t, "spectrum", saved)

	f.presenter.OnVariantSelected("lasers")
	assert.Equal(t, visual.VariantSpectrum, f.view.variant)
	assert.Equal(t, 1, f.view.notificationCount())
}

func TestPresenter_VariantSwitchWhilePlaying(t *testing.T) {
	f := newPresenterFixture(t)
	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1")}, 0))
	f.presenter.OnPlayClicked()
	require.True(t, f.animator.IsPlaying())

	f.presenter.OnVariantSelected("waveform")
	assert.True(t, f.animator.IsPlaying())
	assert.Equal(t, 0, f.sink.restCount(), "the running loop switches without resting")
}

func TestPresenter_SessionSavesQueue(t *testing.T) {
	app := test.NewTempApp(t)
	session := memory.NewSessionRepository(app.Preferences())
	f := newPresenterFixture(t, WithSession(session))

	require.NoError(t, f.presenter.SetQueue([]domain.Track{remote("t1"), remote("t2")}, 0))
	f.presenter.OnNextClicked()

	tracks, index, err := session.LoadQueue()
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, 1, index)
}

func TestPresenter_ShutdownIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	clock := &fakeClock{now: time.Unix(0, 0)}
	bus := eventbus.NewSyncEventBus(nil)
	api := backendmock.NewAPI()
	player := playbackmock.NewPlayer(playbackmock.WithClock(clock.Now))
	lyrics := service.NewLyricsService(logger.NewTestLogger(), api, bus)
	sink := &countingSink{}
	animator, err := visual.NewAnimator(3, sink)
	require.NoError(t, err)

	p := NewPresenter(nil, lyrics, player, animator, bus, &fakeView{}, WithProgressInterval(time.Millisecond))
	require.NoError(t, p.SetQueue([]domain.Track{remote("t1")}, 0))
	p.OnPlayClicked()

	p.Shutdown()
	p.Shutdown()

	assert.False(t, animator.IsPlaying())
	assert.Equal(t, 0, bus.SubscriberCount())

	lyrics.Close()
	animator.Close()
	_ = bus.Close()
}
