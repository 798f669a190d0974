// Package fyne provides the Fyne UI adapter: the presenter and the main window.
package fyne

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
	"github.com/tejashwikalptaru/beatstage/internal/service"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

// DefaultProgressInterval is how often the presenter samples the playback
// position. Active-line tracking gets its time from this tick.
const DefaultProgressInterval = 50 * time.Millisecond

// UIView defines the interface for UI updates.
// Implementations are called from background goroutines and must hop onto
// the UI goroutine themselves.
type UIView interface {
	// Playback state updates
	SetPlayState(playing bool)
	SetTrackInfo(title, artist string)
	SetProgress(position, duration float64)

	// Lyrics updates
	SetLyricsView(view domain.LyricsView)
	SetActiveLine(index int)

	// Visualizer updates
	SetVariant(variant visual.Variant)

	// Notifications
	ShowNotification(title, message string)
}

// Presenter implements the Presenter pattern (MVP architecture).
// It coordinates the playback context, the lyric synchronizer, the bar
// animator and the UI.
//
// Responsibilities:
// - Sample the playback context on a ticker and feed time to the synchronizer
// - Start and stop the animator with the play state
// - Select lyrics whenever the current track changes
// - Translate UI commands to service and playback calls
//
// Thread-safety: All operations are thread-safe.
type Presenter struct {
	// Dependencies
	logger   *slog.Logger
	lyrics   *service.LyricsService
	playback ports.PlaybackContext
	animator *visual.Animator
	reader   ports.TrackReader
	session  ports.SessionRepository

	// Event bus for subscriptions
	EventBus ports.EventBus

	// UI view
	view UIView

	// Presentation state
	currentID     string
	isPlaying     bool
	queue         []domain.Track
	variant       visual.Variant
	subscriptions []domain.SubscriptionID

	progressInterval time.Duration
	progressTicker   *time.Ticker
	stopProgressChan chan struct{}

	// Background selection and retry work
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Concurrency control
	mu           sync.RWMutex
	syncMu       sync.Mutex // serializes refresh
	shutdownOnce sync.Once
}

// PresenterOption configures a Presenter.
type PresenterOption func(*Presenter)

// WithProgressInterval sets the playback sampling interval.
func WithProgressInterval(d time.Duration) PresenterOption {
	return func(p *Presenter) {
		if d > 0 {
			p.progressInterval = d
		}
	}
}

// WithTrackReader enables opening local files.
func WithTrackReader(reader ports.TrackReader) PresenterOption {
	return func(p *Presenter) {
		p.reader = reader
	}
}

// WithSession persists the queue and variant across runs.
func WithSession(session ports.SessionRepository) PresenterOption {
	return func(p *Presenter) {
		p.session = session
	}
}

// WithInitialVariant sets the variant the animator was created with.
func WithInitialVariant(v visual.Variant) PresenterOption {
	return func(p *Presenter) {
		p.variant = v
	}
}

// NewPresenter creates a new presenter and starts sampling playback.
// The animator may be nil when no visualizer is shown.
func NewPresenter(
	logger *slog.Logger,
	lyrics *service.LyricsService,
	playback ports.PlaybackContext,
	animator *visual.Animator,
	eventBus ports.EventBus,
	view UIView,
	opts ...PresenterOption,
) *Presenter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Presenter{
		logger:           logger,
		lyrics:           lyrics,
		playback:         playback,
		animator:         animator,
		EventBus:         eventBus,
		view:             view,
		progressInterval: DefaultProgressInterval,
		stopProgressChan: make(chan struct{}),
		ctx:              ctx,
		cancel:           cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	// Subscribe to events
	p.subscribeToEvents()

	// Sync UI with current state
	p.syncInitialState()

	// Start progress ticker
	p.startProgressUpdates()

	return p
}

// subscribeToEvents subscribes to the synchronizer's events.
func (p *Presenter) subscribeToEvents() {
	p.subscriptions = append(p.subscriptions,
		p.EventBus.Subscribe(domain.EventLyricsStateChanged, p.onLyricsStateChanged),
		p.EventBus.Subscribe(domain.EventActiveLineChanged, p.onActiveLineChanged),
	)
}

// syncInitialState pushes the current lyrics snapshot and variant to the view.
func (p *Presenter) syncInitialState() {
	p.view.SetLyricsView(p.lyrics.State())
	p.view.SetVariant(p.variant)
	p.view.SetPlayState(false)
}

// Event handlers

func (p *Presenter) onLyricsStateChanged(event domain.Event) {
	if _, ok := event.(domain.LyricsStateChangedEvent); !ok {
		return
	}

	// The snapshot carries CanRetry and the active index, which the event does not
	p.view.SetLyricsView(p.lyrics.State())
}

func (p *Presenter) onActiveLineChanged(event domain.Event) {
	e, ok := event.(domain.ActiveLineChangedEvent)
	if !ok {
		return
	}

	p.view.SetActiveLine(e.Index)
}

func (p *Presenter) startProgressUpdates() {
	p.progressTicker = time.NewTicker(p.progressInterval)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-p.progressTicker.C:
				p.refresh()
			case <-p.stopProgressChan:
				return
			}
		}
	}()
}

// refresh samples the playback context once. It reacts to play state and
// track changes and feeds the playback time to the synchronizer.
func (p *Presenter) refresh() {
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	playing := p.playback.IsPlaying()
	current := p.playback.Current()

	p.mu.Lock()
	playChanged := playing != p.isPlaying
	p.isPlaying = playing

	var selected *domain.Track
	if current != nil && current.ID != p.currentID {
		p.currentID = current.ID
		selected = current
	}
	p.mu.Unlock()

	if playChanged {
		if p.animator != nil {
			p.animator.SetPlaying(playing)
		}
		p.view.SetPlayState(playing)
		p.EventBus.Publish(domain.NewPlaybackToggledEvent(playing))
	}

	if selected != nil {
		p.view.SetTrackInfo(selected.Title, selected.Artist)
		p.selectTrack(*selected)
	}

	position := p.playback.CurrentTime()
	p.lyrics.UpdateTime(position)
	p.view.SetProgress(position, p.playback.Duration())
}

// selectTrack makes track current in the synchronizer right away, under
// syncMu, so selections reach it in playback order. Only the backend fetch
// runs in the background.
func (p *Presenter) selectTrack(track domain.Track) {
	resolve, err := p.lyrics.BeginSelection(track)
	if err != nil {
		if !errors.Is(err, domain.ErrClosed) {
			p.logger.Warn("lyrics selection failed", slog.String("track_id", track.ID), slog.Any("error", err))
		}
		return
	}
	if resolve == nil {
		return
	}

	p.goBackground(func(ctx context.Context) {
		err := resolve(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrClosed) {
			return
		}
		p.logger.Warn("lyrics selection failed",
			slog.String("track_id", track.ID),
			slog.Any("error", err))
		p.view.ShowNotification("Lyrics Error", fmt.Sprintf("Failed to load lyrics: %v", err))
	})
}

func (p *Presenter) goBackground(fn func(ctx context.Context)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn(p.ctx)
	}()
}

// UI Command handlers (called by UI)

// OnPlayClicked toggles play and pause.
func (p *Presenter) OnPlayClicked() {
	if p.playback.Current() == nil {
		p.view.ShowNotification("Playback", "Open a track first")
		return
	}
	p.playback.TogglePlayPause()
	p.refresh()
}

// OnNextClicked advances to the next track.
func (p *Presenter) OnNextClicked() {
	if err := p.playback.PlayNext(); err != nil {
		p.navigationFailed("next track", err)
		return
	}
	p.saveSession()
	p.refresh()
}

// OnPreviousClicked goes back one track.
func (p *Presenter) OnPreviousClicked() {
	if err := p.playback.PlayPrevious(); err != nil {
		p.navigationFailed("previous track", err)
		return
	}
	p.saveSession()
	p.refresh()
}

func (p *Presenter) navigationFailed(what string, err error) {
	// Hitting either end of the queue is expected, not an error worth a popup
	if errors.Is(err, domain.ErrEndOfQueue) || errors.Is(err, domain.ErrStartOfQueue) || errors.Is(err, domain.ErrQueueEmpty) {
		p.logger.Debug(what+" unavailable", slog.Any("error", err))
		return
	}
	p.logger.Error(what+" failed", slog.Any("error", err))
	p.view.ShowNotification("Playlist Error", fmt.Sprintf("Failed to play %s: %v", what, err))
}

// OnLineTapped seeks playback to the start of a lyric line.
func (p *Presenter) OnLineTapped(index int) {
	if err := p.lyrics.Seek(index); err != nil {
		p.logger.Error("seek failed", slog.Int("index", index), slog.Any("error", err))
		p.view.ShowNotification("Seek Error", fmt.Sprintf("Failed to seek: %v", err))
		return
	}
	p.refresh()
}

// OnSeekRequested moves playback to position seconds.
func (p *Presenter) OnSeekRequested(position float64) {
	if err := p.playback.Seek(position); err != nil {
		p.logger.Error("seek failed", slog.Float64("position", position), slog.Any("error", err))
		p.view.ShowNotification("Seek Error", fmt.Sprintf("Failed to seek: %v", err))
		return
	}
	p.EventBus.Publish(domain.NewSeekRequestedEvent(position))
	p.refresh()
}

// OnRetryClicked asks the backend to transcribe the current track again.
func (p *Presenter) OnRetryClicked() {
	p.goBackground(func(ctx context.Context) {
		err := p.lyrics.Retry(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrClosed) {
			return
		}
		p.logger.Warn("transcription retry failed", slog.Any("error", err))
		p.view.ShowNotification("Transcription Error", fmt.Sprintf("Retry failed: %v", err))
	})
}

// OnVariantSelected switches the visualizer variant.
func (p *Presenter) OnVariantSelected(name string) {
	variant, err := visual.ParseVariant(name)
	if err != nil {
		p.view.ShowNotification("Visualizer", err.Error())
		return
	}

	p.mu.Lock()
	p.variant = variant
	p.mu.Unlock()

	if p.animator != nil {
		p.animator.SetVariant(variant, p.playback)
	}
	p.view.SetVariant(variant)

	if p.session != nil {
		if err := p.session.SaveVariant(variant.String()); err != nil {
			p.logger.Warn("failed to save variant", slog.Any("error", err))
		}
	}
}

// OnFileOpened adds a local file to the queue and makes it current.
func (p *Presenter) OnFileOpened(filePath string) error {
	if p.reader == nil {
		return domain.NewServiceError("presenter", "OnFileOpened", "no track reader configured", nil)
	}

	track, err := p.reader.ReadTrack(filePath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	queue := append(append([]domain.Track(nil), p.queue...), *track)
	p.mu.Unlock()

	return p.SetQueue(queue, len(queue)-1)
}

// OnFolderOpened appends every WAV file in a folder to the queue and makes
// the first of them current. Files that fail to read are skipped.
func (p *Presenter) OnFolderOpened(folderPath string) error {
	if p.reader == nil {
		return domain.NewServiceError("presenter", "OnFolderOpened", "no track reader configured", nil)
	}

	entries, err := os.ReadDir(folderPath)
	if err != nil {
		return domain.NewServiceError("presenter", "OnFolderOpened", "failed to read folder", err)
	}

	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			paths = append(paths, filepath.Join(folderPath, e.Name()))
		}
	}
	sort.Strings(paths)

	var added []domain.Track
	for _, path := range paths {
		track, err := p.reader.ReadTrack(path)
		if err != nil {
			p.logger.Warn("skipping unreadable file", slog.String("file_path", path), slog.Any("error", err))
			continue
		}
		added = append(added, *track)
	}
	if len(added) == 0 {
		return domain.ErrNoAudioFiles
	}

	p.mu.Lock()
	first := len(p.queue)
	queue := append(append([]domain.Track(nil), p.queue...), added...)
	p.mu.Unlock()

	return p.SetQueue(queue, first)
}

// SetQueue replaces the playback queue and selects the track at index.
func (p *Presenter) SetQueue(tracks []domain.Track, index int) error {
	if err := p.playback.SetQueue(tracks, index); err != nil {
		return err
	}

	p.mu.Lock()
	p.queue = append([]domain.Track(nil), tracks...)
	p.mu.Unlock()

	p.saveSession()
	p.refresh()
	return nil
}

// Variant returns the selected visualizer variant.
func (p *Presenter) Variant() visual.Variant {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.variant
}

// Queue returns a copy of the current queue.
func (p *Presenter) Queue() []domain.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Track(nil), p.queue...)
}

func (p *Presenter) saveSession() {
	if p.session == nil {
		return
	}

	p.mu.RLock()
	queue := p.queue
	current := p.playback.Current()
	p.mu.RUnlock()

	index := -1
	if current != nil {
		for i, t := range queue {
			if t.ID == current.ID {
				index = i
				break
			}
		}
	}
	if err := p.session.SaveQueue(queue, index); err != nil {
		p.logger.Warn("failed to save queue", slog.Any("error", err))
	}
}

// Shutdown stops the ticker and waits for background work.
// It's safe to call multiple times (idempotent).
func (p *Presenter) Shutdown() {
	p.shutdownOnce.Do(func() {
		// Stop the ticker first to prevent new iterations
		if p.progressTicker != nil {
			p.progressTicker.Stop()
		}
		close(p.stopProgressChan)

		p.mu.Lock()
		p.cancel()
		p.mu.Unlock()
		p.wg.Wait()

		for _, id := range p.subscriptions {
			p.EventBus.Unsubscribe(id)
		}

		if p.animator != nil {
			p.animator.SetPlaying(false)
		}
	})
}
