// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/backend"
	backendmock "github.com/tejashwikalptaru/beatstage/internal/adapter/backend/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/metadata"
	playbackmock "github.com/tejashwikalptaru/beatstage/internal/adapter/playback/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/playback/wavfile"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/repository/memory"
	fyneui "github.com/tejashwikalptaru/beatstage/internal/adapter/ui/fyne"
	"github.com/tejashwikalptaru/beatstage/internal/config"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
	"github.com/tejashwikalptaru/beatstage/internal/service"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for main.go
type Application struct {
	// Core dependencies
	logger  *slog.Logger
	fyneApp fyne.App

	// Infrastructure
	eventBus *eventbus.SyncEventBus
	api      ports.LyricsAPI
	playback ports.PlaybackContext
	reader   ports.TrackReader
	session  ports.SessionRepository

	// Services
	lyricsService *service.LyricsService
	animator      *visual.Animator

	// UI
	presenter  *fyneui.Presenter
	mainWindow *fyneui.MainWindow

	shutdownOnce sync.Once
}

// Config holds application configuration.
type Config struct {
	// AppID is the unique application identifier
	AppID string

	// AppName is the display name
	AppName string

	// Settings is the environment configuration
	Settings config.Config

	// Offline replaces the REST backend with the in-memory one and a demo queue
	Offline bool

	// UseMockPlayback simulates playback instead of decoding WAV files
	UseMockPlayback bool

	// Tracks is the initial queue. When empty the saved session is restored.
	Tracks []domain.Track

	// Files are local audio files appended to Tracks
	Files []string

	// TestFyneApp allows injecting a test Fyne app for testing (nil for production)
	TestFyneApp fyne.App
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	return Config{
		AppID:    "com.beatstage.app",
		AppName:  "beatstage",
		Settings: config.Default(),
	}
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(cfg Config) (*Application, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{}

	// Step 1: Create Fyne application
	if cfg.TestFyneApp != nil {
		app.fyneApp = cfg.TestFyneApp
	} else {
		app.fyneApp = fyneapp.NewWithID(cfg.AppID)
	}

	// Step 2: Create logger
	app.logger = logger.NewLogger(cfg.Settings.Logger())
	version := GetVersionInfo()
	app.logger.Info("initializing application",
		slog.String("app_id", cfg.AppID),
		slog.String("version", version.FullString()),
		slog.Bool("offline", cfg.Offline))

	// Step 3: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(app.logger.With(slog.String("component", "eventbus")))

	// Step 4: Create the lyrics backend
	if cfg.Offline {
		api := backendmock.NewDemoAPI()
		api.SetLogger(app.logger.With(slog.String("backend", "mock")))
		app.api = api
		if len(cfg.Tracks) == 0 && len(cfg.Files) == 0 {
			cfg.Tracks = backendmock.DemoTracks()
		}
	} else {
		client, err := backend.NewClient(cfg.Settings.APIURL,
			backend.WithToken(cfg.Settings.APIToken),
			backend.WithTimeout(cfg.Settings.HTTPTimeout),
			backend.WithUserAgent(version.UserAgent()),
			backend.WithLogger(app.logger.With(slog.String("backend", "rest"))))
		if err != nil {
			return nil, fmt.Errorf("failed to create backend client: %w", err)
		}
		app.api = client
	}

	// Step 5: Create playback
	if cfg.UseMockPlayback || cfg.Offline {
		app.playback = playbackmock.NewPlayer(
			playbackmock.WithLogger(app.logger.With(slog.String("playback", "mock"))))
	} else {
		app.playback = wavfile.NewPlayer(
			wavfile.WithLogger(app.logger.With(slog.String("playback", "wavfile"))))
	}

	// Step 6: Create repositories
	app.reader = metadata.NewReader(app.logger.With(slog.String("component", "metadata")))
	app.session = memory.NewSessionRepository(app.fyneApp.Preferences())

	// Step 7: Create services
	app.lyricsService = service.NewLyricsService(app.logger, app.api, app.eventBus,
		service.WithPollInterval(cfg.Settings.PollInterval),
		service.WithLeadOffset(cfg.Settings.LeadOffset),
		service.WithSeekFunc(app.playback.Seek))

	// Step 8: Create UI and the animator that paints into it
	app.mainWindow = fyneui.NewMainWindow(app.fyneApp, cfg.Settings.BarCount, version.Short(),
		app.logger.With(slog.String("component", "window")))

	variant := app.initialVariant(cfg.Settings.Visualizer)
	animator, err := visual.NewAnimator(cfg.Settings.BarCount, app.mainWindow.Bars(),
		visual.WithFrameInterval(cfg.Settings.FrameInterval()),
		visual.WithVariant(variant, app.playback),
		visual.WithLogger(app.logger.With(slog.String("component", "animator"))))
	if err != nil {
		_ = app.closeServices()
		return nil, fmt.Errorf("failed to create animator: %w", err)
	}
	app.animator = animator

	// Step 9: Create Presenter and wire with UI
	app.presenter = fyneui.NewPresenter(
		app.logger.With(slog.String("component", "presenter")),
		app.lyricsService,
		app.playback,
		app.animator,
		app.eventBus,
		app.mainWindow,
		fyneui.WithTrackReader(app.reader),
		fyneui.WithSession(app.session),
		fyneui.WithInitialVariant(variant),
	)
	app.mainWindow.SetPresenter(app.presenter)

	// Step 10: Load the initial queue
	tracks := append([]domain.Track(nil), cfg.Tracks...)
	for _, path := range cfg.Files {
		track, err := app.reader.ReadTrack(path)
		if err != nil {
			app.logger.Warn("skipping file", slog.String("file_path", path), slog.Any("error", err))
			continue
		}
		tracks = append(tracks, *track)
	}
	if err := app.loadQueue(tracks); err != nil {
		// Non-fatal - just log and continue
		app.logger.Warn("failed to load queue", slog.Any("error", err))
	}

	return app, nil
}

// initialVariant prefers the variant saved by the last session.
func (a *Application) initialVariant(configured string) visual.Variant {
	name := configured
	if saved, err := a.session.LoadVariant(); err == nil && saved != "" {
		name = saved
	}

	variant, err := visual.ParseVariant(name)
	if err != nil {
		a.logger.Warn("unknown visualizer, using bars", slog.String("name", name))
	}
	return variant
}

// loadQueue sets the given tracks, or restores the previous session's queue.
func (a *Application) loadQueue(tracks []domain.Track) error {
	if len(tracks) > 0 {
		return a.presenter.SetQueue(tracks, 0)
	}

	saved, index, err := a.session.LoadQueue()
	if err != nil {
		return fmt.Errorf("failed to load saved queue: %w", err)
	}
	if len(saved) == 0 {
		return nil
	}

	// Local files are read again so their embedded lyrics come back
	restored := make([]domain.Track, 0, len(saved))
	for i, t := range saved {
		if t.Local && t.FilePath != "" {
			fresh, err := a.reader.ReadTrack(t.FilePath)
			if err != nil {
				a.logger.Warn("dropping missing file from queue",
					slog.String("file_path", t.FilePath), slog.Any("error", err))
				if i < index {
					index--
				}
				continue
			}
			t = *fresh
		}
		restored = append(restored, t)
	}
	if len(restored) == 0 {
		return nil
	}

	index = max(0, min(index, len(restored)-1))
	return a.presenter.SetQueue(restored, index)
}

// Run starts the application and blocks until the window is closed.
func (a *Application) Run() error {
	a.logger.Info("beatstage started")

	a.mainWindow.ShowAndRun()
	return nil
}

// Shutdown gracefully shuts down the application.
// It's safe to call multiple times (idempotent).
func (a *Application) Shutdown() error {
	var errs []error
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		// Presenter first so nothing drives the services while they stop
		if a.presenter != nil {
			a.presenter.Shutdown()
		}
		if a.animator != nil {
			a.animator.Close()
		}
		errs = append(errs, a.closeServices())

		a.logger.Info("application shutdown complete")
	})
	return errors.Join(errs...)
}

func (a *Application) closeServices() error {
	if a.lyricsService != nil {
		a.lyricsService.Close()
	}
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
			return err
		}
	}
	return nil
}

// GetLyricsService returns the lyric synchronizer.
func (a *Application) GetLyricsService() *service.LyricsService {
	return a.lyricsService
}

// GetPlayback returns the playback context.
func (a *Application) GetPlayback() ports.PlaybackContext {
	return a.playback
}

// GetAnimator returns the bar animator.
func (a *Application) GetAnimator() *visual.Animator {
	return a.animator
}

// GetPresenter returns the presenter.
func (a *Application) GetPresenter() *fyneui.Presenter {
	return a.presenter
}

// GetEventBus returns the event bus.
func (a *Application) GetEventBus() ports.EventBus {
	return a.eventBus
}

// GetFyneApp returns the Fyne application.
func (a *Application) GetFyneApp() fyne.App {
	return a.fyneApp
}
