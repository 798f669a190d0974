package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/backend/mock"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/service"
)

func newFetchCommand(o *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "fetch <track-id>",
		Short: "Print the lyrics the backend has for a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := o.api()
			if err != nil {
				return err
			}

			lyrics, err := api.GetLyrics(cmd.Context(), args[0])
			if errors.Is(err, domain.ErrLyricsNotFound) {
				o.printf("no lyrics for %s\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(o.out)
				enc.SetIndent("", "  ")
				return enc.Encode(lyrics)
			}

			o.printf("%s %s (%d lines)\n", o.styles.title.Render(args[0]), lyrics.Status, len(lyrics.Segments))
			o.printf("%s", o.styles.renderLyrics(lyrics.Segments, -1))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw backend document")
	return cmd
}

func newTranscribeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <track-id>",
		Short: "Ask the backend to transcribe a track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := o.api()
			if err != nil {
				return err
			}
			if err := api.RequestTranscription(cmd.Context(), args[0]); err != nil {
				return err
			}
			o.printf("transcription requested for %s\n", args[0])
			return nil
		},
	}
}

func newWatchCommand(o *options) *cobra.Command {
	var (
		audioURL string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <track-id>",
		Short: "Select a track and follow its lyrics until they settle",
		Long: `watch selects a track the way the player does: it fetches the lyrics,
requests one automatic transcription when none exist and polls until the
transcription completes or fails. Every state change is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := o.api()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("interval") {
				interval = o.cfg.PollInterval
			}

			bus := eventbus.NewSyncEventBus(o.logger.With(slog.String("component", "eventbus")))
			defer func() { _ = bus.Close() }()

			svc := service.NewLyricsService(o.logger, api, bus,
				service.WithPollInterval(interval),
				service.WithLeadOffset(o.cfg.LeadOffset))
			defer svc.Close()

			settled := make(chan domain.LyricsStateChangedEvent, 1)
			var once sync.Once

			bus.Subscribe(domain.EventLyricsStateChanged, func(e domain.Event) {
				ev := e.(domain.LyricsStateChangedEvent)
				o.printf("state  %s\n", o.styles.renderState(ev.State))
				switch ev.State {
				case domain.StateCompleted, domain.StateFailed, domain.StateNoLyrics:
					once.Do(func() { settled <- ev })
				}
			})
			bus.Subscribe(domain.EventTranscriptionRequested, func(e domain.Event) {
				ev := e.(domain.TranscriptionRequestedEvent)
				o.printf("transcription requested for %s\n", ev.TrackID)
			})
			bus.Subscribe(domain.EventLyricsPolled, func(e domain.Event) {
				ev := e.(domain.LyricsPolledEvent)
				if ev.Err != nil {
					o.printf("poll   %s\n", o.styles.dim.Render(ev.Err.Error()))
					return
				}
				o.printf("poll   %s\n", ev.Status)
			})

			track := o.watchTrack(args[0], audioURL)
			if err := svc.SelectTrack(cmd.Context(), track); err != nil {
				return err
			}

			select {
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			case ev := <-settled:
				switch ev.State {
				case domain.StateCompleted:
					o.printf("%s", o.styles.renderLyrics(ev.Segments, -1))
				case domain.StateFailed:
					if ev.Err != nil {
						return fmt.Errorf("transcription of %s failed: %w", track.ID, ev.Err)
					}
					return fmt.Errorf("transcription of %s failed", track.ID)
				default:
					o.printf("no lyrics for %s\n", track.ID)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&audioURL, "audio-url", "", "remote audio source; without one the track is never transcribed")
	cmd.Flags().DurationVar(&interval, "interval", service.DefaultPollInterval, "poll interval while transcribing")
	return cmd
}

// watchTrack builds the track to select. Offline, demo tracks keep their URL.
func (o *options) watchTrack(id, audioURL string) domain.Track {
	if o.offline && audioURL == "" {
		for _, t := range mock.DemoTracks() {
			if t.ID == id {
				return t
			}
		}
	}
	return domain.Track{ID: id, AudioURL: audioURL}
}

func newAtCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "at <track-id> <seconds>",
		Short: "Show which lyric line is active at a playback time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return domain.NewValidationError("seconds", args[1], "must be a number")
			}

			api, err := o.api()
			if err != nil {
				return err
			}
			lyrics, err := api.GetLyrics(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, domain.ErrLyricsNotFound) {
				return err
			}
			if !lyrics.HasLyrics() {
				o.printf("no lyrics for %s\n", args[0])
				return nil
			}

			active := domain.ActiveSegmentIndex(lyrics.Segments, seconds+o.cfg.LeadOffset)
			o.printf("%s line %d at %s\n", o.styles.title.Render(args[0]), active, formatTimestamp(seconds))
			o.printf("%s", o.styles.renderLyrics(lyrics.Segments, active))
			return nil
		},
	}
}
