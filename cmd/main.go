// Package main is the production entry point for the beatstage player.
//
// beatstage plays a queue of tracks with a bar visualizer and lyrics that
// follow playback, transcribed on demand by the lyrics backend.
//
// Build:
//
//	go build -o build/beatstage ./cmd
//
// Run:
//
//	./build/beatstage [--offline] [file.wav...]
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/beatstage/internal/app"
	"github.com/tejashwikalptaru/beatstage/internal/config"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		offline      bool
		mockPlayback bool
		visualizer   string
		remotes      []string
	)

	cmd := &cobra.Command{
		Use:   "beatstage [files...]",
		Short: "Music player with a bar visualizer and synced lyrics",
		Long: `beatstage plays local WAV files or remote tracks known to the lyrics
backend. Lyrics follow playback line by line; tracks without lyrics are
transcribed by the backend once, and can be retried from the lyrics pane.

With no files or remote tracks the previous session's queue is restored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("visualizer") {
				settings.Visualizer = visualizer
			}

			tracks, err := parseRemotes(remotes)
			if err != nil {
				return err
			}

			cfg := app.DefaultConfig()
			cfg.Settings = settings
			cfg.Offline = offline
			cfg.UseMockPlayback = mockPlayback
			cfg.Tracks = tracks
			cfg.Files = args

			application, err := app.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}

			// Ensure a graceful shutdown
			defer func() {
				if err := application.Shutdown(); err != nil {
					fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
				}
			}()

			// Blocks until the window is closed
			return application.Run()
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&offline, "offline", false, "use the built-in demo backend and queue")
	flags.BoolVar(&mockPlayback, "mock-playback", false, "simulate playback instead of decoding audio")
	flags.StringVar(&visualizer, "visualizer", "bars", "visualizer variant: bars, spectrum, waveform or pulse")
	flags.StringArrayVar(&remotes, "remote", nil, "remote track as ID=AUDIO_URL[=TITLE], repeatable")
	return cmd
}

// parseRemotes turns ID=AUDIO_URL[=TITLE] values into tracks.
func parseRemotes(values []string) ([]domain.Track, error) {
	tracks := make([]domain.Track, 0, len(values))
	for _, v := range values {
		parts := strings.SplitN(v, "=", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, domain.NewValidationError("remote", v, "must be ID=AUDIO_URL[=TITLE]")
		}
		track := domain.Track{ID: parts[0], AudioURL: parts[1], Title: parts[0]}
		if len(parts) == 3 && parts[2] != "" {
			track.Title = parts[2]
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}
