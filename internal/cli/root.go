// Package cli implements lyricsctl, a terminal client for the lyrics backend
// and the bar animator.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/backend"
	"github.com/tejashwikalptaru/beatstage/internal/adapter/backend/mock"
	"github.com/tejashwikalptaru/beatstage/internal/config"
	"github.com/tejashwikalptaru/beatstage/internal/logger"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// options are the persistent flags shared by every command.
type options struct {
	apiURL  string
	token   string
	timeout time.Duration
	offline bool
	lead    float64

	cfg    config.Config
	logger *slog.Logger
	out    io.Writer
	styles styles
}

// NewRootCommand builds the lyricsctl command tree.
func NewRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "lyricsctl",
		Short: "Terminal client for the beatstage lyrics backend",
		Long: `lyricsctl talks to the lyrics backend the desktop player uses.
It fetches and transcribes lyrics, follows a transcription until it finishes,
shows which line is active at a given time, and renders visualizer frames.

Configuration comes from BEATSTAGE_* environment variables or a .env file;
flags override both.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&o.apiURL, "api-url", "", "lyrics backend base URL (default from BEATSTAGE_API_URL)")
	flags.StringVar(&o.token, "token", "", "bearer token for the backend")
	flags.DurationVar(&o.timeout, "timeout", 0, "HTTP timeout per request")
	flags.BoolVar(&o.offline, "offline", false, "use the built-in demo backend instead of the network")
	flags.Float64Var(&o.lead, "lead", 0, "seconds added to playback time before matching a line")

	root.AddCommand(
		newFetchCommand(o),
		newTranscribeCommand(o),
		newWatchCommand(o),
		newAtCommand(o),
		newBarsCommand(o),
	)
	return root
}

// load merges config from the environment with explicitly set flags.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = o.apiURL
	}
	if flags.Changed("token") {
		cfg.APIToken = o.token
	}
	if flags.Changed("timeout") {
		cfg.HTTPTimeout = o.timeout
	}
	if flags.Changed("lead") {
		cfg.LeadOffset = o.lead
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.cfg = cfg
	o.out = &syncWriter{w: cmd.OutOrStdout()}
	o.styles = newStyles(cmd.OutOrStdout())

	logCfg := cfg.Logger()
	logCfg.Output = cmd.ErrOrStderr()
	o.logger = logger.NewLogger(logCfg)
	return nil
}

// api returns the backend selected by the flags.
func (o *options) api() (ports.LyricsAPI, error) {
	if o.offline {
		api := mock.NewDemoAPI()
		api.SetLogger(o.logger.With(slog.String("backend", "mock")))
		return api, nil
	}
	client, err := backend.NewClient(o.cfg.APIURL,
		backend.WithToken(o.cfg.APIToken),
		backend.WithTimeout(o.cfg.HTTPTimeout),
		backend.WithUserAgent("lyricsctl"),
		backend.WithLogger(o.logger.With(slog.String("backend", "rest"))))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (o *options) printf(format string, args ...any) {
	fmt.Fprintf(o.out, format, args...)
}

// syncWriter serializes writes from event handlers on poll goroutines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Execute runs lyricsctl and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
