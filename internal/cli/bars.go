package cli

import (
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

func newBarsCommand(o *options) *cobra.Command {
	var (
		count  int
		at     float64
		seed   uint64
		follow time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bars",
		Short: "Render the bar animation in the terminal",
		Long: `bars prints the synthetic bar motion. Without --follow it prints the single
frame at --at seconds; with --follow it runs the animation loop for that long
and finishes with the bars at rest.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("count") {
				count = o.cfg.BarCount
			}

			opts := []visual.Option{visual.WithFrameInterval(o.cfg.FrameInterval())}
			if cmd.Flags().Changed("seed") {
				opts = append(opts, visual.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}

			sink := &terminalSink{o: o, count: count}
			animator, err := visual.NewAnimator(count, sink, opts...)
			if err != nil {
				return err
			}
			defer animator.Close()

			if follow <= 0 {
				bars := make([]visual.Bar, animator.BarCount())
				animator.Compute(at, bars)
				o.printf("%s\n", o.styles.renderBars(bars))
				return nil
			}

			animator.SetPlaying(true)
			select {
			case <-cmd.Context().Done():
			case <-time.After(follow):
			}
			animator.SetPlaying(false)
			o.printf("\n")
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 5, "number of bars")
	cmd.Flags().Float64Var(&at, "at", 0, "elapsed seconds of the frame to print")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for the bar phases")
	cmd.Flags().DurationVar(&follow, "follow", 0, "animate for this long")
	return cmd
}

// terminalSink redraws one line per frame.
type terminalSink struct {
	o     *options
	count int
}

func (s *terminalSink) Apply(bars []visual.Bar) {
	s.o.printf("\r%s", s.o.styles.renderBars(bars))
}

func (s *terminalSink) Rest(scale, opacity float64) {
	bars := make([]visual.Bar, s.count)
	for i := range bars {
		bars[i] = visual.Bar{Scale: scale, Opacity: opacity}
	}
	s.o.printf("\r%s", s.o.styles.renderBars(bars))
}

var _ visual.BarSink = (*terminalSink)(nil)
