package visual

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tejashwikalptaru/beatstage/internal/analysis"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// DefaultFrameInterval is one tick of a 60 Hz display.
const DefaultFrameInterval = time.Second / 60

// Animator drives a fixed number of bars from elapsed time (and, for the
// data-driven variants, from the playback context's level data).
//
// Phases are drawn once in NewAnimator and kept for the animator's lifetime;
// pausing and resuming never regenerates them.
//
// Thread-safety: SetPlaying, SetVariant and Close may be called from any
// goroutine. Frames are computed sequentially on a single loop goroutine.
type Animator struct {
	// Dependencies
	logger *slog.Logger
	sink   BarSink
	source ports.PlaybackContext // optional, only read by data-driven variants

	// Configuration
	interval time.Duration
	now      func() time.Time
	phases   []float64

	// State
	variant Variant
	playing bool
	closed  bool

	// Concurrency control
	ctl  sync.Mutex // serializes SetPlaying and Close
	mu   sync.Mutex // guards state
	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures an Animator.
type Option func(*Animator)

// WithRand sets the random source used to draw phases.
func WithRand(r *rand.Rand) Option {
	return func(a *Animator) {
		a.phases = drawPhases(len(a.phases), r)
	}
}

// WithFrameInterval sets the tick interval of the animation loop.
func WithFrameInterval(d time.Duration) Option {
	return func(a *Animator) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Animator) {
		a.now = now
	}
}

// WithVariant selects the variant and the playback context it reads.
func WithVariant(v Variant, source ports.PlaybackContext) Option {
	return func(a *Animator) {
		a.variant = v
		a.source = source
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Animator) {
		a.logger = logger
	}
}

// NewAnimator creates an animator for barCount bars writing to sink.
// It starts paused and does not touch the sink until SetPlaying.
func NewAnimator(barCount int, sink BarSink, opts ...Option) (*Animator, error) {
	if barCount < 1 {
		return nil, &domain.ValidationError{
			Field:   "barCount",
			Value:   barCount,
			Message: "must be at least 1",
			Err:     domain.ErrInvalidBarCount,
		}
	}

	a := &Animator{
		logger:   slog.New(slog.DiscardHandler),
		sink:     sink,
		interval: DefaultFrameInterval,
		now:      time.Now,
		phases:   drawPhases(barCount, nil),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// drawPhases returns n independent uniform values in [0, 2π).
func drawPhases(n int, r *rand.Rand) []float64 {
	phases := make([]float64, n)
	for i := range phases {
		if r != nil {
			phases[i] = r.Float64() * 2 * math.Pi
		} else {
			phases[i] = rand.Float64() * 2 * math.Pi
		}
	}
	return phases
}

// Phases returns a copy of the per-bar phase offsets.
func (a *Animator) Phases() []float64 {
	return append([]float64(nil), a.phases...)
}

// BarCount returns the number of bars.
func (a *Animator) BarCount() int {
	return len(a.phases)
}

// Compute fills out with the synthetic bar motion at elapsed time t.
// out must have BarCount elements; it is not reallocated.
func (a *Animator) Compute(t float64, out []Bar) {
	in := FrameInput{Elapsed: t, Phases: a.phases}
	renderSynthetic(&in, out)
}

// IsPlaying reports whether the animation loop is running.
func (a *Animator) IsPlaying() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playing
}

// SetVariant switches variant. A running loop picks it up on its next frame.
func (a *Animator) SetVariant(v Variant, source ports.PlaybackContext) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.variant = v
	a.source = source
}

// SetPlaying starts or stops the animation loop. Stopping cancels the loop,
// waits for the in-flight frame, then rests every bar. Calls that do not
// change the state are no-ops.
func (a *Animator) SetPlaying(playing bool) {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	a.mu.Lock()
	if a.closed || a.playing == playing {
		a.mu.Unlock()
		return
	}
	a.playing = playing

	if playing {
		a.stop = make(chan struct{})
		a.wg.Add(1)
		go a.loop(a.stop)
		a.mu.Unlock()
		a.logger.Debug("animation started", slog.Int("bars", len(a.phases)))
		return
	}

	close(a.stop)
	a.mu.Unlock()

	a.wg.Wait()
	a.sink.Rest(RestScale, RestOpacity)
	a.logger.Debug("animation stopped")
}

// Close stops the loop and releases the animator. It does not rest the bars.
func (a *Animator) Close() {
	a.ctl.Lock()
	defer a.ctl.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.playing {
		a.playing = false
		close(a.stop)
	}
	a.mu.Unlock()

	a.wg.Wait()
}

// loop runs one frame per tick until stop is closed. Elapsed time counts from
// loop start.
func (a *Animator) loop(stop <-chan struct{}) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	start := a.now()
	bars := make([]Bar, len(a.phases))
	in := FrameInput{Phases: a.phases}
	var energy analysis.BandEnergy

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		// Re-check so a tick racing with stop never paints after it
		select {
		case <-stop:
			return
		default:
		}

		a.mu.Lock()
		variant, source := a.variant, a.source
		a.mu.Unlock()

		in.Elapsed = a.now().Sub(start).Seconds()
		in.Frame = domain.AudioLevelFrame{}
		if variant.NeedsAudio() && source != nil {
			in.Frame = ports.ReadFrame(source)
			if variant == VariantPulse {
				energy = energy.Smooth(analysis.MeasureEnergy(in.Frame.Frequency), 0.7)
				in.Energy = math.Max(energy.Average(), averageLevel(in.Frame.Levels))
			}
		}

		Render(variant, &in, bars)
		a.sink.Apply(bars)
	}
}

func averageLevel(levels []float64) float64 {
	if len(levels) == 0 {
		return 0
	}
	var sum float64
	for _, l := range levels {
		sum += l
	}
	return sum / float64(len(levels))
}
