package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/visual"
)

// Unicode block elements for bar height (9 levels including space)
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

const barWidth = 3 // character width of each bar

var (
	colorLow    = lipgloss.Color("#5FD787")
	colorMid    = lipgloss.Color("#FFD75F")
	colorHigh   = lipgloss.Color("#FF5F5F")
	colorAccent = lipgloss.Color("#87AFFF")
	colorDim    = lipgloss.Color("#808080")
)

// styles are bound to one output so colour is dropped when it is not a terminal.
type styles struct {
	title  lipgloss.Style
	active lipgloss.Style
	dim    lipgloss.Style
	state  map[domain.SyncState]lipgloss.Style
	low    lipgloss.Style
	mid    lipgloss.Style
	high   lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(colorAccent),
		active: r.NewStyle().Bold(true).Foreground(colorHigh),
		dim:    r.NewStyle().Foreground(colorDim),
		state: map[domain.SyncState]lipgloss.Style{
			domain.StateNoLyrics:     r.NewStyle().Foreground(colorDim),
			domain.StateLoading:      r.NewStyle().Foreground(colorAccent),
			domain.StateTranscribing: r.NewStyle().Foreground(colorMid),
			domain.StateCompleted:    r.NewStyle().Foreground(colorLow),
			domain.StateFailed:       r.NewStyle().Foreground(colorHigh),
		},
		low:  r.NewStyle().Foreground(colorLow),
		mid:  r.NewStyle().Foreground(colorMid),
		high: r.NewStyle().Foreground(colorHigh),
	}
}

// renderBars draws one row of bars, block height following scale.
func (s styles) renderBars(bars []visual.Bar) string {
	var sb strings.Builder
	for i, bar := range bars {
		level := (bar.Scale - visual.MinScale) / (visual.MaxScale - visual.MinScale)
		idx := int(math.Round(level * float64(len(barBlocks)-1)))
		idx = max(1, min(idx, len(barBlocks)-1))

		var style lipgloss.Style
		switch {
		case level > 0.75:
			style = s.high
		case level > 0.45:
			style = s.mid
		default:
			style = s.low
		}

		sb.WriteString(style.Render(strings.Repeat(barBlocks[idx], barWidth)))
		if i < len(bars)-1 {
			sb.WriteString(" ")
		}
	}
	return sb.String()
}

// renderLyrics lists segments with timestamps, marking active.
func (s styles) renderLyrics(segments []domain.LyricSegment, active int) string {
	var sb strings.Builder
	for i, seg := range segments {
		stamp := s.dim.Render("[" + formatTimestamp(seg.Start) + "]")
		if i == active {
			fmt.Fprintf(&sb, "%s %s %s\n", s.active.Render(">"), stamp, s.active.Render(seg.Text))
			continue
		}
		fmt.Fprintf(&sb, "  %s %s\n", stamp, seg.Text)
	}
	return sb.String()
}

func (s styles) renderState(state domain.SyncState) string {
	return s.state[state].Render(state.String())
}

// formatTimestamp renders seconds as mm:ss.cc, the LRC time format.
func formatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	centis := int(math.Round(seconds * 100))
	return fmt.Sprintf("%02d:%02d.%02d", centis/6000, centis/100%60, centis%100)
}
