package metadata

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// lastLineHold is how long the final line stays up when nothing follows it.
const lastLineHold = 5.0

var timeTag = regexp.MustCompile(`^\[(\d{1,3}):(\d{1,2}(?:[.:]\d{1,3})?)\]`)

type lrcLine struct {
	at   float64
	text string
}

// ParseLRC turns "[mm:ss.xx] text" lyrics into ordered segments. A line may
// carry several time tags. Each segment ends where the next line starts; an
// empty timed line only closes the previous one. Text that is not LRC
// yields no segments.
func ParseLRC(text string) []domain.LyricSegment {
	var lines []lrcLine
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)

		var stamps []float64
		for {
			m := timeTag.FindStringSubmatch(raw)
			if m == nil {
				break
			}
			stamps = append(stamps, parseStamp(m[1], m[2]))
			raw = raw[len(m[0]):]
		}

		body := strings.TrimSpace(raw)
		for _, at := range stamps {
			lines = append(lines, lrcLine{at: at, text: body})
		}
	}

	slices.SortStableFunc(lines, func(a, b lrcLine) int {
		switch {
		case a.at < b.at:
			return -1
		case a.at > b.at:
			return 1
		}
		return 0
	})

	var segments []domain.LyricSegment
	for i, l := range lines {
		if l.text == "" {
			continue
		}
		end := l.at + lastLineHold
		if i+1 < len(lines) {
			end = lines[i+1].at
		}
		if end <= l.at {
			continue
		}
		segments = append(segments, domain.LyricSegment{Text: l.text, Start: l.at, End: end})
	}
	return segments
}

func parseStamp(minutes, seconds string) float64 {
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.ParseFloat(strings.Replace(seconds, ":", ".", 1), 64)
	return float64(m)*60 + s
}
