package domain

// DefaultLeadOffset is added to the playback time before matching segments.
// Transcription timestamps arrive systematically late by about this much.
const DefaultLeadOffset = 0.15

// ActiveSegmentIndex returns the index of the segment to highlight for the
// given (already offset) playback time, or -1 when there are no segments.
//
// The first segment containing t wins. Inside a gap the most recently started
// segment is chosen; past the end the last one is; before the first segment
// index 0 is chosen.
func ActiveSegmentIndex(segments []LyricSegment, t float64) int {
	if len(segments) == 0 {
		return -1
	}

	for i, seg := range segments {
		if seg.Contains(t) {
			return i
		}
	}

	last := len(segments) - 1
	if t >= segments[last].End {
		return last
	}

	upcoming := -1
	for i, seg := range segments {
		if seg.Start > t {
			upcoming = i
			break
		}
	}

	if upcoming > 0 {
		return upcoming - 1
	}
	return 0
}
