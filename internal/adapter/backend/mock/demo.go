package mock

import "github.com/tejashwikalptaru/beatstage/internal/domain"

// Demo tracks served by NewDemoAPI: the first has finished lyrics, the
// second goes through a short transcription when requested.
var demoTracks = []domain.Track{
	{ID: "demo-1", Title: "Signal Fire", Artist: "The Test Pattern", AudioURL: "https://demo.beatstage.invalid/signal-fire.mp3"},
	{ID: "demo-2", Title: "Night Bus", Artist: "The Test Pattern", AudioURL: "https://demo.beatstage.invalid/night-bus.mp3"},
}

var demoLyrics = []domain.LyricSegment{
	{Text: "Lights come up across the water", Start: 2, End: 6.5},
	{Text: "Every window holds a signal", Start: 6.5, End: 11},
	{Text: "Count the seconds to the chorus", Start: 11, End: 15.5},
	{Text: "Here it comes", Start: 17, End: 19},
	{Text: "Burn it bright, burn it bright", Start: 19, End: 24},
	{Text: "Send it out into the night", Start: 24, End: 29},
}

// DemoTracks returns a copy of the demo queue.
func DemoTracks() []domain.Track {
	return append([]domain.Track(nil), demoTracks...)
}

// DemoLyrics returns a copy of the demo lyric lines.
func DemoLyrics() []domain.LyricSegment {
	return append([]domain.LyricSegment(nil), demoLyrics...)
}

// NewDemoAPI returns a mock backend seeded with the demo tracks.
func NewDemoAPI() *API {
	api := NewAPI()
	api.SetLyrics(demoTracks[0].ID, &domain.LyricsTrack{
		TrackID:  demoTracks[0].ID,
		Status:   domain.LyricsCompleted,
		Segments: DemoLyrics(),
	})
	api.SetTranscript(demoTracks[1].ID, DemoLyrics(), 2, false)
	return api
}
