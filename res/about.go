// Package res holds static content shown by the desktop player.
package res

import "fmt"

// aboutTemplate is the Markdown shown in the About dialog.
const aboutTemplate = `**beatstage** %s

An audio-reactive player with synchronized lyrics, built with Go and Fyne.

**Features:**
- Bar visualizer with bars, spectrum, waveform and pulse variants
- Lyrics follow playback and scroll to the active line
- Tap a line to jump to it
- Automatic transcription for tracks without lyrics
- Embedded and LRC lyrics for local files
`

// AboutContent returns the About dialog Markdown for a version string.
func AboutContent(version string) string {
	return fmt.Sprintf(aboutTemplate, version)
}
