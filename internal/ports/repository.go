// Package ports define repository interfaces for data persistence abstraction.
package ports

import (
	"github.com/tejashwikalptaru/beatstage/internal/domain"
)

// SessionRepository persists what the player restores on the next start:
// the play queue, the selected position in it, and the visualizer variant.
//
// Thread-safety: Implementations must be thread-safe.
type SessionRepository interface {
	// SaveQueue persists the queue and the index of the current track.
	SaveQueue(tracks []domain.Track, index int) error

	// LoadQueue returns the saved queue and index.
	// With nothing saved it returns an empty queue and index -1.
	LoadQueue() ([]domain.Track, int, error)

	// SaveVariant persists the visualizer variant name.
	SaveVariant(name string) error

	// LoadVariant returns the saved variant name, or "" when none was saved.
	LoadVariant() (string, error)

	// Clear removes all saved session data.
	Clear() error
}
