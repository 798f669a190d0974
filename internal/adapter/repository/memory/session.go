// Package memory provides repository implementations backed by Fyne preferences.
package memory

import (
	"encoding/json"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

const (
	keyQueue   = "session.queue"
	keyIndex   = "session.current_index"
	keyVariant = "session.visualizer"
)

// SessionRepository implements ports.SessionRepository on top of Fyne
// preferences, which live in the OS-specific app data directory.
//
// Thread-safe: All operations protected by sync.RWMutex.
type SessionRepository struct {
	prefs fyne.Preferences
	mu    sync.RWMutex
}

// NewSessionRepository creates a session repository.
// The preferences usually come from fyne.App.Preferences().
func NewSessionRepository(prefs fyne.Preferences) *SessionRepository {
	return &SessionRepository{prefs: prefs}
}

// savedTrack is the persisted form of a queue entry. Lyrics are not stored;
// remote ones are fetched again and local ones are read back from the file.
type savedTrack struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Artist   string `json:"artist,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
	Local    bool   `json:"local,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// SaveQueue persists the queue and its current index.
func (r *SessionRepository) SaveQueue(tracks []domain.Track, index int) error {
	saved := make([]savedTrack, len(tracks))
	for i, t := range tracks {
		saved[i] = savedTrack{
			ID:       t.ID,
			Title:    t.Title,
			Artist:   t.Artist,
			AudioURL: t.AudioURL,
			Local:    t.Local,
			FilePath: t.FilePath,
		}
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return domain.NewServiceError("SessionRepository", "SaveQueue", "failed to marshal tracks", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetString(keyQueue, string(data))
	// Stored as index+1 because Fyne returns 0 for a missing key
	r.prefs.SetInt(keyIndex, index+1)
	return nil
}

// LoadQueue returns the saved queue and index.
func (r *SessionRepository) LoadQueue() ([]domain.Track, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := r.prefs.String(keyQueue)
	if data == "" {
		return []domain.Track{}, -1, nil
	}

	var saved []savedTrack
	if err := json.Unmarshal([]byte(data), &saved); err != nil {
		return nil, -1, domain.NewServiceError("SessionRepository", "LoadQueue", "failed to unmarshal tracks", err)
	}

	tracks := make([]domain.Track, len(saved))
	for i, s := range saved {
		tracks[i] = domain.Track{
			ID:       s.ID,
			Title:    s.Title,
			Artist:   s.Artist,
			AudioURL: s.AudioURL,
			Local:    s.Local,
			FilePath: s.FilePath,
		}
	}

	index := r.prefs.Int(keyIndex) - 1
	if index >= len(tracks) {
		index = -1
	}
	if index < 0 && len(tracks) > 0 {
		index = 0
	}
	return tracks, index, nil
}

// SaveVariant persists the visualizer variant name.
func (r *SessionRepository) SaveVariant(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.SetString(keyVariant, name)
	return nil
}

// LoadVariant returns the saved variant name.
func (r *SessionRepository) LoadVariant() (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.prefs.String(keyVariant), nil
}

// Clear removes all saved session data.
func (r *SessionRepository) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prefs.RemoveValue(keyQueue)
	r.prefs.RemoveValue(keyIndex)
	r.prefs.RemoveValue(keyVariant)
	return nil
}

// Verify interface implementation
var _ ports.SessionRepository = (*SessionRepository)(nil)
