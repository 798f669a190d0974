// Package metadata builds tracks from local audio files.
package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/google/uuid"
	"github.com/tejashwikalptaru/beatstage/internal/domain"
	"github.com/tejashwikalptaru/beatstage/internal/ports"
)

// Reader extracts title, artist and embedded synced lyrics from files.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a metadata reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reader{logger: logger}
}

// ReadTrack returns a local track for path. Files without readable tags
// still produce a track titled after the file name.
func (r *Reader) ReadTrack(path string) (*domain.Track, error) {
	if path == "" {
		return nil, domain.NewValidationError("path", path, "must not be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, domain.NewValidationError("path", path, "is a directory")
	}

	base := filepath.Base(path)
	track := &domain.Track{
		ID:       "local-" + uuid.NewString(),
		Title:    strings.TrimSuffix(base, filepath.Ext(base)),
		Local:    true,
		FilePath: path,
	}

	lyrics := r.readTags(path, track)
	if len(ParseLRC(lyrics)) == 0 {
		lyrics = r.readSidecar(path)
	}

	if segments := ParseLRC(lyrics); len(segments) > 0 {
		track.Lyrics = &domain.LyricsTrack{
			TrackID:  track.ID,
			Status:   domain.LyricsCompleted,
			Segments: segments,
		}
		r.logger.Debug("synced lyrics found",
			slog.String("file_path", path),
			slog.Int("segments", len(segments)))
	}

	return track, nil
}

// readTags fills title and artist from the file's tags and returns any
// embedded lyrics text.
func (r *Reader) readTags(path string, track *domain.Track) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	m, err := tag.ReadFrom(file)
	if err != nil || m == nil {
		r.logger.Debug("no tags found", slog.String("file_path", path), slog.Any("error", err))
		return ""
	}

	if title := strings.TrimSpace(m.Title()); title != "" {
		track.Title = title
	}
	if artist := strings.TrimSpace(m.Artist()); artist != "" {
		track.Artist = artist
	}
	return m.Lyrics()
}

// readSidecar returns the contents of an .lrc file next to path.
func (r *Reader) readSidecar(path string) string {
	lrc := strings.TrimSuffix(path, filepath.Ext(path)) + ".lrc"
	data, err := os.ReadFile(lrc)
	if err != nil {
		return ""
	}
	r.logger.Debug("using sidecar lyrics", slog.String("file_path", lrc))
	return string(data)
}

// Verify that Reader implements the TrackReader interface
var _ ports.TrackReader = (*Reader)(nil)
