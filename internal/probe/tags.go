package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dhowden/tag"
)

// TagProber describes audio files from their embedded tags.
// It is the fallback when MediaInfo is not installed.
type TagProber struct{}

type tagPayload struct {
	Source      string `json:"source"`
	HasTags     bool   `json:"has_tags"`
	Format      string `json:"format,omitempty"`
	FileType    string `json:"file_type,omitempty"`
	Title       string `json:"title,omitempty"`
	Album       string `json:"album,omitempty"`
	Artist      string `json:"artist,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Composer    string `json:"composer,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Track       int    `json:"track,omitempty"`
	TrackTotal  int    `json:"track_total,omitempty"`
	Disc        int    `json:"disc,omitempty"`
	DiscTotal   int    `json:"disc_total,omitempty"`
}

// Probe reads the tags of path. A file without tags is not an error.
func (TagProber) Probe(ctx context.Context, path string) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	payload := tagPayload{Source: "tags"}

	m, err := tag.ReadFrom(f)
	switch {
	case errors.Is(err, tag.ErrNoTagsFound):
	case err != nil:
		return nil, fmt.Errorf("failed to read tags: %w", err)
	default:
		track, trackTotal := m.Track()
		disc, discTotal := m.Disc()
		payload = tagPayload{
			Source:      "tags",
			HasTags:     true,
			Format:      string(m.Format()),
			FileType:    string(m.FileType()),
			Title:       m.Title(),
			Album:       m.Album(),
			Artist:      m.Artist(),
			AlbumArtist: m.AlbumArtist(),
			Composer:    m.Composer(),
			Genre:       m.Genre(),
			Year:        m.Year(),
			Track:       track,
			TrackTotal:  trackTotal,
			Disc:        disc,
			DiscTotal:   discTotal,
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return data, nil
}
