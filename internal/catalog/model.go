package catalog

import (
	"encoding/json"
	"time"

	"github.com/amckee/cantata/internal/source"
)

// Album is the canonical, deduplicated album record that all external
// source IDs resolve to. At most one album holds a given external ID for
// any source.
type Album struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Artist        string     `json:"artist"`
	ArtistID      string     `json:"artist_id,omitempty"`
	ReleaseDate   string     `json:"release_date,omitempty"`
	CoverURL      string     `json:"cover_url,omitempty"`
	Genres        []string   `json:"genres,omitempty"`
	TrackCount    int        `json:"track_count"`
	MusicBrainzID string     `json:"musicbrainz_id,omitempty"`
	DiscogsID     string     `json:"discogs_id,omitempty"`
	SpotifyID     string     `json:"spotify_id,omitempty"`
	RetryCount    int        `json:"retry_count"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SourceID returns the album's external ID for the given source, or "".
func (a *Album) SourceID(src source.Name) string {
	switch src {
	case source.NameMusicBrainz:
		return a.MusicBrainzID
	case source.NameDiscogs:
		return a.DiscogsID
	case source.NameSpotify:
		return a.SpotifyID
	}
	return ""
}

// SetSourceID sets the album's external ID for the given source.
func (a *Album) SetSourceID(src source.Name, id string) {
	switch src {
	case source.NameMusicBrainz:
		a.MusicBrainzID = id
	case source.NameDiscogs:
		a.DiscogsID = id
	case source.NameSpotify:
		a.SpotifyID = id
	}
}

// Artist is the canonical artist record.
type Artist struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	ImageURL      string     `json:"image_url,omitempty"`
	Genres        []string   `json:"genres,omitempty"`
	MusicBrainzID string     `json:"musicbrainz_id,omitempty"`
	DiscogsID     string     `json:"discogs_id,omitempty"`
	SpotifyID     string     `json:"spotify_id,omitempty"`
	RetryCount    int        `json:"retry_count"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SourceID returns the artist's external ID for the given source, or "".
func (a *Artist) SourceID(src source.Name) string {
	switch src {
	case source.NameMusicBrainz:
		return a.MusicBrainzID
	case source.NameDiscogs:
		return a.DiscogsID
	case source.NameSpotify:
		return a.SpotifyID
	}
	return ""
}

// SetSourceID sets the artist's external ID for the given source.
func (a *Artist) SetSourceID(src source.Name, id string) {
	switch src {
	case source.NameMusicBrainz:
		a.MusicBrainzID = id
	case source.NameDiscogs:
		a.DiscogsID = id
	case source.NameSpotify:
		a.SpotifyID = id
	}
}

// Track is a single track owned by a canonical album. Position is the
// human-facing label ("A1", "12"); TrackNumber is the dense 1-based ordinal
// assigned by normalization.
type Track struct {
	ID            string    `json:"id"`
	AlbumID       string    `json:"album_id"`
	Title         string    `json:"title"`
	TrackNumber   int       `json:"track_number"`
	DurationMS    int       `json:"duration_ms,omitempty"`
	Position      string    `json:"position,omitempty"`
	MusicBrainzID string    `json:"musicbrainz_id,omitempty"`
	SpotifyID     string    `json:"spotify_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ExternalIDCount returns how many external track IDs are present, used to
// pick a keeper among duplicate tracks.
func (t *Track) ExternalIDCount() int {
	n := 0
	if t.MusicBrainzID != "" {
		n++
	}
	if t.SpotifyID != "" {
		n++
	}
	return n
}

// MarshalStringSlice encodes a string slice as a JSON array string.
func MarshalStringSlice(s []string) string {
	if s == nil {
		return "[]"
	}
	data, _ := json.Marshal(s)
	return string(data)
}

// UnmarshalStringSlice decodes a JSON array string into a string slice.
func UnmarshalStringSlice(data string) []string {
	if data == "" || data == "[]" {
		return nil
	}
	var result []string
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil
	}
	return result
}
