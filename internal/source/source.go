package source

import (
	"context"
	"fmt"
)

// Name uniquely identifies an external catalog source.
type Name string

// Known source names.
const (
	NameMusicBrainz Name = "musicbrainz"
	NameDiscogs     Name = "discogs"
	NameSpotify     Name = "spotify"
)

// AllNames returns all known source names in resolution priority order.
// MusicBrainz is the native source; the others are fallbacks.
func AllNames() []Name {
	return []Name{NameMusicBrainz, NameDiscogs, NameSpotify}
}

// Valid reports whether n is a known source name.
func (n Name) Valid() bool {
	switch n {
	case NameMusicBrainz, NameDiscogs, NameSpotify:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the source.
func (n Name) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameDiscogs:
		return "Discogs"
	case NameSpotify:
		return "Spotify"
	default:
		return string(n)
	}
}

// ReleaseSearchResult is a single release search hit from a source.
type ReleaseSearchResult struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	ReleaseDate string `json:"release_date,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// Release is the full release record a source returns, including its
// track list. Track layout differs per source: MusicBrainz splits tracks
// across media, Discogs uses a single medium with free-text vinyl
// positions, Spotify uses disc/track numbers flattened into positions.
type Release struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Artist      string   `json:"artist"`
	ReleaseDate string   `json:"release_date,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Media       []Medium `json:"media"`
}

// Medium is one disc or side grouping of tracks within a release.
type Medium struct {
	Tracks []ReleaseTrack `json:"tracks"`
}

// ReleaseTrack is a single track as reported by a source. ID is the
// source's own track identifier and may be empty. Position is the raw,
// unnormalized label ("A1", "3", "2-05").
type ReleaseTrack struct {
	ID         string `json:"id,omitempty"`
	Title      string `json:"title"`
	Position   string `json:"position,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

// Tracks returns the release's tracks flattened across media in order.
func (r *Release) Tracks() []ReleaseTrack {
	var tracks []ReleaseTrack
	for _, m := range r.Media {
		tracks = append(tracks, m.Tracks...)
	}
	return tracks
}

// Artist is the full artist record a source returns.
type Artist struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url,omitempty"`
	Genres   []string `json:"genres,omitempty"`
}

// ArtistSearchResult is a single artist search hit from a source.
type ArtistSearchResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is the interface all source adapters implement. Adapters apply
// their own per-call timeouts and rate limits; callers treat any error as
// "source unavailable" and fall back where the pipeline allows.
type Client interface {
	// Name returns the unique source identifier.
	Name() Name

	// SearchReleases searches the source's release catalog by free text.
	SearchReleases(ctx context.Context, query string, limit int) ([]ReleaseSearchResult, error)

	// GetRelease fetches a full release, including its track list, by the
	// source's own release ID.
	GetRelease(ctx context.Context, id string) (*Release, error)

	// GetArtist fetches full artist metadata by the source's own ID.
	GetArtist(ctx context.Context, id string) (*Artist, error)

	// SearchArtists searches the source by artist name.
	SearchArtists(ctx context.Context, query string) ([]ArtistSearchResult, error)
}

// ErrNotFound indicates the source has no record for the requested ID.
type ErrNotFound struct {
	Source Name
	ID     string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: %s not found", e.Source, e.ID)
}

// ErrUnavailable indicates a transient failure (rate-limited, timeout,
// server error).
type ErrUnavailable struct {
	Source Name
	Cause  error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }
