package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/amckee/cantata/internal/source"
)

// Service provides canonical album, artist, and track data operations.
// All mutations are single, independently idempotent statements; creation
// paths route through the conditional-insert primitives so concurrent or
// retried callers never produce duplicate canonical rows.
type Service struct {
	db *sql.DB
}

// NewService creates a catalog service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// sourceColumn maps a source name to its external-id column. The column
// name is interpolated into queries; the validated switch keeps that safe.
func sourceColumn(src source.Name) (string, error) {
	switch src {
	case source.NameMusicBrainz:
		return "musicbrainz_id", nil
	case source.NameDiscogs:
		return "discogs_id", nil
	case source.NameSpotify:
		return "spotify_id", nil
	}
	return "", fmt.Errorf("unknown source: %s", src)
}

// nullIfEmpty converts "" to NULL so partial unique indexes on external-id
// columns ignore absent IDs.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime
// formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
