package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amckee/cantata/internal/source"
)

// artistColumns is the ordered list of columns for SELECT queries.
const artistColumns = `id, name, image_url, genres, musicbrainz_id, discogs_id, spotify_id,
	retry_count, next_attempt_at, created_at, updated_at`

// CreateArtist inserts a new canonical artist unconditionally.
func (s *Service) CreateArtist(ctx context.Context, a *Artist) error {
	prepareArtist(a)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (
			id, name, image_url, genres, musicbrainz_id, discogs_id, spotify_id,
			retry_count, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, artistArgs(a)...)
	if err != nil {
		return fmt.Errorf("creating artist: %w", err)
	}
	return nil
}

// InsertArtistIfAbsent conditionally inserts a canonical artist; on an
// external-id conflict the winning row is re-read and returned. The boolean
// reports whether a new row was inserted.
func (s *Service) InsertArtistIfAbsent(ctx context.Context, a *Artist) (*Artist, bool, error) {
	prepareArtist(a)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO artists (
			id, name, image_url, genres, musicbrainz_id, discogs_id, spotify_id,
			retry_count, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, artistArgs(a)...)
	if err != nil {
		return nil, false, fmt.Errorf("inserting artist: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return a, true, nil
	}

	for _, src := range source.AllNames() {
		id := a.SourceID(src)
		if id == "" {
			continue
		}
		existing, err := s.GetArtistBySourceID(ctx, src, id)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("artist insert conflicted but no owner found for %q", a.Name)
}

// GetArtistByID retrieves an artist by primary key. Returns nil, nil when no
// artist has that ID.
func (s *Service) GetArtistByID(ctx context.Context, id string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	return a, nil
}

// GetArtistBySourceID retrieves the artist owning the given external ID for
// a source. Returns nil, nil when no artist owns it.
func (s *Service) GetArtistBySourceID(ctx context.Context, src source.Name, externalID string) (*Artist, error) {
	col, err := sourceColumn(src)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artistColumns+` FROM artists WHERE `+col+` = ?`, externalID) //nolint:gosec // col is from validated switch, not user input
	a, err := scanArtist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by %s id: %w", src, err)
	}
	return a, nil
}

// ListArtistsMissingAlbums returns a bounded batch of artists with no album
// rows yet, retries left, and no future-scheduled attempt.
func (s *Service) ListArtistsMissingAlbums(ctx context.Context, limit, maxRetries int, now time.Time) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+artistColumns+` FROM artists ar
		WHERE NOT EXISTS (SELECT 1 FROM albums al WHERE al.artist_id = ar.id)
		  AND retry_count < ?
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at, id
		LIMIT ?
	`, maxRetries, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("listing artists missing albums: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var artists []Artist
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning artist row: %w", err)
		}
		artists = append(artists, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artist rows: %w", err)
	}
	return artists, nil
}

// UpdateArtist modifies an existing artist.
func (s *Service) UpdateArtist(ctx context.Context, a *Artist) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE artists SET
			name = ?, image_url = ?, genres = ?,
			musicbrainz_id = ?, discogs_id = ?, spotify_id = ?,
			retry_count = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?
	`,
		a.Name, a.ImageURL, MarshalStringSlice(a.Genres),
		nullIfEmpty(a.MusicBrainzID), nullIfEmpty(a.DiscogsID), nullIfEmpty(a.SpotifyID),
		a.RetryCount, formatNullableTime(a.NextAttemptAt),
		a.UpdatedAt.Format(time.RFC3339), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating artist: %w", err)
	}
	return nil
}

// LinkArtistSourceID sets the artist's external ID column for a source.
// Idempotent, and never overwrites a column claimed by a different ID.
func (s *Service) LinkArtistSourceID(ctx context.Context, artistID string, src source.Name, externalID string) error {
	col, err := sourceColumn(src)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`UPDATE artists SET `+col+` = ?, updated_at = ? WHERE id = ? AND (`+col+` IS NULL OR `+col+` = ?)`, //nolint:gosec // col is from validated switch
		externalID, now, artistID, externalID,
	)
	if err != nil {
		return fmt.Errorf("linking %s id onto artist %s: %w", src, artistID, err)
	}
	return nil
}

// SetArtistRetryState persists the artist's reindex retry counter and
// next-attempt timestamp.
func (s *Service) SetArtistRetryState(ctx context.Context, artistID string, retryCount int, nextAttempt *time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE artists SET retry_count = ?, next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		retryCount, formatNullableTime(nextAttempt), now, artistID,
	)
	if err != nil {
		return fmt.Errorf("setting artist retry state: %w", err)
	}
	return nil
}

func prepareArtist(a *Artist) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func artistArgs(a *Artist) []any {
	return []any{
		a.ID, a.Name, a.ImageURL, MarshalStringSlice(a.Genres),
		nullIfEmpty(a.MusicBrainzID), nullIfEmpty(a.DiscogsID), nullIfEmpty(a.SpotifyID),
		a.RetryCount, formatNullableTime(a.NextAttemptAt),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	}
}

// scanArtist scans a database row into an Artist struct.
func scanArtist(row interface{ Scan(...any) error }) (*Artist, error) {
	var a Artist
	var mbID, discogsID, spotifyID, nextAttempt sql.NullString
	var genres, createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.Name, &a.ImageURL, &genres, &mbID, &discogsID, &spotifyID,
		&a.RetryCount, &nextAttempt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.MusicBrainzID = mbID.String
	a.DiscogsID = discogsID.String
	a.SpotifyID = spotifyID.String
	a.Genres = UnmarshalStringSlice(genres)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if nextAttempt.Valid {
		t := parseTime(nextAttempt.String)
		a.NextAttemptAt = &t
	}
	return &a, nil
}
