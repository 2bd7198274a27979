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

// albumColumns is the ordered list of columns for SELECT queries.
const albumColumns = `id, title, artist, artist_id, release_date, cover_url, genres,
	track_count, musicbrainz_id, discogs_id, spotify_id,
	retry_count, next_attempt_at, created_at, updated_at`

// CreateAlbum inserts a new canonical album unconditionally. Callers on a
// concurrent path use InsertAlbumIfAbsent instead.
func (s *Service) CreateAlbum(ctx context.Context, a *Album) error {
	prepareAlbum(a)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (
			id, title, artist, artist_id, release_date, cover_url, genres,
			track_count, musicbrainz_id, discogs_id, spotify_id,
			retry_count, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, albumArgs(a)...)
	if err != nil {
		return fmt.Errorf("creating album: %w", err)
	}
	return nil
}

// InsertAlbumIfAbsent conditionally inserts a canonical album. If a row
// already owns any of the album's external IDs the insert is a no-op and
// the winning row is re-read and returned instead. The boolean reports
// whether a new row was inserted.
func (s *Service) InsertAlbumIfAbsent(ctx context.Context, a *Album) (*Album, bool, error) {
	prepareAlbum(a)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (
			id, title, artist, artist_id, release_date, cover_url, genres,
			track_count, musicbrainz_id, discogs_id, spotify_id,
			retry_count, next_attempt_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, albumArgs(a)...)
	if err != nil {
		return nil, false, fmt.Errorf("inserting album: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return a, true, nil
	}

	// A concurrent writer won the insert; re-read by whichever external ID
	// caused the conflict.
	for _, src := range source.AllNames() {
		id := a.SourceID(src)
		if id == "" {
			continue
		}
		existing, err := s.GetAlbumBySourceID(ctx, src, id)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}
	return nil, false, fmt.Errorf("album insert conflicted but no owner found for %q", a.Title)
}

// GetAlbumByID retrieves an album by primary key. Returns nil, nil when no
// album has that ID.
func (s *Service) GetAlbumByID(ctx context.Context, id string) (*Album, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting album by id: %w", err)
	}
	return a, nil
}

// GetAlbumBySourceID retrieves the album owning the given external ID for a
// source. Returns nil, nil when no album owns it.
func (s *Service) GetAlbumBySourceID(ctx context.Context, src source.Name, externalID string) (*Album, error) {
	col, err := sourceColumn(src)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+albumColumns+` FROM albums WHERE `+col+` = ?`, externalID) //nolint:gosec // col is from validated switch, not user input
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting album by %s id: %w", src, err)
	}
	return a, nil
}

// GetAlbumByAnySourceID checks all source columns for the given external ID.
func (s *Service) GetAlbumByAnySourceID(ctx context.Context, externalID string) (*Album, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM albums
		WHERE musicbrainz_id = ? OR discogs_id = ? OR spotify_id = ?`,
		externalID, externalID, externalID)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting album by any source id: %w", err)
	}
	return a, nil
}

// ListRecentAlbums returns the most recently created albums, newest first.
// This is the bounded candidate set the resolver scans for fuzzy matches.
func (s *Service) ListRecentAlbums(ctx context.Context, limit int) ([]Album, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+albumColumns+` FROM albums ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent albums: %w", err)
	}
	return collectAlbums(rows)
}

// ListAllAlbums returns every album ordered by creation time, oldest first.
func (s *Service) ListAllAlbums(ctx context.Context) ([]Album, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+albumColumns+` FROM albums ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	return collectAlbums(rows)
}

// ListAlbumsMissingTracks returns a bounded batch of albums that have no
// tracks, have retries left, and are not scheduled for a future attempt.
func (s *Service) ListAlbumsMissingTracks(ctx context.Context, limit, maxRetries int, now time.Time) ([]Album, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+albumColumns+` FROM albums
		WHERE track_count = 0
		  AND retry_count < ?
		  AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at, id
		LIMIT ?
	`, maxRetries, now.UTC().Format(time.RFC3339), limit)
	if err != nil {
		return nil, fmt.Errorf("listing albums missing tracks: %w", err)
	}
	return collectAlbums(rows)
}

// UpdateAlbum modifies an existing album.
func (s *Service) UpdateAlbum(ctx context.Context, a *Album) error {
	a.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE albums SET
			title = ?, artist = ?, artist_id = ?, release_date = ?, cover_url = ?,
			genres = ?, track_count = ?,
			musicbrainz_id = ?, discogs_id = ?, spotify_id = ?,
			retry_count = ?, next_attempt_at = ?, updated_at = ?
		WHERE id = ?
	`,
		a.Title, a.Artist, nullIfEmpty(a.ArtistID), a.ReleaseDate, a.CoverURL,
		MarshalStringSlice(a.Genres), a.TrackCount,
		nullIfEmpty(a.MusicBrainzID), nullIfEmpty(a.DiscogsID), nullIfEmpty(a.SpotifyID),
		a.RetryCount, formatNullableTime(a.NextAttemptAt),
		a.UpdatedAt.Format(time.RFC3339), a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating album: %w", err)
	}
	return nil
}

// LinkAlbumSourceID sets the album's external ID column for a source.
// Idempotent: re-linking the same ID is a no-op, and an already-claimed
// column holding a different ID is left untouched.
func (s *Service) LinkAlbumSourceID(ctx context.Context, albumID string, src source.Name, externalID string) error {
	col, err := sourceColumn(src)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx,
		`UPDATE albums SET `+col+` = ?, updated_at = ? WHERE id = ? AND (`+col+` IS NULL OR `+col+` = ?)`, //nolint:gosec // col is from validated switch
		externalID, now, albumID, externalID,
	)
	if err != nil {
		return fmt.Errorf("linking %s id onto album %s: %w", src, albumID, err)
	}
	return nil
}

// SetAlbumRetryState persists the album's reindex retry counter and
// next-attempt timestamp.
func (s *Service) SetAlbumRetryState(ctx context.Context, albumID string, retryCount int, nextAttempt *time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE albums SET retry_count = ?, next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		retryCount, formatNullableTime(nextAttempt), now, albumID,
	)
	if err != nil {
		return fmt.Errorf("setting album retry state: %w", err)
	}
	return nil
}

// RefreshAlbumTrackCount recomputes the album's denormalized track count.
func (s *Service) RefreshAlbumTrackCount(ctx context.Context, albumID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE albums
		SET track_count = (SELECT COUNT(*) FROM tracks WHERE album_id = ?), updated_at = ?
		WHERE id = ?
	`, albumID, now, albumID)
	if err != nil {
		return fmt.Errorf("refreshing track count for album %s: %w", albumID, err)
	}
	return nil
}

// DeleteAlbum removes an album by ID. Tracks cascade-delete with it.
func (s *Service) DeleteAlbum(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting album: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("album not found: %s", id)
	}
	return nil
}

// ReassignAlbumDependents re-points all rows that reference fromID
// (tracks, reviews, rankings, posts) to toID in a single transaction.
func (s *Service) ReassignAlbumDependents(ctx context.Context, fromID, toID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"tracks", "reviews", "rankings", "posts"} {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET album_id = ? WHERE album_id = ?`, //nolint:gosec // table names are a fixed list
			toID, fromID,
		); err != nil {
			return fmt.Errorf("reassigning %s from album %s: %w", table, fromID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dependent reassignment: %w", err)
	}
	return nil
}

// CountAlbumDependents returns how many reviews, rankings, and posts
// reference the album.
func (s *Service) CountAlbumDependents(ctx context.Context, albumID string) (int, error) {
	var total int
	for _, table := range []string{"reviews", "rankings", "posts"} {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE album_id = ?`, albumID).Scan(&n) //nolint:gosec // table names are a fixed list
		if err != nil {
			return 0, fmt.Errorf("counting %s for album %s: %w", table, albumID, err)
		}
		total += n
	}
	return total, nil
}

func prepareAlbum(a *Album) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

func albumArgs(a *Album) []any {
	return []any{
		a.ID, a.Title, a.Artist, nullIfEmpty(a.ArtistID), a.ReleaseDate, a.CoverURL,
		MarshalStringSlice(a.Genres), a.TrackCount,
		nullIfEmpty(a.MusicBrainzID), nullIfEmpty(a.DiscogsID), nullIfEmpty(a.SpotifyID),
		a.RetryCount, formatNullableTime(a.NextAttemptAt),
		a.CreatedAt.Format(time.RFC3339), a.UpdatedAt.Format(time.RFC3339),
	}
}

func collectAlbums(rows *sql.Rows) ([]Album, error) {
	defer rows.Close() //nolint:errcheck
	var albums []Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning album row: %w", err)
		}
		albums = append(albums, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating album rows: %w", err)
	}
	return albums, nil
}

// scanAlbum scans a database row into an Album struct.
func scanAlbum(row interface{ Scan(...any) error }) (*Album, error) {
	var a Album
	var artistID, mbID, discogsID, spotifyID sql.NullString
	var nextAttempt sql.NullString
	var genres, createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.Title, &a.Artist, &artistID, &a.ReleaseDate, &a.CoverURL, &genres,
		&a.TrackCount, &mbID, &discogsID, &spotifyID,
		&a.RetryCount, &nextAttempt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ArtistID = artistID.String
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
