package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// trackColumns is the ordered list of columns for SELECT queries.
const trackColumns = `id, album_id, title, track_number, duration_ms, position,
	musicbrainz_id, spotify_id, created_at, updated_at`

// InsertTrack inserts a new track unconditionally.
func (s *Service) InsertTrack(ctx context.Context, t *Track) error {
	prepareTrack(t)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (
			id, album_id, title, track_number, duration_ms, position,
			musicbrainz_id, spotify_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, trackArgs(t)...)
	if err != nil {
		return fmt.Errorf("inserting track: %w", err)
	}
	return nil
}

// InsertTrackIfAbsent conditionally inserts a track. When the track carries
// an external ID already owned by another row the insert is a no-op, not a
// duplicate. The boolean reports whether a row was inserted.
func (s *Service) InsertTrackIfAbsent(ctx context.Context, t *Track) (bool, error) {
	prepareTrack(t)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (
			id, album_id, title, track_number, duration_ms, position,
			musicbrainz_id, spotify_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, trackArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("inserting track: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListTracksByAlbum returns all tracks for an album ordered by track number.
func (s *Service) ListTracksByAlbum(ctx context.Context, albumID string) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE album_id = ? ORDER BY track_number, position, title`,
		albumID)
	if err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tracks []Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning track row: %w", err)
		}
		tracks = append(tracks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating track rows: %w", err)
	}
	return tracks, nil
}

// CountAlbumTracks returns the number of tracks owned by an album.
func (s *Service) CountAlbumTracks(ctx context.Context, albumID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracks WHERE album_id = ?`, albumID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}

// CountAlbumTracksWithPosition returns how many of an album's tracks carry a
// non-empty normalized position.
func (s *Service) CountAlbumTracksWithPosition(ctx context.Context, albumID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tracks WHERE album_id = ? AND position != ''`, albumID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting positioned tracks: %w", err)
	}
	return n, nil
}

// SetTrackPosition updates just the position label on a track.
func (s *Service) SetTrackPosition(ctx context.Context, trackID, pos string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET position = ?, updated_at = ? WHERE id = ?`, pos, now, trackID)
	if err != nil {
		return fmt.Errorf("setting track position: %w", err)
	}
	return nil
}

// SetTrackNumber updates just the dense ordinal on a track.
func (s *Service) SetTrackNumber(ctx context.Context, trackID string, number int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET track_number = ?, updated_at = ? WHERE id = ?`, number, now, trackID)
	if err != nil {
		return fmt.Errorf("setting track number: %w", err)
	}
	return nil
}

// DeleteTrack removes a track by ID.
func (s *Service) DeleteTrack(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting track: %w", err)
	}
	return nil
}

func prepareTrack(t *Track) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

func trackArgs(t *Track) []any {
	return []any{
		t.ID, t.AlbumID, t.Title, t.TrackNumber, nullIfZero(t.DurationMS), t.Position,
		nullIfEmpty(t.MusicBrainzID), nullIfEmpty(t.SpotifyID),
		t.CreatedAt.Format(time.RFC3339), t.UpdatedAt.Format(time.RFC3339),
	}
}

// scanTrack scans a database row into a Track struct.
func scanTrack(row interface{ Scan(...any) error }) (*Track, error) {
	var t Track
	var duration sql.NullInt64
	var mbID, spotifyID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&t.ID, &t.AlbumID, &t.Title, &t.TrackNumber, &duration, &t.Position,
		&mbID, &spotifyID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.DurationMS = int(duration.Int64)
	t.MusicBrainzID = mbID.String
	t.SpotifyID = spotifyID.String
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}
