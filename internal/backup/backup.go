// Package backup takes and prunes point-in-time snapshots of the catalog
// database using SQLite's VACUUM INTO.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// filePattern matches snapshot filenames: cantata-YYYYMMDD-HHMMSS.db
var filePattern = regexp.MustCompile(`^cantata-\d{8}-\d{6}\.db$`)

// Info describes one snapshot file.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes catalog snapshots to a directory and prunes old ones.
type Service struct {
	db        *sql.DB
	dir       string
	retention int
	logger    *slog.Logger
}

func New(db *sql.DB, dir string, retention int, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		dir:       dir,
		retention: retention,
		logger:    logger.With(slog.String("component", "backup")),
	}
}

// Snapshot writes a consistent copy of the database via VACUUM INTO.
func (s *Service) Snapshot(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("cantata-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, filename)

	s.logger.Info("starting backup", slog.String("dest", dest))

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat backup file: %w", err)
	}

	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))

	return &Info{Filename: filename, Size: info.Size(), CreatedAt: now}, nil
}

// List returns all snapshots sorted newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !filePattern.MatchString(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}

		name := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "cantata-"), ".db")
		ts, err := time.Parse("20060102-150405", name)
		if err != nil {
			ts = fi.ModTime()
		}

		backups = append(backups, Info{
			Filename:  entry.Name(),
			Size:      fi.Size(),
			CreatedAt: ts,
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Prune deletes snapshots beyond the retention count, oldest first.
func (s *Service) Prune() error {
	backups, err := s.List()
	if err != nil {
		return err
	}
	if len(backups) <= s.retention {
		return nil
	}

	for _, b := range backups[s.retention:] {
		path := filepath.Join(s.dir, b.Filename)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove old backup",
				slog.String("filename", b.Filename),
				slog.Any("error", err))
			continue
		}
		s.logger.Info("pruned old backup", slog.String("filename", b.Filename))
	}
	return nil
}

// StartScheduler snapshots and prunes on a fixed interval until the
// context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started",
		slog.String("interval", interval.String()),
		slog.Int("retention", s.retention))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Snapshot(ctx); err != nil {
				s.logger.Error("scheduled backup failed", slog.Any("error", err))
				continue
			}
			if err := s.Prune(); err != nil {
				s.logger.Error("backup prune failed", slog.Any("error", err))
			}
		}
	}
}
