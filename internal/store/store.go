// Package store keeps synthesized audio clips on disk for a limited time.
// Files live in a flat directory; a SQLite index carries their metadata so
// the janitor and the API can find them without scanning the filesystem.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Clip is one stored audio artifact.
type Clip struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is safe for concurrent use; database/sql serializes access.
type Store struct {
	dir       string
	retention time.Duration
	db        *sql.DB
	logger    *log.Logger
}

var filenamePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.wav$`)

// ValidFilename reports whether name looks like a clip the store produced.
// Anything else (paths, traversal, foreign files) is rejected up front.
func ValidFilename(name string) bool {
	return filenamePattern.MatchString(name)
}

// Open creates the clip directory and index if needed.
func Open(dir string, retention time.Duration) (*Store, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create clip directory: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "clips.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open clip index: %w", err)
	}

	s := &Store{
		dir:       dir,
		retention: retention,
		db:        db,
		logger:    log.WithPrefix("store"),
	}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		filename TEXT UNIQUE NOT NULL,
		text TEXT NOT NULL,
		voice TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create clip index: %w", err)
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS clips_created_at ON clips(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create clip index: %w", err)
	}
	return nil
}

// Close closes the index. Files stay on disk for the next process.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the clip directory.
func (s *Store) Dir() string { return s.dir }

// Save writes a WAV clip under a fresh unique name, records it in the
// index and opportunistically purges expired clips.
func (s *Store) Save(ctx context.Context, wav []byte, text, voice string) (Clip, error) {
	clip := Clip{
		ID:        uuid.New().String(),
		Text:      text,
		Voice:     voice,
		Size:      int64(len(wav)),
		CreatedAt: time.Now(),
	}
	clip.Filename = clip.ID + ".wav"

	if err := os.WriteFile(filepath.Join(s.dir, clip.Filename), wav, 0644); err != nil {
		return Clip{}, fmt.Errorf("failed to write clip: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clips (id, filename, text, voice, size, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		clip.ID, clip.Filename, clip.Text, clip.Voice, clip.Size, clip.CreatedAt.Unix())
	if err != nil {
		os.Remove(filepath.Join(s.dir, clip.Filename))
		return Clip{}, fmt.Errorf("failed to index clip: %w", err)
	}

	// Expired clips go away on the next request cycle rather than waiting
	// for the janitor tick.
	if n, err := s.Purge(ctx); err != nil {
		s.logger.Warn("opportunistic purge failed", "error", err)
	} else if n > 0 {
		s.logger.Debug("purged expired clips", "count", n)
	}

	return clip, nil
}

// Get looks a clip up by filename.
func (s *Store) Get(ctx context.Context, filename string) (Clip, error) {
	if !ValidFilename(filename) {
		return Clip{}, fmt.Errorf("invalid clip filename %q", filename)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, filename, text, voice, size, created_at FROM clips WHERE filename = ?`, filename)

	var clip Clip
	var created int64
	if err := row.Scan(&clip.ID, &clip.Filename, &clip.Text, &clip.Voice, &clip.Size, &created); err != nil {
		if err == sql.ErrNoRows {
			return Clip{}, os.ErrNotExist
		}
		return Clip{}, fmt.Errorf("failed to look up clip: %w", err)
	}
	clip.CreatedAt = time.Unix(created, 0)

	if _, err := os.Stat(filepath.Join(s.dir, clip.Filename)); err != nil {
		return Clip{}, os.ErrNotExist
	}
	return clip, nil
}

// Path returns the on-disk location of a clip previously returned by Get.
func (s *Store) Path(clip Clip) string {
	return filepath.Join(s.dir, clip.Filename)
}

// List returns the newest clips, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Clip, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, text, voice, size, created_at FROM clips ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var clip Clip
		var created int64
		if err := rows.Scan(&clip.ID, &clip.Filename, &clip.Text, &clip.Voice, &clip.Size, &created); err != nil {
			return nil, err
		}
		clip.CreatedAt = time.Unix(created, 0)
		clips = append(clips, clip)
	}
	return clips, rows.Err()
}

// Purge removes clips older than the retention window, files first, then
// index rows. Returns the number of clips removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	return s.purgeBefore(ctx, time.Now().Add(-s.retention))
}

// PurgeAll removes every clip regardless of age. created_at has second
// resolution, so the cutoff sits one second in the future to catch clips
// saved within the current second.
func (s *Store) PurgeAll(ctx context.Context) (int, error) {
	return s.purgeBefore(ctx, time.Now().Add(time.Second))
}

func (s *Store) purgeBefore(ctx context.Context, t time.Time) (int, error) {
	cutoff := t.Unix()

	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM clips WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired clips: %w", err)
	}
	var expired []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, err
		}
		expired = append(expired, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range expired {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove expired clip", "file", name, "error", err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE filename = ?`, name); err != nil {
			return removed, fmt.Errorf("failed to drop clip index row: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Janitor purges expired clips on every tick until ctx is done.
func (s *Store) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("janitor running", "interval", interval, "retention", s.retention)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Purge(ctx); err != nil {
				s.logger.Warn("janitor purge failed", "error", err)
			} else if n > 0 {
				s.logger.Info("purged expired clips", "count", n)
			}
		}
	}
}
