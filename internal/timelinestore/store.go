// Package timelinestore persists emitted timelines in SQLite. The engine
// itself owns no state; persistence is a daemon concern layered on top of it.
package timelinestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kaushik6g/Semantic-Sonifier/internal/config"
	"github.com/kaushik6g/Semantic-Sonifier/internal/timeline"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no timeline exists for a session.
var ErrNotFound = errors.New("timeline not found")

// Record is one stored run.
type Record struct {
	SessionID string
	Segments  int
	Events    int
	Span      float64
	Timeline  []byte
	CreatedAt time.Time
}

// Store wraps the SQLite-backed timeline archive.
type Store struct {
	db    *sql.DB
	cfg   config.StoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config. Retention mode ephemeral
// opens no database; every call becomes a no-op and lookups miss.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("timeline store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("timeline store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS documents (
    session_id TEXT PRIMARY KEY,
    segments INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS timelines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    events INTEGER NOT NULL,
    span_seconds REAL NOT NULL,
    payload BLOB NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(session_id) REFERENCES documents(session_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_timelines_session_created ON timelines(session_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveTimeline records a finished run. Retention mode session keeps only the
// latest timeline per session; persistent keeps the full history.
func (s *Store) SaveTimeline(ctx context.Context, sessionID string, segments int, tl timeline.Timeline) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	payload, err := tl.Marshal()
	if err != nil {
		return err
	}
	now := s.clock().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO documents(session_id, segments, created_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET segments=excluded.segments`,
		sessionID, segments, now); err != nil {
		return err
	}
	if s.cfg.RetentionMode == "session" {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM timelines WHERE session_id = ?`, sessionID); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO timelines(session_id, events, span_seconds, payload, created_at)
		 VALUES(?, ?, ?, ?, ?)`,
		sessionID, tl.Len(), tl.Span(), payload, now); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// LoadTimeline returns the most recent timeline stored for a session.
func (s *Store) LoadTimeline(ctx context.Context, sessionID string) (Record, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return Record{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT t.session_id, d.segments, t.events, t.span_seconds, t.payload, t.created_at
		 FROM timelines t JOIN documents d ON d.session_id = t.session_id
		 WHERE t.session_id = ?
		 ORDER BY t.created_at DESC, t.id DESC LIMIT 1`, sessionID)

	var rec Record
	var created string
	if err := row.Scan(&rec.SessionID, &rec.Segments, &rec.Events, &rec.Span, &rec.Timeline, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
		rec.CreatedAt = ts
	}
	return rec, nil
}

// Prune applies configured retention. Called on startup; safe to call again.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM timelines WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxDocuments > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE session_id IN (
			SELECT session_id FROM documents ORDER BY created_at DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxDocuments); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
