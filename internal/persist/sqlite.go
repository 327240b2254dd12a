// Package persist saves and loads snapshots of the in-memory stores to a
// SQLite database between CLI runs.
package persist

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"github.com/joescharf/civic/internal/events"
	"github.com/joescharf/civic/internal/models"
	"github.com/joescharf/civic/internal/requests"
	"github.com/joescharf/civic/internal/store"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Kind names the store a snapshot was taken from.
type Kind string

const (
	KindIssues   Kind = "issues"
	KindEvents   Kind = "events"
	KindRequests Kind = "requests"
)

// SnapshotInfo describes one saved snapshot.
type SnapshotInfo struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	NextID    int64     `json:"next_id"`
	ItemCount int       `json:"item_count"`
	TakenAt   time.Time `json:"taken_at"`
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger saves and loads are reported to.
func WithLogger(l *log.Logger) Option {
	return func(s *SQLiteStore) { s.log = l.WithPrefix("persist") }
}

// SQLiteStore persists snapshots using modernc.org/sqlite (pure Go, no CGO).
// Each save replaces the previous contents for its kind.
type SQLiteStore struct {
	db  *sql.DB
	log *log.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer; a single connection
	// serializes access through the pool.
	db.SetMaxOpenConns(1)

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode=WAL", "enable WAL mode"},
		{"PRAGMA busy_timeout=5000", "set busy timeout"},
		{"PRAGMA foreign_keys=ON", "enable foreign keys"},
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", p.what, err)
		}
	}

	s := &SQLiteStore{db: db, log: log.New(io.Discard)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	// Create migrations tracking table
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	// Sort by filename
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}

		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		s.log.Debug("migration applied", "file", name)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// withTx runs fn in a transaction and records a snapshot row on success.
func (s *SQLiteStore) withTx(ctx context.Context, kind Kind, nextID int64, count int, fn func(*sql.Tx) error) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return "", err
	}

	id := ulid.Make().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, kind, next_id, item_count, taken_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), nextID, count, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("record %s snapshot: %w", kind, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	s.log.Debug("snapshot saved", "kind", kind, "id", id, "items", count)
	return id, nil
}

// LastSnapshot returns the most recent snapshot of kind, or nil if none
// has been saved.
func (s *SQLiteStore) LastSnapshot(ctx context.Context, kind Kind) (*SnapshotInfo, error) {
	info := &SnapshotInfo{}
	var k string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, next_id, item_count, taken_at FROM snapshots WHERE kind = ? ORDER BY id DESC LIMIT 1`,
		string(kind),
	).Scan(&info.ID, &k, &info.NextID, &info.ItemCount, &info.TakenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last %s snapshot: %w", kind, err)
	}
	info.Kind = Kind(k)
	return info, nil
}

// History lists up to limit snapshots of every kind, newest first.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]*SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, next_id, item_count, taken_at FROM snapshots ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*SnapshotInfo
	for rows.Next() {
		info := &SnapshotInfo{}
		var k string
		if err := rows.Scan(&info.ID, &k, &info.NextID, &info.ItemCount, &info.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		info.Kind = Kind(k)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) nextID(ctx context.Context, kind Kind) (int64, error) {
	info, err := s.LastSnapshot(ctx, kind)
	if err != nil || info == nil {
		return 0, err
	}
	return info.NextID, nil
}

// --- Issues ---

// SaveIssues replaces the stored issues and links with snap.
func (s *SQLiteStore) SaveIssues(ctx context.Context, snap store.Snapshot) (string, error) {
	return s.withTx(ctx, KindIssues, snap.NextID, len(snap.Issues), func(tx *sql.Tx) error {
		// Links first (foreign key)
		if _, err := tx.ExecContext(ctx, "DELETE FROM issue_links"); err != nil {
			return fmt.Errorf("clear issue links: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM issues"); err != nil {
			return fmt.Errorf("clear issues: %w", err)
		}

		for pos, issue := range snap.Issues {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO issues (id, position, category, priority, status, location, description, attachment_path, date_reported)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				issue.ID, pos, issue.Category, issue.Priority, string(issue.Status),
				issue.Location, issue.Description, issue.AttachmentPath, issue.DateReported.UTC(),
			)
			if err != nil {
				return fmt.Errorf("save issue %d: %w", issue.ID, err)
			}
		}
		for _, l := range snap.Links {
			if _, err := tx.ExecContext(ctx, "INSERT INTO issue_links (a, b) VALUES (?, ?)", l.A, l.B); err != nil {
				return fmt.Errorf("save issue link %d-%d: %w", l.A, l.B, err)
			}
		}
		return nil
	})
}

// LoadIssues reads the stored issues in queue order. An empty database
// yields an empty snapshot.
func (s *SQLiteStore) LoadIssues(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot
	nextID, err := s.nextID(ctx, KindIssues)
	if err != nil {
		return snap, err
	}
	snap.NextID = nextID

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, priority, status, location, description, attachment_path, date_reported
		FROM issues ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var issue models.Issue
		var status string
		if err := rows.Scan(&issue.ID, &issue.Category, &issue.Priority, &status,
			&issue.Location, &issue.Description, &issue.AttachmentPath, &issue.DateReported); err != nil {
			return snap, fmt.Errorf("scan issue: %w", err)
		}
		issue.Status = models.IssueStatus(status)
		issue.DateReported = issue.DateReported.Local()
		snap.Issues = append(snap.Issues, issue)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	links, err := s.db.QueryContext(ctx, "SELECT a, b FROM issue_links ORDER BY a, b")
	if err != nil {
		return snap, fmt.Errorf("load issue links: %w", err)
	}
	defer func() { _ = links.Close() }()

	for links.Next() {
		var l store.Link
		if err := links.Scan(&l.A, &l.B); err != nil {
			return snap, fmt.Errorf("scan issue link: %w", err)
		}
		snap.Links = append(snap.Links, l)
	}
	return snap, links.Err()
}

// --- Events ---

// SaveEvents replaces the stored calendar and search history with snap.
func (s *SQLiteStore) SaveEvents(ctx context.Context, snap events.Snapshot) (string, error) {
	return s.withTx(ctx, KindEvents, snap.NextID, len(snap.Events), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
			return fmt.Errorf("clear events: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM event_searches"); err != nil {
			return fmt.Errorf("clear event searches: %w", err)
		}

		for pos, e := range snap.Events {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO events (id, position, title, category, description, date) VALUES (?, ?, ?, ?, ?, ?)`,
				e.ID, pos, e.Title, e.Category, e.Description, e.Date.UTC(),
			)
			if err != nil {
				return fmt.Errorf("save event %d: %w", e.ID, err)
			}
		}
		for pos, category := range snap.RecentSearches {
			if _, err := tx.ExecContext(ctx, "INSERT INTO event_searches (position, category) VALUES (?, ?)", pos, category); err != nil {
				return fmt.Errorf("save event search: %w", err)
			}
		}
		return nil
	})
}

// LoadEvents reads the stored calendar.
func (s *SQLiteStore) LoadEvents(ctx context.Context) (events.Snapshot, error) {
	var snap events.Snapshot
	nextID, err := s.nextID(ctx, KindEvents)
	if err != nil {
		return snap, err
	}
	snap.NextID = nextID

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, category, description, date FROM events ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("load events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e models.LocalEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Category, &e.Description, &e.Date); err != nil {
			return snap, fmt.Errorf("scan event: %w", err)
		}
		e.Date = e.Date.Local()
		snap.Events = append(snap.Events, e)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}

	searches, err := s.db.QueryContext(ctx, "SELECT category FROM event_searches ORDER BY position")
	if err != nil {
		return snap, fmt.Errorf("load event searches: %w", err)
	}
	defer func() { _ = searches.Close() }()

	for searches.Next() {
		var category string
		if err := searches.Scan(&category); err != nil {
			return snap, fmt.Errorf("scan event search: %w", err)
		}
		snap.RecentSearches = append(snap.RecentSearches, category)
	}
	return snap, searches.Err()
}

// --- Service requests ---

// SaveRequests replaces the stored service requests with snap.
func (s *SQLiteStore) SaveRequests(ctx context.Context, snap requests.Snapshot) (string, error) {
	return s.withTx(ctx, KindRequests, snap.NextID, len(snap.Requests), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM service_requests"); err != nil {
			return fmt.Errorf("clear service requests: %w", err)
		}
		for _, r := range snap.Requests {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO service_requests (id, title, description, status, priority, progress, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.Title, r.Description, string(r.Status), r.Priority, r.Progress, r.CreatedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("save service request %d: %w", r.ID, err)
			}
		}
		return nil
	})
}

// LoadRequests reads the stored service requests in id order.
func (s *SQLiteStore) LoadRequests(ctx context.Context) (requests.Snapshot, error) {
	var snap requests.Snapshot
	nextID, err := s.nextID(ctx, KindRequests)
	if err != nil {
		return snap, err
	}
	snap.NextID = nextID

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, status, priority, progress, created_at FROM service_requests ORDER BY id`)
	if err != nil {
		return snap, fmt.Errorf("load service requests: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var r models.ServiceRequest
		var status string
		if err := rows.Scan(&r.ID, &r.Title, &r.Description, &status, &r.Priority, &r.Progress, &r.CreatedAt); err != nil {
			return snap, fmt.Errorf("scan service request: %w", err)
		}
		r.Status = models.RequestStatus(status)
		r.CreatedAt = r.CreatedAt.Local()
		snap.Requests = append(snap.Requests, r)
	}
	return snap, rows.Err()
}
