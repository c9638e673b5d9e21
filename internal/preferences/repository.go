// Package preferences stores notification preferences submitted to the intake
// service in SQLite.
//
// A preference covering several sections is stored as one row per section,
// all sharing the preference id.
package preferences

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

// ErrInvalid is returned when a preference fails validation.
var ErrInvalid = errors.New("invalid preference")

const schema = `
CREATE TABLE IF NOT EXISTS preferences (
	id         TEXT NOT NULL,
	email      TEXT NOT NULL,
	section    TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (id, section)
);
CREATE INDEX IF NOT EXISTS idx_preferences_email ON preferences (email);
`

// Repository persists preferences.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Repository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; a single connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Migrate creates the schema if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate preferences schema: %w", err)
	}
	return nil
}

// Save validates p, assigns its id and creation time, and stores it.
func (r *Repository) Save(ctx context.Context, p *models.Preference) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO preferences (id, email, section, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id, section) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := p.CreatedAt.Format(time.RFC3339Nano)
	for _, section := range p.Sections {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Email, section, p.StartDate, p.EndDate, createdAt); err != nil {
			return fmt.Errorf("failed to insert preference %s for %q: %w", p.ID, section, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit preference %s: %w", p.ID, err)
	}
	return nil
}

// Count returns the number of stored preferences.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT id) FROM preferences`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count preferences: %w", err)
	}
	return n, nil
}

// List returns every stored preference, oldest first, with its sections
// regrouped in insertion order.
func (r *Repository) List(ctx context.Context) ([]models.Preference, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, section, start_date, end_date, created_at
		FROM preferences
		ORDER BY created_at, id, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Preference)
	var order []string
	for rows.Next() {
		var id, email, section, start, end, createdAt string
		if err := rows.Scan(&id, &email, &section, &start, &end, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}

		p, ok := byID[id]
		if !ok {
			created, err := time.Parse(time.RFC3339Nano, createdAt)
			if err != nil {
				return nil, fmt.Errorf("invalid created_at for preference %s: %w", id, err)
			}
			p = &models.Preference{ID: id, Email: email, StartDate: start, EndDate: end, CreatedAt: created}
			byID[id] = p
			order = append(order, id)
		}
		p.Sections = append(p.Sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate preferences: %w", err)
	}

	result := make([]models.Preference, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
