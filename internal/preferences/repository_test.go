package preferences

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "data", "preferences.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return repo
}

func TestSave_AssignsIDAndPersistsOneRowPerSection(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	p := &models.Preference{
		Email:     "paddler@example.com",
		Sections:  []string{"Yampa", "Gates of Ladore"},
		StartDate: "2025-07-01",
		EndDate:   "2025-07-15",
	}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := uuid.Parse(p.ID); err != nil {
		t.Errorf("Expected uuid id, got %q", p.ID)
	}
	if !p.CreatedAt.Equal(fixed) {
		t.Errorf("Expected CreatedAt %v, got %v", fixed, p.CreatedAt)
	}

	var rows int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM preferences WHERE id = ?`, p.ID).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 2 {
		t.Errorf("Expected 2 rows, got %d", rows)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 preference, got %d", n)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	tests := []struct {
		name string
		pref models.Preference
	}{
		{"bad email", models.Preference{Email: "nope", Sections: []string{"Yampa"}, StartDate: "2025-07-01", EndDate: "2025-07-02"}},
		{"no sections", models.Preference{Email: "a@example.com", StartDate: "2025-07-01", EndDate: "2025-07-02"}},
		{"inverted dates", models.Preference{Email: "a@example.com", Sections: []string{"Yampa"}, StartDate: "2025-07-05", EndDate: "2025-07-02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.pref
			if err := repo.Save(ctx, &p); !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got %v", err)
			}
		})
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected nothing stored, got %d", n)
	}
}

func TestList_RegroupsSections(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	repo.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	first := &models.Preference{Email: "a@example.com", Sections: []string{"Main Salmon", "Middle Fork Salmon"}, StartDate: "2025-07-01", EndDate: "2025-07-31"}
	second := &models.Preference{Email: "b@example.com", Sections: []string{"Yampa"}, StartDate: "2025-07-10", EndDate: "2025-07-12"}
	for _, p := range []*models.Preference{first, second} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 preferences, got %d", len(list))
	}
	if list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("Expected oldest first, got %s then %s", list[0].ID, list[1].ID)
	}
	if len(list[0].Sections) != 2 || list[0].Sections[0] != "Main Salmon" || list[0].Sections[1] != "Middle Fork Salmon" {
		t.Errorf("Unexpected sections %v", list[0].Sections)
	}
	if list[1].Email != "b@example.com" || list[1].StartDate != "2025-07-10" {
		t.Errorf("Unexpected second preference %+v", list[1])
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	repo := openTestRepo(t)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Errorf("Second Migrate failed: %v", err)
	}
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.db")
	ctx := context.Background()

	repo, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := repo.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	p := &models.Preference{Email: "a@example.com", Sections: []string{"Yampa"}, StartDate: "2025-07-01", EndDate: "2025-07-02"}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 preference after reopen, got %d", n)
	}
}
