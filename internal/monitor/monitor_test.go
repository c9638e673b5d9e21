package monitor

import (
	"reflect"
	"strings"
	"testing"

	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

func eventStrings(events []models.AvailabilityEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

func TestDiff_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		old      models.Snapshot
		current  models.Snapshot
		expected []string
	}{
		{
			name:     "cancellation reopens a date",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 0}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 3}},
			expected: []string{"Yampa - 2025-07-10 - 3 permits available"},
		},
		{
			name:     "new section from empty baseline",
			old:      models.Snapshot{},
			current:  models.Snapshot{"Main Salmon": {"2025-07-15": 2}},
			expected: []string{"Main Salmon - 2025-07-15 - 2 permits available (new section)"},
		},
		{
			name:     "new date in known section",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 0}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 0, "2025-07-11": 1}},
			expected: []string{"Yampa - 2025-07-11 - 1 permits available (new listing)"},
		},
		{
			name:     "new date with zero remaining",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 0}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 0, "2025-07-11": 0}},
			expected: nil,
		},
		{
			name:     "steady availability",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 5}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 5}},
			expected: nil,
		},
		{
			name:     "availability decreases",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 5}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 2}},
			expected: nil,
		},
		{
			name:     "availability sells out",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 5}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 0}},
			expected: nil,
		},
		{
			name:     "section disappears",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 0}, "Main Salmon": {"2025-07-15": 0}},
			current:  models.Snapshot{"Yampa": {"2025-07-10": 0}},
			expected: nil,
		},
		{
			name:     "date disappears",
			old:      models.Snapshot{"Yampa": {"2025-07-10": 0, "2025-07-11": 0}},
			current:  models.Snapshot{"Yampa": {"2025-07-11": 0}},
			expected: nil,
		},
		{
			name:    "mixed kinds ordered by section then date",
			old:     models.Snapshot{"Yampa": {"2025-07-10": 0, "2025-07-12": 4}},
			current: models.Snapshot{"Yampa": {"2025-07-12": 4, "2025-07-10": 1, "2025-07-11": 2}, "Gates of Ladore": {"2025-07-03": 1, "2025-07-01": 6, "2025-07-02": 0}},
			expected: []string{
				"Gates of Ladore - 2025-07-01 - 6 permits available (new section)",
				"Gates of Ladore - 2025-07-03 - 1 permits available (new section)",
				"Yampa - 2025-07-10 - 1 permits available",
				"Yampa - 2025-07-11 - 2 permits available (new listing)",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := Diff(tt.old, tt.current)
			got := eventStrings(events)
			if len(got) == 0 && len(tt.expected) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Diff() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestDiff_SelfDiffIsEmpty(t *testing.T) {
	snapshots := []models.Snapshot{
		{},
		{"Yampa": {}},
		{"Yampa": {"2025-07-10": 0, "2025-07-11": 3}},
		{"Yampa": {"2025-07-10": 1}, "Main Salmon": {"2025-07-15": 0, "2025-07-16": 8}},
	}

	for _, s := range snapshots {
		if events := Diff(s, s); len(events) != 0 {
			t.Errorf("Diff(s, s) for %v = %v, expected no events", s, eventStrings(events))
		}
	}
}

func TestDiff_NewSectionEmitsOnePerPositiveDate(t *testing.T) {
	current := models.Snapshot{
		"Middle Fork Salmon": {"2025-07-01": 0, "2025-07-02": 1, "2025-07-03": 0, "2025-07-04": 9},
		"Main Salmon":        {"2025-07-05": 2},
	}

	events := Diff(models.Snapshot{"Yampa": {"2025-07-10": 0}}, current)
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d: %v", len(events), eventStrings(events))
	}
	for _, e := range events {
		if e.Kind != models.NewSection {
			t.Errorf("Expected kind %s, got %s for %v", models.NewSection, e.Kind, e)
		}
		if e.Remaining <= 0 {
			t.Errorf("Expected positive remaining, got %d", e.Remaining)
		}
	}
}

func TestDiff_EventFields(t *testing.T) {
	events := Diff(
		models.Snapshot{"Yampa": {"2025-07-10": 0}},
		models.Snapshot{"Yampa": {"2025-07-10": 5}},
	)

	expected := []models.AvailabilityEvent{
		{Section: "Yampa", Date: "2025-07-10", Remaining: 5, Kind: models.Reopened},
	}
	if !reflect.DeepEqual(events, expected) {
		t.Errorf("Diff() = %+v, expected %+v", events, expected)
	}
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	old := models.Snapshot{"Yampa": {"2025-07-10": 0}}
	current := models.Snapshot{"Yampa": {"2025-07-10": 3}, "Main Salmon": {"2025-07-15": 2}}

	Diff(old, current)

	if !reflect.DeepEqual(old, models.Snapshot{"Yampa": {"2025-07-10": 0}}) {
		t.Errorf("old snapshot mutated: %v", old)
	}
	if len(current) != 2 || current["Yampa"]["2025-07-10"] != 3 {
		t.Errorf("current snapshot mutated: %v", current)
	}
}

func TestRenderTable(t *testing.T) {
	table := RenderTable(models.Snapshot{
		"Yampa":       {"2025-07-10": 3, "2025-07-11": 0},
		"Main Salmon": {"2025-07-11": 2},
	})

	lines := strings.Split(strings.TrimRight(table, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected header + 2 rows, got %d lines:\n%s", len(lines), table)
	}
	if !strings.Contains(lines[0], "Main Salmon") || !strings.Contains(lines[0], "Yampa") {
		t.Errorf("Header missing section names: %q", lines[0])
	}
	if strings.Index(lines[0], "Main Salmon") > strings.Index(lines[0], "Yampa") {
		t.Errorf("Expected sections in name order: %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "2025-07-10") {
		t.Errorf("Expected first row to be 2025-07-10, got %q", lines[1])
	}

	// Main Salmon has no 2025-07-10 entry, which renders as 0.
	fields := strings.Fields(lines[1])
	if len(fields) != 3 || fields[1] != "0" || fields[2] != "3" {
		t.Errorf("Unexpected first row fields %v", fields)
	}
}

func TestRenderTable_Empty(t *testing.T) {
	if got := RenderTable(models.Snapshot{}); !strings.Contains(got, "no availability data") {
		t.Errorf("Unexpected empty table rendering %q", got)
	}
}
