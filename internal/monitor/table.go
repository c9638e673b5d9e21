package monitor

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

// RenderTable formats a snapshot with one row per date and one column per
// section. Dates missing from a section render as 0.
func RenderTable(snapshot models.Snapshot) string {
	sections := snapshot.Sections()
	if len(sections) == 0 {
		return "(no availability data)\n"
	}

	dateSet := make(map[string]struct{})
	for _, dates := range snapshot {
		for date := range dates {
			dateSet[date] = struct{}{}
		}
	}
	allDates := make([]string, 0, len(dateSet))
	for date := range dateSet {
		allDates = append(allDates, date)
	}
	sort.Strings(allDates)

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "date\t%s\t\n", strings.Join(sections, "\t"))
	for _, date := range allDates {
		row := make([]string, len(sections))
		for i, section := range sections {
			row[i] = fmt.Sprintf("%d", snapshot[section][date])
		}
		fmt.Fprintf(w, "%s\t%s\t\n", date, strings.Join(row, "\t"))
	}
	_ = w.Flush()

	return b.String()
}
