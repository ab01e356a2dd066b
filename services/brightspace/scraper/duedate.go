package scraper

import (
	"notify-backend/lib/timezone"
	"slices"
	"strings"
	"time"
)

// NoDueDate is the display string for assignments without a due date.
// It sorts after every dated assignment.
const NoDueDate = "No Due Date"

// due-date formats observed on dropbox pages, most to least specific
var dueDateLayouts = []string{
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"01/02/2006 3:04 PM",
	"01/02/2006",
	"1/2/2006",
}

// stands in for "no due date" during comparisons, far enough out to
// sort after any real date the portal could render
var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// DueDate parses a displayed due-date string. ok is false for empty
// strings, the no-due-date sentinel and anything unparseable.
func DueDate(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == NoDueDate {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		t, err := time.ParseInLocation(layout, s, timezone.Location)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDueDate turns a displayed due-date string into a comparable
// time. It never fails: dateless and unparseable strings map to the
// same far-future value, so they lose their distinction for ordering
// only, the display string is untouched.
func parseDueDate(s string) time.Time {
	t, ok := DueDate(s)
	if !ok {
		return farFuture
	}
	return t
}

// sortAssignments orders assignments ascending by due date, in place.
// The sort is stable so ties, including every no-due-date entry, keep
// their discovery order.
func sortAssignments(assignments []Assignment) {
	slices.SortStableFunc(assignments, func(a, b Assignment) int {
		return parseDueDate(a.Due).Compare(parseDueDate(b.Due))
	})
}
