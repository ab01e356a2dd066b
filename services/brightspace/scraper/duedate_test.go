package scraper

import (
	"notify-backend/lib/timezone"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDueDateSentinels(t *testing.T) {
	for _, s := range []string{"", "   ", NoDueDate, "yesterday-ish", "13/45/2025", "Due on"} {
		require.Equal(t, farFuture, parseDueDate(s), "input %q", s)
	}
}

func TestParseDueDateFormats(t *testing.T) {
	{
		parsed := parseDueDate("November 10, 2025")
		require.Equal(t, time.Date(2025, time.November, 10, 0, 0, 0, 0, timezone.Location), parsed)
	}
	{
		parsed := parseDueDate("Nov 10, 2025 11:59 PM")
		require.Equal(t, time.Date(2025, time.November, 10, 23, 59, 0, 0, timezone.Location), parsed)
	}
	{
		// prefix-stripped numeric form straight off a dropbox row
		parsed := parseDueDate("12/01/2025")
		require.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, timezone.Location), parsed)
	}
}

func TestDueDateReportsPresence(t *testing.T) {
	_, ok := DueDate(NoDueDate)
	require.False(t, ok)

	_, ok = DueDate("total garbage")
	require.False(t, ok)

	parsed, ok := DueDate("January 5, 2026")
	require.True(t, ok)
	require.Equal(t, 2026, parsed.Year())
}

func TestSortAssignments(t *testing.T) {
	assignments := []Assignment{
		{Title: "no date a", Due: NoDueDate, Course: "c2"},
		{Title: "late", Due: "December 1, 2025", Course: "c1"},
		{Title: "no date b", Due: NoDueDate, Course: "c3"},
		{Title: "early", Due: "November 10, 2025", Course: "c1"},
		{Title: "unparseable", Due: "???", Course: "c1"},
	}
	sortAssignments(assignments)

	require.Equal(t, "early", assignments[0].Title)
	require.Equal(t, "late", assignments[1].Title)
	// everything without a comparable date sorts last, keeping its
	// discovery order
	require.Equal(t, "no date a", assignments[2].Title)
	require.Equal(t, "no date b", assignments[3].Title)
	require.Equal(t, "unparseable", assignments[4].Title)
}

func TestSortAssignmentsNonDecreasing(t *testing.T) {
	assignments := []Assignment{
		{Due: "03/01/2026"},
		{Due: NoDueDate},
		{Due: "January 2, 2026"},
		{Due: "Nov 30, 2025 11:59 PM"},
		{Due: ""},
		{Due: "November 10, 2025"},
	}
	sortAssignments(assignments)

	for i := 1; i < len(assignments); i++ {
		prev := parseDueDate(assignments[i-1].Due)
		curr := parseDueDate(assignments[i].Due)
		require.LessOrEqual(t, prev.Unix(), curr.Unix())
	}
}
