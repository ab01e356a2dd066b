package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func doc(t *testing.T, html string) *goquery.Document {
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func row(status, title, due string) string {
	var b strings.Builder
	b.WriteString("<tr>")
	if status != "" {
		b.WriteString(`<td class="d_gt"><a class="d2l-link-inline">` + status + `</a></td>`)
	}
	if title != "" {
		b.WriteString(`<td><div class="dco d2l-foldername">` + title + `</div></td>`)
	}
	if due != "" {
		b.WriteString(`<td><div class="d2l-folderdates-wrapper"><label><strong>` + due + `</strong></label></div></td>`)
	}
	b.WriteString("</tr>")
	return b.String()
}

func dropboxPage(courseName string, rows ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if courseName != "" {
		b.WriteString(`<a class="d2l-navigation-s-link">` + courseName + `</a>`)
	}
	b.WriteString("<table>")
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString("</table></body></html>")
	return b.String()
}

func TestExtractAssignmentsStatusFilter(t *testing.T) {
	page := dropboxPage("Data Structures",
		row("Not Submitted", "Lab 4", "Due on November 10, 2025"),
		row("Submitted", "Lab 3", "Due on November 3, 2025"),
		row("Submitted Late", "Lab 2", "Due on October 27, 2025"),
		row("", "Lab 1", "Due on October 20, 2025"),
		row("not submitted", "Lab 0", "Due on October 13, 2025"),
	)
	assignments := extractAssignments(doc(t, page))

	require.Len(t, assignments, 1)
	require.Equal(t, "Lab 4", assignments[0].Title)
	require.Equal(t, "November 10, 2025", assignments[0].Due)
	require.Equal(t, "Data Structures", assignments[0].Course)
}

func TestExtractAssignmentsDueFallbacks(t *testing.T) {
	page := dropboxPage("Calculus",
		row("Not Submitted", "Problem Set 1", ""),
		row("Not Submitted", "Problem Set 2", "Closes November 1, 2025"),
		row("Not Submitted", "Problem Set 3", "Due on 12/01/2025"),
	)
	assignments := extractAssignments(doc(t, page))

	require.Len(t, assignments, 3)
	// absent due element
	require.Equal(t, NoDueDate, assignments[0].Due)
	// label text without the expected prefix
	require.Equal(t, NoDueDate, assignments[1].Due)
	// prefix stripped, raw date kept
	require.Equal(t, "12/01/2025", assignments[2].Due)
}

func TestExtractAssignmentsSkipsBrokenRows(t *testing.T) {
	page := dropboxPage("Physics",
		row("Not Submitted", "", "Due on November 10, 2025"),
		`<tr><td>completely unrelated row</td></tr>`,
		row("Not Submitted", "Actual Homework", "Due on November 11, 2025"),
	)
	assignments := extractAssignments(doc(t, page))

	require.Len(t, assignments, 1)
	require.Equal(t, "Actual Homework", assignments[0].Title)
}

func TestExtractAssignmentsEmptyCourse(t *testing.T) {
	assignments := extractAssignments(doc(t, dropboxPage("Empty Course")))
	require.Empty(t, assignments)
}

func TestExtractCourseNameDefault(t *testing.T) {
	page := dropboxPage("", row("Not Submitted", "Orphan", ""))
	assignments := extractAssignments(doc(t, page))

	require.Len(t, assignments, 1)
	require.Equal(t, unknownCourse, assignments[0].Course)
}

func TestExtractCourseIds(t *testing.T) {
	page := `<html><body>
		<div class="d2l-course-selector-item" data-org-unit-id="A"></div>
		<div class="d2l-course-selector-item" data-org-unit-id="A"></div>
		<div class="d2l-course-selector-item" data-org-unit-id="B"></div>
		<div class="d2l-course-selector-item"></div>
		<div class="d2l-course-selector-item" data-org-unit-id=""></div>
	</body></html>`
	require.Equal(t, []string{"A", "B"}, extractCourseIds(doc(t, page)))
}

func TestExtractProfile(t *testing.T) {
	page := `<html><body>
		<h2 class="dhdg_1">  Juan Dela Cruz </h2>
		<img id="z_n" src="/d2l/lp/profile/viewprofileimage.d2l?id=1">
	</body></html>`
	d := doc(t, page)

	name := extractProfileName(d)
	require.NotNil(t, name)
	require.Equal(t, "Juan Dela Cruz", *name)
	require.Equal(t, "/d2l/lp/profile/viewprofileimage.d2l?id=1", extractAvatarSrc(d))
}

func TestExtractProfileMissing(t *testing.T) {
	d := doc(t, "<html><body><p>not a profile page</p></body></html>")
	require.Nil(t, extractProfileName(d))
	require.Equal(t, "", extractAvatarSrc(d))
}

func TestExtractAvatarFallbackSelector(t *testing.T) {
	page := `<html><body>
		<img src="/ui/logo.png">
		<img src="/d2l/lp/profile/viewprofileimage.d2l?id=9">
	</body></html>`
	require.Equal(t, "/d2l/lp/profile/viewprofileimage.d2l?id=9", extractAvatarSrc(doc(t, page)))
}
