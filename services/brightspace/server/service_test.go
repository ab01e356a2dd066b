package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"notify-backend/lib/testutil"
	"notify-backend/services/brightspace/db"
	"notify-backend/services/brightspace/scraper"
	"notify-backend/services/brightspace/session"
)

type fakeBackend struct {
	result scraper.Result
	err    error
	calls  int
}

func (f *fakeBackend) Scrape(ctx context.Context) (scraper.Result, error) {
	f.calls++
	return f.result, f.err
}

func testService(t *testing.T, backend *fakeBackend) (*Service, http.Handler) {
	res := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "brightspace/server",
		DbSchema: db.Schema,
	})

	sessions := session.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	svc := NewService(backend, sessions, db.NewSnapshotStore(res.DB), time.Minute)
	return svc, svc.Router()
}

func strptr(s string) *string { return &s }

func sampleResult() scraper.Result {
	return scraper.Result{
		User: scraper.User{
			Name:   strptr("Juan Dela Cruz"),
			Avatar: "data:image/png;base64,aGk=",
		},
		Assignments: []scraper.Assignment{
			{Title: "Lab 4", Due: "November 10, 2025", Course: "Data Structures"},
			{Title: "Reflection Paper", Due: "No Due Date", Course: "Philosophy"},
		},
	}
}

func TestScrapeSuccess(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("content-type"))

	var got scraper.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.User.Name)
	require.Equal(t, "Juan Dela Cruz", *got.User.Name)
	require.Len(t, got.Assignments, 2)
	require.Equal(t, "Lab 4", got.Assignments[0].Title)
}

func TestScrapeAnonymousUserShape(t *testing.T) {
	// a profile page that never loaded leaves the name null, not ""
	backend := &fakeBackend{result: scraper.Result{
		Assignments: []scraper.Assignment{},
	}}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	var user map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got["user"], &user))
	require.Equal(t, "null", string(user["name"]))
}

func TestScrapeError(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("login: timed out waiting for portal home")}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Error, "login")
}

func TestScrapeCaching(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Equal(t, 1, backend.calls)

	// ?fresh bypasses the cache
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape?fresh=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, backend.calls)
}

func TestScrapeErrorNotCached(t *testing.T) {
	backend := &fakeBackend{err: fmt.Errorf("discover: no courses")}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	backend.err = nil
	backend.result = sampleResult()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, backend.calls)
}

func TestLogoutWithoutSession(t *testing.T) {
	backend := &fakeBackend{}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/logout", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestLogoutDropsCache(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/logout", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, backend.calls)
}

func TestHistory(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	// empty history is [] not null
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/history?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshots []db.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	require.Equal(t, "Juan Dela Cruz", snapshots[0].User)
	require.Len(t, snapshots[0].Assignments, 2)
}

func TestExportBeforeFirstScrape(t *testing.T) {
	backend := &fakeBackend{}
	_, router := testService(t, backend)

	for _, path := range []string{"/export/calendar.ics", "/export/assignments.csv"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestExportCSV(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/export/assignments.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("content-type"))

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "course,title,due", lines[0])
	require.Contains(t, lines[1], "Lab 4")
}

func TestExportICS(t *testing.T) {
	backend := &fakeBackend{result: sampleResult()}
	_, router := testService(t, backend)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/scrape", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/export/calendar.ics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/calendar", rec.Header().Get("content-type"))

	body := rec.Body.String()
	require.Contains(t, body, "BEGIN:VCALENDAR")
	require.Contains(t, body, "SUMMARY:Lab 4")
	// entries without a parseable due date never become events
	require.NotContains(t, body, "Reflection Paper")
}

func TestBuildCalendarSkipsUndated(t *testing.T) {
	out := BuildCalendar([]scraper.Assignment{
		{Title: "Dated", Due: "November 10, 2025", Course: "A"},
		{Title: "Undated", Due: "No Due Date", Course: "B"},
	})
	require.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	require.Contains(t, out, "SUMMARY:Dated")
}
