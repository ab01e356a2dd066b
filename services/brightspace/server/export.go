package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"notify-backend/lib/timezone"
	"notify-backend/services/brightspace/scraper"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
)

// BuildCalendar renders assignments as an iCalendar feed, one all-day
// event per dated assignment. Entries without a parseable due date
// have no place on a calendar and are left out.
func BuildCalendar(assignments []scraper.Assignment) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	now := timezone.Now()
	for _, a := range assignments {
		due, ok := scraper.DueDate(a.Due)
		if !ok {
			continue
		}
		event := cal.AddEvent(uuid.NewString())
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(due)
		event.SetAllDayEndAt(due.AddDate(0, 0, 1))
		event.SetSummary(a.Title)
		event.SetDescription(fmt.Sprintf("%s (due %s)", a.Course, a.Due))
	}
	return cal.Serialize()
}

func (s *Service) handleExportICS(w http.ResponseWriter, req *http.Request) {
	ctx, span := tracer.Start(req.Context(), "handleExportICS")
	defer span.End()

	assignments, found, err := s.latestResult(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load latest result")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "nothing scraped yet"})
		return
	}

	w.Header().Set("content-type", "text/calendar")
	w.Header().Set("content-disposition", `attachment; filename="assignments.ics"`)
	fmt.Fprint(w, BuildCalendar(assignments))
}

func (s *Service) handleExportCSV(w http.ResponseWriter, req *http.Request) {
	ctx, span := tracer.Start(req.Context(), "handleExportCSV")
	defer span.End()

	assignments, found, err := s.latestResult(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load latest result")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "nothing scraped yet"})
		return
	}

	w.Header().Set("content-type", "text/csv")
	w.Header().Set("content-disposition", `attachment; filename="assignments.csv"`)

	out := csv.NewWriter(w)
	out.Write([]string{"course", "title", "due"})
	for _, a := range assignments {
		out.Write([]string{a.Course, a.Title, a.Due})
	}
	out.Flush()
}
