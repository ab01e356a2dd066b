package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"notify-backend/lib/timezone"
	"notify-backend/services/brightspace/db"
	"notify-backend/services/brightspace/scraper"
	"notify-backend/services/brightspace/session"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("brightspace/server")

// Backend runs one end-to-end scrape. Implemented by
// [scraper.Scraper].
type Backend interface {
	Scrape(ctx context.Context) (scraper.Result, error)
}

type Service struct {
	backend   Backend
	sessions  *session.FileStore
	snapshots db.SnapshotStore
	// last successful result, absorbs the UI double-firing its
	// refresh without rerunning a 30s browser walk
	cache *expirable.LRU[string, scraper.Result]
	// a browser session is inherently serial, concurrent scrapes
	// would race both the tab and the session file
	scrapeMu sync.Mutex
}

const cacheKey = "latest"

func NewService(backend Backend, sessions *session.FileStore, snapshots db.SnapshotStore, cacheTTL time.Duration) *Service {
	return &Service{
		backend:   backend,
		sessions:  sessions,
		snapshots: snapshots,
		cache:     expirable.NewLRU[string, scraper.Result](1, nil, cacheTTL),
	}
}

// Router returns the http handler consumed by the desktop shell. CORS
// is wide open, the only client is the local renderer process.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Post("/scrape", s.handleScrape)
	r.Post("/logout", s.handleLogout)
	r.Get("/history", s.handleHistory)
	r.Get("/export/calendar.ics", s.handleExportICS)
	r.Get("/export/assignments.csv", s.handleExportCSV)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleScrape(w http.ResponseWriter, req *http.Request) {
	ctx, span := tracer.Start(req.Context(), "handleScrape")
	defer span.End()

	fresh := req.URL.Query().Get("fresh") != ""
	if !fresh {
		if cached, hit := s.cache.Get(cacheKey); hit {
			span.SetStatus(codes.Ok, "CACHE HIT")
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	s.scrapeMu.Lock()
	defer s.scrapeMu.Unlock()

	result, err := s.backend.Scrape(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scrape failed")
		slog.ErrorContext(ctx, "scrape failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.cache.Add(cacheKey, result)

	_, err = s.snapshots.Push(ctx, timezone.Now(), result)
	if err != nil {
		// history is a convenience, its loss should not fail a
		// scrape the user already waited for
		slog.WarnContext(ctx, "failed to record scrape snapshot", "err", err)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleLogout(w http.ResponseWriter, req *http.Request) {
	ctx, span := tracer.Start(req.Context(), "handleLogout")
	defer span.End()

	err := s.sessions.Clear()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to clear session")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.cache.Remove(cacheKey)

	slog.InfoContext(ctx, "session cleared")
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Service) handleHistory(w http.ResponseWriter, req *http.Request) {
	ctx, span := tracer.Start(req.Context(), "handleHistory")
	defer span.End()

	limit := 10
	if q := req.URL.Query().Get("limit"); q != "" {
		parsed, err := strconv.Atoi(q)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	snapshots, err := s.snapshots.History(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read history")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if snapshots == nil {
		snapshots = []db.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// latestResult finds the assignments to export: the cached result if
// it is still warm, otherwise the newest recorded snapshot.
func (s *Service) latestResult(ctx context.Context) ([]scraper.Assignment, bool, error) {
	if cached, hit := s.cache.Get(cacheKey); hit {
		return cached.Assignments, true, nil
	}
	snapshots, err := s.snapshots.History(ctx, 1)
	if err != nil {
		return nil, false, err
	}
	if len(snapshots) == 0 {
		return nil, false, nil
	}
	return snapshots[0].Assignments, true, nil
}
