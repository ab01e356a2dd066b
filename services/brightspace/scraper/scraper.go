package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"notify-backend/lib/browser"
	"notify-backend/lib/restyutil"
	"notify-backend/services/brightspace/session"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("brightspace/scraper")

// User is the identity scraped from the profile page. Name is nil
// when the profile step degraded, Avatar is a data uri or empty.
type User struct {
	Name   *string `json:"name"`
	Avatar string  `json:"avatar"`
}

type Assignment struct {
	Title  string `json:"title"`
	Due    string `json:"due"`
	Course string `json:"course"`
}

type Result struct {
	User        User         `json:"user"`
	Assignments []Assignment `json:"assignments"`
}

// Error wraps the first unrecoverable failure of a scrape with the
// step it happened in.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("scrape failed at %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Options struct {
	// e.g. https://bigsky.benilde.edu.ph
	BaseUrl string
	// optional explicit path to a chromium binary
	ExecPath string
	Store    *session.FileStore
}

type Scraper struct {
	baseUrl  *url.URL
	execPath string
	store    *session.FileStore
	http     *resty.Client
}

func New(opts Options) (*Scraper, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, fmt.Errorf("parse portal base url: %w", err)
	}

	client := resty.New()
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetTimeout(time.Second * 30)
	restyutil.InstrumentClient(client, tracer)

	return &Scraper{
		baseUrl:  baseUrl,
		execPath: opts.ExecPath,
		store:    opts.Store,
		http:     client,
	}, nil
}

// Scrape runs one end-to-end scrape: restore session, drive the
// portal, extract, sort, persist the refreshed session. The browser
// is closed on every exit path.
func (s *Scraper) Scrape(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	state, err := s.store.Restore()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to restore session state")
		return Result{}, &Error{Step: "restore session", Err: err}
	}
	span.SetAttributes(attribute.Bool("session_restored", state != nil))

	// a stored session is replayed headless, a missing one needs a
	// visible window for the interactive login
	sess, err := browser.Launch(ctx, browser.Options{
		ExecPath: s.execPath,
		Headless: state != nil,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to launch browser")
		return Result{}, &Error{Step: "launch browser", Err: err}
	}
	defer sess.Close()

	if err := session.ApplyCookies(sess, state); err != nil {
		// proceed without the cookies, the login challenge path
		// will pick it up
		slog.WarnContext(ctx, "failed to restore session cookies", "err", err)
		state = nil
	}

	r := run{scraper: s, sess: sess}

	challenged, err := r.gotoHome(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to authenticate")
		return Result{}, &Error{Step: "login", Err: err}
	}
	if !challenged {
		err = session.ApplyStorage(sess, state)
		if err != nil {
			slog.WarnContext(ctx, "failed to restore localStorage", "err", err)
		}
	}

	user := r.profileIdentity(ctx)

	// the profile step navigated away, the course picker lives on
	// the home page
	_, err = r.gotoHome(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to return to home")
		return Result{}, &Error{Step: "return to home", Err: err}
	}

	courseIds, err := r.discoverCourses(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to discover courses")
		return Result{}, &Error{Step: "course discovery", Err: err}
	}
	span.SetAttributes(attribute.Int("courses", len(courseIds)))

	var assignments []Assignment
	for _, id := range courseIds {
		rows, err := r.scrapeCourse(ctx, id)
		if err != nil {
			// one broken dropbox page should not cost the rest of
			// the result
			slog.WarnContext(ctx, "skipping course", "course_id", id, "err", err)
			span.AddEvent("skipped course", trace.WithAttributes(
				attribute.String("course_id", id),
			))
			continue
		}
		assignments = append(assignments, rows...)
	}

	sortAssignments(assignments)
	span.SetAttributes(attribute.Int("assignments", len(assignments)))

	// the portal rotates its cookies during the walk, persist the
	// refreshed state so the next scrape can stay headless
	newState, err := session.Capture(sess)
	if err == nil {
		err = s.store.Persist(newState)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to persist session state", "err", err)
	}

	return Result{User: user, Assignments: assignments}, nil
}
