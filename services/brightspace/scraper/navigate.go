package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"notify-backend/lib/browser"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// the portal's markup is unversioned, these selectors are the whole
// contract and any of them can rot when the vendor ships a redesign
const (
	selUserMenuButton = `button[aria-label*="avatar"]`
	selUserMenuList   = `ul.d2l-personal-tools-list`
	selProfileName    = `h2.dhdg_1`
	selProfileImage   = `img[src*="viewprofileimage"]`
	selCoursePicker   = `button[aria-label="Select a course..."]`
	selCourseItem     = `.d2l-course-selector-item`
	selDropboxFolder  = `.dco.d2l-foldername`
)

const (
	homePath  = "/d2l/home"
	loginPath = "login.d2l"
)

const (
	// generous, a human has to type a password and maybe an MFA code
	loginTimeout = time.Minute * 2
	navTimeout   = time.Second * 30
	stepTimeout  = time.Second * 10
)

// run is the state of one scrape walk over the portal.
type run struct {
	scraper *Scraper
	sess    *browser.Session
}

func (r run) url(path string) string {
	u := *r.scraper.baseUrl
	u.Path = path
	return u.String()
}

// gotoHome navigates to the portal home and waits for network
// idleness, since the homepage renders through client-side requests.
// When the portal bounces us to its login page instead, it blocks
// until a human completes the login out-of-band or the timeout
// expires. Reports whether a login challenge happened.
func (r run) gotoHome(ctx context.Context) (challenged bool, err error) {
	ctx, span := tracer.Start(ctx, "gotoHome")
	defer span.End()

	err = r.sess.NavigateIdle(r.url(homePath), navTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "home navigation failed")
		return false, err
	}

	loc, err := r.sess.Location()
	if err != nil {
		return false, err
	}
	if !strings.Contains(loc, loginPath) {
		return false, nil
	}

	slog.InfoContext(ctx, "login required, waiting for manual authentication", "timeout", loginTimeout)
	span.AddEvent("login challenge")

	err = r.sess.WaitLocation(func(loc string) bool {
		return strings.Contains(loc, homePath)
	}, loginTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login was not completed in time")
		return true, fmt.Errorf("login was not completed within %s: %w", loginTimeout, err)
	}
	return true, nil
}

// document parses the current page into a goquery document.
func (r run) document() (*goquery.Document, error) {
	html, err := r.sess.HTML()
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// profileIdentity walks the account menu to the profile page and
// extracts the user's name and avatar. Identity is best-effort, any
// failure here degrades to an anonymous user instead of killing the
// scrape.
func (r run) profileIdentity(ctx context.Context) User {
	ctx, span := tracer.Start(ctx, "profileIdentity")
	defer span.End()

	user, err := r.tryProfile(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile step degraded")
		slog.WarnContext(ctx, "profile step failed, continuing without identity", "err", err)
		return User{}
	}
	return user
}

func (r run) tryProfile(ctx context.Context) (User, error) {
	err := r.sess.Click(selUserMenuButton, stepTimeout)
	if err != nil {
		return User{}, err
	}
	err = r.sess.WaitVisible(selUserMenuList, stepTimeout)
	if err != nil {
		return User{}, err
	}

	// the menu's entry order varies per tenant so the link has to be
	// found by its visible text
	var href string
	err = r.sess.Evaluate(fmt.Sprintf(`(() => {
		const links = Array.from(document.querySelectorAll('%s a'));
		const profile = links.find(a => a.innerText.trim() === 'Profile');
		return profile ? profile.getAttribute('href') : '';
	})()`, selUserMenuList), &href)
	if err != nil {
		return User{}, err
	}
	if href == "" {
		return User{}, fmt.Errorf("no profile link in the account menu")
	}

	link, err := r.scraper.baseUrl.Parse(href)
	if err != nil {
		return User{}, fmt.Errorf("bad profile link %q: %w", href, err)
	}
	err = r.sess.Navigate(link.String(), navTimeout)
	if err != nil {
		return User{}, err
	}
	err = r.sess.WaitVisible(selProfileName, stepTimeout)
	if err != nil {
		return User{}, err
	}
	// give the profile image a moment to render, but it is optional
	err = r.sess.WaitVisible(selProfileImage, time.Second*5)
	if err != nil {
		slog.DebugContext(ctx, "profile image did not render", "err", err)
	}

	doc, err := r.document()
	if err != nil {
		return User{}, err
	}

	user := User{}
	user.Name = extractProfileName(doc)

	if src := extractAvatarSrc(doc); src != "" {
		avatar, err := r.fetchAvatar(ctx, src)
		if err != nil {
			slog.WarnContext(ctx, "failed to fetch avatar", "src", src, "err", err)
		} else {
			user.Avatar = avatar
		}
	}
	return user, nil
}

// discoverCourses opens the course selector widget and reads every
// course id out of it. An unusable picker is fatal, without course
// ids there is nothing to scrape.
func (r run) discoverCourses(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "discoverCourses")
	defer span.End()

	err := r.sess.Click(selCoursePicker, stepTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course picker did not open")
		return nil, err
	}
	err = r.sess.WaitVisible(selCourseItem, stepTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no course items rendered")
		return nil, err
	}

	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	ids := extractCourseIds(doc)
	slog.DebugContext(ctx, "discovered courses", "ids", ids)
	return ids, nil
}

// scrapeCourse visits one course's dropbox listing and extracts its
// not-submitted rows. The listing is server-rendered, DOM-ready is
// the only load signal needed.
func (r run) scrapeCourse(ctx context.Context, courseId string) ([]Assignment, error) {
	ctx, span := tracer.Start(ctx, "scrapeCourse")
	defer span.End()

	link := r.url("/d2l/lms/dropbox/user/folders_list.d2l")
	link += "?ou=" + courseId

	err := r.sess.Navigate(link, navTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dropbox navigation failed")
		return nil, err
	}

	// no folder names within the timeout means either an empty
	// course or a broken page, both read as zero assignments
	err = r.sess.WaitVisible(selDropboxFolder, stepTimeout)
	if err != nil {
		slog.DebugContext(ctx, "no dropbox folders rendered", "course_id", courseId)
		return nil, nil
	}

	doc, err := r.document()
	if err != nil {
		return nil, err
	}
	return extractAssignments(doc), nil
}
