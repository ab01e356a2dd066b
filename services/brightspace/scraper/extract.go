package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// submission status label of rows worth surfacing, everything else
// ("Submitted", "Submitted Late", ...) is dropped. Exact match, the
// portal is consistent about its casing.
const statusNotSubmitted = "Not Submitted"

const unknownCourse = "Unknown Course"

const duePrefix = "Due on "

func extractProfileName(doc *goquery.Document) *string {
	heading := doc.Find(selProfileName).First()
	if heading.Length() == 0 {
		return nil
	}
	name := strings.TrimSpace(heading.Text())
	if name == "" {
		return nil
	}
	return &name
}

// the avatar lives behind a stable element id on most tenants, with
// the image url pattern as a fallback
func extractAvatarSrc(doc *goquery.Document) string {
	if src := doc.Find("#z_n").AttrOr("src", ""); src != "" {
		return src
	}
	return doc.Find(selProfileImage).AttrOr("src", "")
}

// extractCourseIds reads every course id out of the opened course
// selector, deduplicated and with blank ids dropped, in discovery
// order.
func extractCourseIds(doc *goquery.Document) []string {
	seen := map[string]bool{}
	var ids []string
	doc.Find("div" + selCourseItem).Each(func(_ int, item *goquery.Selection) {
		id := strings.TrimSpace(item.AttrOr("data-org-unit-id", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids
}

func extractCourseName(doc *goquery.Document) string {
	name := strings.TrimSpace(doc.Find("a.d2l-navigation-s-link").First().Text())
	if name == "" {
		return unknownCourse
	}
	return name
}

// extractAssignments pulls the not-submitted rows out of a loaded
// dropbox listing. Rows missing their status or title cells are
// skipped rather than failing the page, and zero rows is a valid
// outcome.
func extractAssignments(doc *goquery.Document) []Assignment {
	course := extractCourseName(doc)

	var out []Assignment
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		status := strings.TrimSpace(row.Find("td.d_gt a.d2l-link-inline").First().Text())
		if status != statusNotSubmitted {
			return
		}

		titleCell := row.Find(".d2l-foldername").First()
		if titleCell.Length() == 0 {
			return
		}
		title := strings.TrimSpace(titleCell.Text())

		out = append(out, Assignment{
			Title:  title,
			Due:    extractDueLabel(row),
			Course: course,
		})
	})
	return out
}

// extractDueLabel reads a row's due-date label. Anything that does
// not carry the expected "Due on <date>" text collapses to the
// no-due-date sentinel, the raw date text is kept for display.
func extractDueLabel(row *goquery.Selection) string {
	label := row.Find(".d2l-folderdates-wrapper label strong").First()
	if label.Length() == 0 {
		return NoDueDate
	}
	text := strings.TrimSpace(label.Text())
	date, ok := strings.CutPrefix(text, duePrefix)
	if !ok {
		return NoDueDate
	}
	return strings.TrimSpace(date)
}

// fetchAvatar downloads the avatar image with the browser session's
// cookies and re-encodes it as an embeddable data uri.
func (r run) fetchAvatar(ctx context.Context, src string) (string, error) {
	link, err := r.scraper.baseUrl.Parse(src)
	if err != nil {
		return "", fmt.Errorf("bad avatar url %q: %w", src, err)
	}

	browserCookies, err := r.sess.Cookies()
	if err != nil {
		return "", err
	}
	cookies := make([]*http.Cookie, 0, len(browserCookies))
	for _, c := range browserCookies {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value})
	}

	res, err := r.scraper.http.R().
		SetContext(ctx).
		SetCookies(cookies).
		Get(link.String())
	if err != nil {
		return "", err
	}
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("avatar fetch returned status %d", res.StatusCode())
	}

	mime := res.Header().Get("content-type")
	if mime == "" {
		mime = "image/png"
	}
	encoded := base64.StdEncoding.EncodeToString(res.Body())
	return fmt.Sprintf("data:%s;base64,%s", mime, encoded), nil
}
