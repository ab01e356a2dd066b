package session

import (
	"fmt"
	"notify-backend/lib/browser"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// Capture reads the live browser context's cookies and the current
// page's localStorage into a State.
func Capture(sess *browser.Session) (*State, error) {
	cookies, err := sess.Cookies()
	if err != nil {
		return nil, err
	}

	state := &State{}
	for _, c := range cookies {
		state.Cookies = append(state.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}

	err = sess.Evaluate(
		`(() => {
			const out = {};
			for (let i = 0; i < localStorage.length; i++) {
				const key = localStorage.key(i);
				out[key] = localStorage.getItem(key);
			}
			return out;
		})()`,
		&state.Storage,
	)
	if err != nil {
		// cookies alone are enough to resume the session
		state.Storage = nil
	}

	return state, nil
}

// ApplyCookies installs the stored cookies into the browser context.
// Must happen before the first navigation so the portal sees an
// authenticated request from the start.
func ApplyCookies(sess *browser.Session, state *State) error {
	if state == nil || len(state.Cookies) == 0 {
		return nil
	}

	params := make([]*network.CookieParam, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		// a non-positive expiry marks a session cookie
		if c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}

	err := sess.SetCookies(params)
	if err != nil {
		return fmt.Errorf("restore session cookies: %w", err)
	}
	return nil
}

// ApplyStorage writes the stored localStorage entries into the page.
// Only meaningful after a navigation to the portal origin.
func ApplyStorage(sess *browser.Session, state *State) error {
	if state == nil || len(state.Storage) == 0 {
		return nil
	}
	for key, value := range state.Storage {
		err := sess.Evaluate(
			fmt.Sprintf("localStorage.setItem(%q, %q)", key, value),
			nil,
		)
		if err != nil {
			return fmt.Errorf("restore localStorage: %w", err)
		}
	}
	return nil
}
