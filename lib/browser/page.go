package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const defaultOpTimeout = time.Second * 15

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return chromedp.Run(ctx, actions...)
}

// Navigate loads a url and returns once the DOM is ready. It does not
// wait for client-side requests, use NavigateIdle for pages that
// render through them.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	err := s.run(timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element.
func (s *Session) WaitVisible(sel string, timeout time.Duration) error {
	err := s.run(timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
	if err != nil {
		return fmt.Errorf("wait for %q: %w", sel, err)
	}
	return nil
}

// Click waits for the selector to become visible and clicks it.
func (s *Session) Click(sel string, timeout time.Duration) error {
	err := s.run(timeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
	if err != nil {
		return fmt.Errorf("click %q: %w", sel, err)
	}
	return nil
}

// Location returns the tab's current resolved url.
func (s *Session) Location() (string, error) {
	var loc string
	err := s.run(defaultOpTimeout, chromedp.Location(&loc))
	if err != nil {
		return "", err
	}
	return loc, nil
}

// WaitLocation blocks until the tab's url satisfies match. The url is
// sampled rather than watched through page events because the
// interesting transitions here cross full navigations (login
// redirects), which destroy any in-page observer.
func (s *Session) WaitLocation(match func(string) bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(time.Millisecond * 250)
	defer ticker.Stop()

	for {
		loc, err := s.Location()
		if err == nil && match(loc) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait for location change: %w", context.DeadlineExceeded)
		}
		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

// HTML returns the document's outer html for out-of-page extraction.
func (s *Session) HTML() (string, error) {
	var html string
	err := s.run(defaultOpTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("read document html: %w", err)
	}
	return html, nil
}

// Evaluate runs a javascript expression in the page and unmarshals
// its result into out. Pass nil to discard the result.
func (s *Session) Evaluate(js string, out any) error {
	if out == nil {
		return s.run(defaultOpTimeout, chromedp.Evaluate(js, nil))
	}
	return s.run(defaultOpTimeout, chromedp.Evaluate(js, out))
}

// Cookies returns every cookie in the browser's cookie store, not
// just the ones scoped to the current page.
func (s *Session) Cookies() ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(defaultOpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return cookies, nil
}

// SetCookies installs cookies into the browser's cookie store.
func (s *Session) SetCookies(cookies []*network.CookieParam) error {
	err := s.run(defaultOpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}
