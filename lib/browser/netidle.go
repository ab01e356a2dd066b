package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// how long the network has to stay quiet before a page counts as idle
const idleQuietWindow = time.Millisecond * 500

// NavigateIdle loads a url and returns once no requests have been in
// flight for a quiet window. Needed for pages that render their
// content through client-side requests after the initial document.
func (s *Session) NavigateIdle(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	inflight := make(map[network.RequestID]struct{})
	idle := make(chan struct{}, 1)
	var quiet *time.Timer

	// must hold mu
	rearm := func() {
		if quiet != nil {
			quiet.Stop()
			quiet = nil
		}
		if len(inflight) == 0 {
			quiet = time.AfterFunc(idleQuietWindow, func() {
				select {
				case idle <- struct{}{}:
				default:
				}
			})
		}
	}

	// the listener detaches when ctx is cancelled
	chromedp.ListenTarget(ctx, func(ev any) {
		mu.Lock()
		defer mu.Unlock()
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			// websockets and event streams stay open indefinitely
			// and would keep the page from ever going idle
			if e.Type == network.ResourceTypeWebSocket || e.Type == network.ResourceTypeEventSource {
				return
			}
			inflight[e.RequestID] = struct{}{}
		case *network.EventLoadingFinished:
			delete(inflight, e.RequestID)
		case *network.EventLoadingFailed:
			delete(inflight, e.RequestID)
		default:
			return
		}
		rearm()
	})

	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.Navigate(url),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	// arm the quiet timer in case the page made no requests at all
	mu.Lock()
	rearm()
	mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for network idle on %s: %w", url, ctx.Err())
	}
}
