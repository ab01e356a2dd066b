package browser

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/chromedp/chromedp"
)

type Options struct {
	// path to a chrome/chromium binary, discovered from common
	// install locations when empty
	ExecPath string
	Headless bool
}

// Session owns a single browser process with a single tab. Page
// operations are strictly serial, concurrent navigation on the same
// tab would corrupt its state.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Launch starts a browser process and opens one tab. The process is
// tied to the given context, cancelling it is equivalent to Close.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	execPath := opts.ExecPath
	if execPath == "" {
		var err error
		execPath, err = findChromium()
		if err != nil {
			return nil, err
		}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.Flag("headless", opts.Headless),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// an empty run forces the process to start so launch failures
	// surface here instead of on the first navigation
	err := chromedp.Run(tabCtx)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &Session{
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Close tears down the tab and the browser process. Safe to call on
// every exit path, including after a failed Launch context.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelAlloc()
}

func findChromium() (string, error) {
	if custom := os.Getenv("CHROMIUM_PATH"); custom != "" {
		if _, err := os.Stat(custom); err != nil {
			return "", fmt.Errorf("chromium binary not found at %s: %w", custom, err)
		}
		return custom, nil
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		}
	case "linux":
		paths = []string{
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/usr/bin/google-chrome",
			"/snap/bin/chromium",
		}
	case "windows":
		paths = []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no chromium binary found for %s, set CHROMIUM_PATH or browser.exec_path", runtime.GOOS)
}
