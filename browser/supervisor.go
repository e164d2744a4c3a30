// Package browser manages the single long-lived Chromium process and
// mints one isolated render session per request.
package browser

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/distill/config"
	"github.com/use-agent/distill/models"
)

// Supervisor owns the browser process lifecycle: launch with bounded
// retry, liveness reporting, session minting, and shutdown. It is safe
// for concurrent use; sessions share the process but never the
// supervisor's mutable state.
//
// There is no automatic relaunch after a crash. IsLive turning false
// makes every acquisition fail fast until the service is restarted.
type Supervisor struct {
	cfg       config.BrowserConfig
	browser   *rod.Browser
	live      atomic.Bool
	closeOnce sync.Once
}

// Launch starts the browser process, retrying up to cfg.LaunchAttempts
// times with linear backoff (attempt n waits n * cfg.LaunchBackoff).
// Exhausting the attempts returns a BROWSER_LAUNCH_FAILED error; the
// caller must not start serving scrape requests in that case.
func Launch(cfg config.BrowserConfig) (*Supervisor, error) {
	s := &Supervisor{cfg: cfg}

	err := retryLaunch(cfg.LaunchAttempts, cfg.LaunchBackoff, time.Sleep, s.connect)
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserLaunch,
			"failed to launch browser after retries",
			err,
		)
	}

	s.live.Store(true)
	return s, nil
}

// connect performs one launch + connect attempt.
//
// Sandboxing and GPU acceleration are disabled so the process runs
// without elevated privileges in containers; page isolation comes from
// per-request browsing contexts instead of the OS sandbox.
func (s *Supervisor) connect() error {
	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(true)

	if s.cfg.BrowserBin != "" {
		l = l.Bin(s.cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return err
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return err
	}

	slog.Info("browser launched", "controlURL", controlURL, "headless", s.cfg.Headless)
	s.browser = b
	return nil
}

// retryLaunch runs fn up to maxAttempts times. After failed attempt n it
// waits n*baseDelay before the next try. The sleep function is injected
// so tests can observe the backoff schedule.
func retryLaunch(maxAttempts int, baseDelay time.Duration, sleep func(time.Duration), fn func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		slog.Warn("browser launch attempt failed",
			"attempt", attempt, "maxAttempts", maxAttempts, "error", err)
		if attempt < maxAttempts {
			sleep(time.Duration(attempt) * baseDelay)
		}
	}
	return err
}

// IsLive reports whether the browser process is present and still
// answering on the control channel. Used as the health signal and as
// the gate before every session acquisition.
func (s *Supervisor) IsLive() bool {
	if !s.live.Load() || s.browser == nil {
		return false
	}
	_, err := proto.BrowserGetVersion{}.Call(s.browser)
	return err == nil
}

// NewSession creates a fresh isolated render session on the shared
// browser process. It fails fast with SERVICE_UNAVAILABLE when the
// process is not live; it never waits for a relaunch.
func (s *Supervisor) NewSession(opts SessionOptions) (Session, error) {
	if !s.IsLive() {
		return nil, models.NewScrapeError(
			models.ErrCodeUnavailable,
			"browser process is not available",
			nil,
		)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = s.cfg.UserAgent
	}
	sess, err := openSession(s.browser, opts)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Close shuts the browser process down. Idempotent and safe to call on
// a supervisor that never launched.
func (s *Supervisor) Close() {
	s.closeOnce.Do(func() {
		s.live.Store(false)
		if s.browser == nil {
			return
		}
		slog.Info("supervisor shutting down: closing browser")
		if err := s.browser.Close(); err != nil {
			slog.Warn("supervisor: browser close failed", "error", err)
		}
	})
}
