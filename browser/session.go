package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/distill/models"
)

// Session is one isolated browsing context plus one page, bound to a
// single request. It performs exactly one navigation and is closed
// before the request returns, on every exit path.
type Session interface {
	// Navigate loads target, waits until the DOM is parsed (not until
	// network activity settles), and returns the rendered HTML. The
	// deadline comes from ctx; exceeding it yields SCRAPE_TIMEOUT,
	// engine-level navigation failures yield NAVIGATION_FAILED.
	Navigate(ctx context.Context, target string) (string, error)

	// Close releases the page and its browsing context, best-effort.
	// Safe to call more than once.
	Close() error
}

// SessionOptions configure one render session.
type SessionOptions struct {
	// UserAgent overrides the supervisor's default identifying UA.
	UserAgent string

	// Stealth injects anti-bot-detection JS before navigation.
	Stealth bool

	// Headers are extra HTTP headers sent with every request the
	// session makes.
	Headers map[string]string

	// BlockedResourceTypes lists sub-resource types to abort during
	// navigation ("Image", "Stylesheet", "Font", "Media"). Empty
	// disables resource filtering.
	BlockedResourceTypes []string

	// BlockAds additionally aborts requests to known ad/tracking domains.
	BlockAds bool
}

type session struct {
	browser *rod.Browser // incognito handle, owns the browsing context
	page    *rod.Page
	router  *rod.HijackRouter
	closed  atomic.Bool
}

// openSession creates the incognito context and page and applies the
// per-session configuration. Everything installed here (stealth,
// headers, hijack) must be in place before the first navigation.
func openSession(b *rod.Browser, opts SessionOptions) (*session, error) {
	inc, err := b.Incognito()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeUnavailable,
			"failed to create browsing context",
			err,
		)
	}

	page, err := inc.Page(proto.TargetCreateTarget{})
	if err != nil {
		disposeContext(inc)
		return nil, models.NewScrapeError(
			models.ErrCodeUnavailable,
			"failed to create page",
			err,
		)
	}

	s := &session{browser: inc, page: page}

	// Fixed desktop viewport, no touch emulation.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1280,
		Height:            800,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		slog.Warn("session: failed to set viewport", "error", err)
	}
	if err := (proto.EmulationSetTouchEmulationEnabled{Enabled: false}).Call(page); err != nil {
		slog.Warn("session: failed to disable touch emulation", "error", err)
	}

	if opts.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: opts.UserAgent,
		}); err != nil {
			slog.Warn("session: failed to set user agent", "error", err)
		}
	}

	// Tolerate misconfigured certificates; many scrape targets have them.
	if err := (proto.SecuritySetIgnoreCertificateErrors{Ignore: true}).Call(page); err != nil {
		slog.Warn("session: failed to relax certificate checks", "error", err)
	}

	// Downloads have no place in a rendering oracle.
	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:         proto.BrowserSetDownloadBehaviorBehaviorDeny,
		BrowserContextID: inc.BrowserContextID,
	}).Call(inc); err != nil {
		slog.Warn("session: failed to deny downloads", "error", err)
	}

	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("session: stealth injection failed, proceeding without it",
				"error", err)
		}
	}

	if len(opts.Headers) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(opts.Headers),
		}).Call(page); err != nil {
			slog.Warn("session: failed to set extra headers", "error", err)
		}
	}

	// Must be mounted before Navigate or the filter misses the
	// navigation's own sub-resources.
	s.router = setupHijack(page, opts.BlockedResourceTypes, opts.BlockAds)

	return s, nil
}

func (s *session) Navigate(ctx context.Context, target string) (string, error) {
	p := s.page.Context(ctx)

	// The listener must exist before Navigate fires the event.
	waitDOM := p.WaitEvent(&proto.PageDomContentEventFired{})

	if err := p.Navigate(target); err != nil {
		return "", tagNavError(err, "navigation to target URL failed")
	}

	waitDOM()
	if err := ctx.Err(); err != nil {
		return "", tagNavError(err, "page did not reach DOM-parsed state in time")
	}

	html, err := p.HTML()
	if err != nil {
		return "", tagNavError(err, "failed to read rendered HTML")
	}
	return html, nil
}

// Close releases the page, then the browsing context. A failure on one
// resource is logged and does not prevent releasing the other.
func (s *session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			slog.Warn("session: failed to stop hijack router", "error", err)
			errs = append(errs, err)
		}
	}
	if err := s.page.Close(); err != nil {
		slog.Warn("session: failed to close page", "error", err)
		errs = append(errs, err)
	}
	if err := disposeContext(s.browser); err != nil {
		slog.Warn("session: failed to dispose browsing context", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func disposeContext(inc *rod.Browser) error {
	if inc.BrowserContextID == "" {
		return nil
	}
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: inc.BrowserContextID,
	}.Call(inc)
}

// tagNavError classifies a navigation failure at the point it occurs:
// deadline/cancel → timeout, anything the engine reports (DNS failure,
// refused connection, protocol error) → network.
func tagNavError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
