// Package scrape drives one request end to end: URL validation, session
// acquisition, navigation, extraction, and guaranteed cleanup.
package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/distill/browser"
	"github.com/use-agent/distill/config"
	"github.com/use-agent/distill/extract"
	"github.com/use-agent/distill/models"
	"github.com/use-agent/distill/safeurl"
)

// SessionProvider is the slice of the browser supervisor the
// orchestrator needs. *browser.Supervisor satisfies it.
type SessionProvider interface {
	IsLive() bool
	NewSession(opts browser.SessionOptions) (browser.Session, error)
}

// Orchestrator coordinates the per-request pipeline. All failures are
// returned as typed *models.ScrapeError values; nothing escapes to
// crash the service for a single bad request.
type Orchestrator struct {
	provider  SessionProvider
	extractor *extract.Extractor
	cfg       config.ScraperConfig
}

// NewOrchestrator wires the orchestrator to a session provider and an
// extractor.
func NewOrchestrator(provider SessionProvider, extractor *extract.Extractor, cfg config.ScraperConfig) *Orchestrator {
	return &Orchestrator{provider: provider, extractor: extractor, cfg: cfg}
}

// IsLive reports the underlying browser process liveness for health
// checks.
func (o *Orchestrator) IsLive() bool {
	return o.provider.IsLive()
}

// Scrape runs validate → acquire session → navigate → extract →
// convert, with cleanup on every exit path.
//
// A failed session acquisition or navigation is never retried here:
// retry policy exists only in the supervisor's launch path, so one
// slow or failing target cannot consume browser-relaunch budget.
func (o *Orchestrator) Scrape(ctx context.Context, req *models.ScrapeRequest) (*models.ScrapeResponse, error) {
	totalStart := time.Now()
	req.Defaults()

	if err := safeurl.Validate(req.URL); err != nil {
		return nil, err
	}

	if !o.provider.IsLive() {
		return nil, models.NewScrapeError(
			models.ErrCodeUnavailable,
			"browser process is not available",
			nil,
		)
	}

	overall := time.Duration(req.Timeout) * time.Second
	if overall <= 0 {
		overall = o.cfg.DefaultTimeout
	}
	if overall > o.cfg.MaxTimeout {
		overall = o.cfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	sess, err := o.provider.NewSession(o.sessionOptions(req))
	if err != nil {
		return nil, err
	}

	// Every acquired resource registers its release here; the list runs
	// on all exit paths and its failures never become the result.
	cleanup := &releaseList{}
	defer cleanup.run(req.URL)
	cleanup.add("render session", sess.Close)

	pageTimeout := o.cfg.PageLoadTimeout
	if pageTimeout <= 0 || pageTimeout > overall {
		pageTimeout = overall
	}
	navCtx, navCancel := context.WithTimeout(ctx, pageTimeout)
	defer navCancel()

	navStart := time.Now()
	rawHTML, err := sess.Navigate(navCtx, req.URL)
	navigationMs := time.Since(navStart).Milliseconds()
	if err != nil {
		return nil, err
	}

	extractStart := time.Now()
	resp, err := o.extractor.Extract(rawHTML, req.URL, extract.Options{
		Mode:        req.ExtractMode,
		Format:      req.OutputFormat,
		CSSSelector: req.CSSSelector,
	})
	if err != nil {
		return nil, err
	}

	if resp.Metadata.Title == "" {
		resp.Metadata.Title = "Untitled"
	}
	resp.Timing = models.TimingInfo{
		TotalMs:      time.Since(totalStart).Milliseconds(),
		NavigationMs: navigationMs,
		ExtractionMs: time.Since(extractStart).Milliseconds(),
	}
	return resp, nil
}

// sessionOptions merges the server-side scraper config with the
// per-request overrides.
func (o *Orchestrator) sessionOptions(req *models.ScrapeRequest) browser.SessionOptions {
	opts := browser.SessionOptions{
		Stealth:  req.Stealth,
		Headers:  req.Headers,
		BlockAds: req.BlockAds,
	}

	block := o.cfg.BlockResources
	if req.BlockResources != nil {
		block = *req.BlockResources
	}
	if block {
		opts.BlockedResourceTypes = o.cfg.BlockedResourceTypes
	}
	return opts
}

// releaseList collects release actions for acquired resources and runs
// them in reverse order. Failures are logged, never propagated: cleanup
// errors are secondary to the primary outcome.
type releaseList struct {
	names    []string
	releases []func() error
}

func (r *releaseList) add(name string, release func() error) {
	r.names = append(r.names, name)
	r.releases = append(r.releases, release)
}

func (r *releaseList) run(url string) {
	for i := len(r.releases) - 1; i >= 0; i-- {
		if err := r.releases[i](); err != nil {
			slog.Warn("cleanup failed",
				"resource", r.names[i], "url", url, "error", err)
		}
	}
}
