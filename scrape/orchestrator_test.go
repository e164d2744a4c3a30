package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/distill/browser"
	"github.com/use-agent/distill/config"
	"github.com/use-agent/distill/extract"
	"github.com/use-agent/distill/models"
)

const testArticle = `<!DOCTYPE html>
<html><head><title>Test Page</title></head><body>
<nav>NAV-BOILERPLATE</nav>
<article>
<h1>Test Page</h1>
<p>This is a paragraph of genuine article prose, long enough for the
readability stage to accept it as main content without falling back. It
keeps going for a while to comfortably clear the minimum length.</p>
<p>A second paragraph adds more body text so that extraction has a solid
content region to anchor on and score highly.</p>
</article>
</body></html>`

type fakeSession struct {
	html          string
	navErr        error
	blockUntilCtx bool
	closeErr      error
	closes        atomic.Int32
}

func (f *fakeSession) Navigate(ctx context.Context, target string) (string, error) {
	if f.blockUntilCtx {
		<-ctx.Done()
		return "", models.NewScrapeError(models.ErrCodeTimeout,
			"page did not reach DOM-parsed state in time", ctx.Err())
	}
	if f.navErr != nil {
		return "", f.navErr
	}
	return f.html, nil
}

func (f *fakeSession) Close() error {
	f.closes.Add(1)
	return f.closeErr
}

type fakeProvider struct {
	live    bool
	mkSess  func() *fakeSession
	mu      sync.Mutex
	minted  []*fakeSession
	acquire atomic.Int32
}

func (p *fakeProvider) IsLive() bool { return p.live }

func (p *fakeProvider) NewSession(browser.SessionOptions) (browser.Session, error) {
	p.acquire.Add(1)
	s := p.mkSess()
	p.mu.Lock()
	p.minted = append(p.minted, s)
	p.mu.Unlock()
	return s, nil
}

func testConfig() config.ScraperConfig {
	return config.ScraperConfig{
		DefaultTimeout:  5 * time.Second,
		MaxTimeout:      10 * time.Second,
		PageLoadTimeout: 5 * time.Second,
		BlockResources:  true,
		BlockedResourceTypes: []string{
			"Image", "Stylesheet", "Font", "Media",
		},
	}
}

func newTestOrchestrator(p *fakeProvider, cfg config.ScraperConfig) *Orchestrator {
	return NewOrchestrator(p, extract.NewExtractor(), cfg)
}

func TestScrape_RejectedURLNeverOpensSession(t *testing.T) {
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{html: testArticle} }}
	o := newTestOrchestrator(p, testConfig())

	for _, u := range []string{
		"file:///etc/passwd",
		"javascript:alert(1)//",
		"http://localhost/metrics",
		"http://10.1.2.3/internal",
		"not a url at all",
	} {
		_, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: u})
		if err == nil {
			t.Errorf("Scrape(%q) succeeded, want validation error", u)
			continue
		}
		if models.CodeOf(err) != models.ErrCodeInvalidInput {
			t.Errorf("Scrape(%q) code = %s, want %s", u, models.CodeOf(err), models.ErrCodeInvalidInput)
		}
	}
	if got := p.acquire.Load(); got != 0 {
		t.Errorf("sessions acquired for rejected URLs = %d, want 0", got)
	}
}

func TestScrape_UnavailableWhenBrowserDown(t *testing.T) {
	p := &fakeProvider{live: false, mkSess: func() *fakeSession { return &fakeSession{} }}
	o := newTestOrchestrator(p, testConfig())

	_, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://example.com"})
	if models.CodeOf(err) != models.ErrCodeUnavailable {
		t.Fatalf("code = %s, want %s", models.CodeOf(err), models.ErrCodeUnavailable)
	}
	if got := p.acquire.Load(); got != 0 {
		t.Errorf("sessions acquired while down = %d, want 0", got)
	}
}

func TestScrape_Success(t *testing.T) {
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{html: testArticle} }}
	o := newTestOrchestrator(p, testConfig())

	resp, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://example.com/post"})
	if err != nil {
		t.Fatalf("Scrape returned error: %v", err)
	}

	if resp.Metadata.Title != "Test Page" {
		t.Errorf("title = %q, want %q", resp.Metadata.Title, "Test Page")
	}
	if resp.Content == "" {
		t.Error("content is empty")
	}
	if resp.Timing.TotalMs < 0 || resp.Timing.NavigationMs < 0 {
		t.Errorf("timing not recorded: %+v", resp.Timing)
	}
	if got := p.minted[0].closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want exactly 1", got)
	}
}

func TestScrape_TimeoutClosesSession(t *testing.T) {
	cfg := testConfig()
	cfg.PageLoadTimeout = 50 * time.Millisecond

	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{blockUntilCtx: true} }}
	o := newTestOrchestrator(p, cfg)

	start := time.Now()
	_, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://slow.example.com"})
	elapsed := time.Since(start)

	if models.CodeOf(err) != models.ErrCodeTimeout {
		t.Fatalf("code = %s, want %s", models.CodeOf(err), models.ErrCodeTimeout)
	}
	if elapsed > 2*time.Second {
		t.Errorf("scrape took %v, want roughly the 50ms page deadline", elapsed)
	}

	sess := p.minted[0]
	if got := sess.closes.Load(); got != 1 {
		t.Errorf("session closed %d times after timeout, want 1", got)
	}
	// Close is idempotent.
	if err := sess.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestScrape_NavigationErrorMapsToUpstream(t *testing.T) {
	navErr := models.NewScrapeError(models.ErrCodeNavigation,
		"navigation to target URL failed", errors.New("net::ERR_NAME_NOT_RESOLVED"))
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{navErr: navErr} }}
	o := newTestOrchestrator(p, testConfig())

	_, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://unreachable.example.com"})
	if models.CodeOf(err) != models.ErrCodeNavigation {
		t.Fatalf("code = %s, want %s", models.CodeOf(err), models.ErrCodeNavigation)
	}
	if got := p.minted[0].closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestScrape_NoContentIsDistinct(t *testing.T) {
	page := `<html><head><title>x</title></head><body><img src="a.jpg"></body></html>`
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{html: page} }}
	o := newTestOrchestrator(p, testConfig())

	_, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://example.com/img"})
	if models.CodeOf(err) != models.ErrCodeNoContent {
		t.Fatalf("code = %s, want %s", models.CodeOf(err), models.ErrCodeNoContent)
	}
	if got := p.minted[0].closes.Load(); got != 1 {
		t.Errorf("session closed %d times, want 1", got)
	}
}

func TestScrape_CleanupErrorDoesNotOverrideResult(t *testing.T) {
	p := &fakeProvider{live: true, mkSess: func() *fakeSession {
		return &fakeSession{html: testArticle, closeErr: errors.New("context already gone")}
	}}
	o := newTestOrchestrator(p, testConfig())

	resp, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://example.com/post"})
	if err != nil {
		t.Fatalf("cleanup failure leaked into the result: %v", err)
	}
	if !resp.Success {
		t.Error("response not marked successful")
	}
}

func TestScrape_UntitledFallback(t *testing.T) {
	page := `<html><body><div>
<p>Prose without any title element anywhere on the page, but plenty of
real sentence content so the extraction stage still finds a main region
to keep and convert into markdown output for the caller.</p>
<p>More supporting prose follows in a second paragraph to make the
content region unambiguous for the scorer.</p>
</div></body></html>`
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{html: page} }}
	o := newTestOrchestrator(p, testConfig())

	resp, err := o.Scrape(context.Background(), &models.ScrapeRequest{URL: "https://example.com/untitled"})
	if err != nil {
		t.Fatalf("Scrape returned error: %v", err)
	}
	if resp.Metadata.Title != "Untitled" {
		t.Errorf("title = %q, want the %q placeholder", resp.Metadata.Title, "Untitled")
	}
}

func TestScrape_ConcurrentRequestsGetIndependentSessions(t *testing.T) {
	p := &fakeProvider{live: true, mkSess: func() *fakeSession { return &fakeSession{html: testArticle} }}
	o := newTestOrchestrator(p, testConfig())

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url := fmt.Sprintf("https://example.com/post/%d", i)
			_, errs[i] = o.Scrape(context.Background(), &models.ScrapeRequest{URL: url})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if got := p.acquire.Load(); got != n {
		t.Errorf("sessions acquired = %d, want %d (one per request)", got, n)
	}
	for i, s := range p.minted {
		if got := s.closes.Load(); got != 1 {
			t.Errorf("session %d closed %d times, want 1", i, got)
		}
	}
}
