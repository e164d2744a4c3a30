package extract

import (
	"strings"
	"testing"

	"github.com/use-agent/distill/models"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Go Concurrency Patterns</title></head>
<body>
<nav class="nav"><a href="/home">Home</a> <a href="/about">SITE-NAV-LINK</a></nav>
<div class="ad-banner">BUY-NOW-AD-COPY limited offer click here</div>
<article>
<h1>Go Concurrency Patterns</h1>
<p>Concurrency is the composition of independently executing computations.
Go provides channels and goroutines as first-class primitives, and the
standard library builds servers, pipelines, and fan-out workers on top of
them. This paragraph exists to give the extractor a body of real prose to
work with, long enough to pass any minimum-length heuristics.</p>
<p>Channels let independent goroutines exchange values without shared
memory. Select statements multiplex over multiple channels and make
timeouts and cancellation straightforward to express in ordinary code.</p>
<pre><code>ch := make(chan int)</code></pre>
<p>See the <a href="/blog/pipelines">pipelines post</a> for more detail on
composing stages, and the scheduler documentation for runtime behavior.</p>
</article>
<footer class="footer">FOOTER-COPYRIGHT-NOTICE</footer>
</body>
</html>`

const noContentHTML = `<!DOCTYPE html>
<html><head><title>img</title></head>
<body><img src="/photo.jpg" alt="a photo"></body></html>`

func TestExtract_ArticleToMarkdown(t *testing.T) {
	e := NewExtractor()

	resp, err := e.Extract(articleHTML, "https://example.com/post", Options{})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if resp.Metadata.Title != "Go Concurrency Patterns" {
		t.Errorf("title = %q, want %q", resp.Metadata.Title, "Go Concurrency Patterns")
	}
	if !strings.Contains(resp.Content, "Concurrency is the composition") {
		t.Error("markdown output is missing the article body")
	}
	for _, boilerplate := range []string{"SITE-NAV-LINK", "BUY-NOW-AD-COPY", "FOOTER-COPYRIGHT-NOTICE"} {
		if strings.Contains(resp.Content, boilerplate) {
			t.Errorf("markdown output still contains boilerplate %q", boilerplate)
		}
	}
	// Relative links must resolve against the source URL.
	if !strings.Contains(resp.Content, "https://example.com/blog/pipelines") {
		t.Error("relative article link was not resolved to an absolute URL")
	}
}

func TestExtract_NoContent(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(noContentHTML, "https://example.com/photo", Options{})
	if err == nil {
		t.Fatal("Extract on a bare-image page returned no error")
	}
	if models.CodeOf(err) != models.ErrCodeNoContent {
		t.Errorf("error code = %s, want %s", models.CodeOf(err), models.ErrCodeNoContent)
	}
}

func TestExtract_TextFormat(t *testing.T) {
	e := NewExtractor()

	resp, err := e.Extract(articleHTML, "https://example.com/post", Options{Format: "text"})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if strings.Contains(resp.Content, "<p>") {
		t.Error("text output contains HTML tags")
	}
	if !strings.Contains(resp.Content, "Concurrency is the composition") {
		t.Error("text output is missing the article body")
	}
}

func TestExtract_InvalidSelector(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(articleHTML, "https://example.com/post", Options{CSSSelector: "[[["})
	if err == nil {
		t.Fatal("invalid selector did not error")
	}
	if models.CodeOf(err) != models.ErrCodeInvalidInput {
		t.Errorf("error code = %s, want %s", models.CodeOf(err), models.ErrCodeInvalidInput)
	}
}

func TestExtract_TokenSavings(t *testing.T) {
	e := NewExtractor()

	resp, err := e.Extract(articleHTML, "https://example.com/post", Options{})
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if resp.Tokens.OriginalEstimate <= resp.Tokens.CleanedEstimate {
		t.Errorf("expected extraction to shrink the page: original=%d cleaned=%d",
			resp.Tokens.OriginalEstimate, resp.Tokens.CleanedEstimate)
	}
	if resp.Tokens.SavingsPercent <= 0 {
		t.Errorf("savings percent = %v, want > 0", resp.Tokens.SavingsPercent)
	}
}

func TestExtract_IsRepeatable(t *testing.T) {
	e := NewExtractor()

	first, err := e.Extract(articleHTML, "https://example.com/post", Options{})
	if err != nil {
		t.Fatalf("first Extract: %v", err)
	}
	second, err := e.Extract(articleHTML, "https://example.com/post", Options{})
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if first.Content != second.Content {
		t.Error("identical input produced different markdown")
	}
}

func TestPruneContent_KeepsArticleDropsNav(t *testing.T) {
	pruned, err := pruneContent(articleHTML)
	if err != nil {
		t.Fatalf("pruneContent: %v", err)
	}
	if !strings.Contains(pruned, "Concurrency is the composition") {
		t.Error("pruning dropped the article body")
	}
	if strings.Contains(pruned, "SITE-NAV-LINK") {
		t.Error("pruning retained the navigation block")
	}
}

func TestCollectPageMeta(t *testing.T) {
	html := `<html><head>
	<meta property="og:title" content="OG Title">
	<meta property="og:type" content="article">
	</head><body>
	<a href="/inside">in</a>
	<a href="https://other.example.net/x">out</a>
	<a href="mailto:a@b.c">mail</a>
	<img src="/pic.png" alt="pic">
	<img src="data:image/png;base64,xxx">
	</body></html>`

	meta := collectPageMeta(html, "https://example.com/base/")

	if len(meta.Links.Internal) != 1 || meta.Links.Internal[0].Href != "https://example.com/inside" {
		t.Errorf("internal links = %+v, want one resolved link", meta.Links.Internal)
	}
	if len(meta.Links.External) != 1 || meta.Links.External[0].Href != "https://other.example.net/x" {
		t.Errorf("external links = %+v, want one link", meta.Links.External)
	}
	if len(meta.Images) != 1 || meta.Images[0].Src != "https://example.com/pic.png" {
		t.Errorf("images = %+v, want one resolved image (data URI skipped)", meta.Images)
	}
	if meta.OG.Title != "OG Title" || meta.OG.Type != "article" {
		t.Errorf("og = %+v, want title and type populated", meta.OG)
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "ab", 1}, // rounds up to at least one token
		{"nine runes", "abcdefghi", 3},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.in); got != tt.want {
			t.Errorf("%s: EstimateTokens(%q) = %d, want %d", tt.name, tt.in, got, tt.want)
		}
	}
}
