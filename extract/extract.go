// Package extract turns raw rendered HTML into clean output: a
// boilerplate-removal stage isolates the main article, a conversion
// stage renders it as Markdown (or HTML/text pass-through).
package extract

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	readability "github.com/go-shiori/go-readability"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/use-agent/distill/models"
)

// Extractor runs the two-stage extraction pipeline. The markdown
// converter is created once and reused across all requests
// (goroutine-safe).
type Extractor struct {
	mdConverter *converter.Converter
}

// NewExtractor initialises the Extractor with a pre-configured Markdown
// converter.
func NewExtractor() *Extractor {
	return &Extractor{mdConverter: newMarkdownConverter()}
}

// Options carries the per-request extraction parameters.
type Options struct {
	// Mode selects the boilerplate-removal strategy:
	// "readability" (default), "pruning", or "auto" (run both, pick
	// the better result).
	Mode string

	// Format selects the output: "markdown" (default), "html", "text".
	Format string

	// CSSSelector optionally narrows the input to matching elements
	// before extraction.
	CSSSelector string
}

// Extract runs the full pipeline and returns a partial ScrapeResponse
// (Content + Metadata + Links/Images/OG + Tokens filled; Timing is left
// to the orchestrator).
//
// When no main-content region is identifiable the pipeline fails with a
// NO_CONTENT error rather than passing raw HTML through: a non-article
// page is a typed outcome the caller can distinguish from a system
// fault.
func (e *Extractor) Extract(rawHTML string, sourceURL string, opts Options) (*models.ScrapeResponse, error) {
	originalTokens := EstimateTokens(rawHTML)

	if opts.CSSSelector != "" {
		filtered, err := applyCSSSelector(rawHTML, opts.CSSSelector)
		if err != nil {
			return nil, err
		}
		rawHTML = filtered
	}

	article, err := e.runExtraction(rawHTML, sourceURL, opts.Mode)
	if err != nil {
		return nil, err
	}

	var content string
	switch opts.Format {
	case "html":
		content = article.Content
	case "text":
		content = article.TextContent
	default: // "markdown"
		content, err = toMarkdown(e.mdConverter, article.Content, sourceURL)
		if err != nil {
			return nil, models.NewScrapeError(
				models.ErrCodeInternal,
				"markdown conversion failed",
				err,
			)
		}
	}

	cleanedTokens := EstimateTokens(content)
	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		savingsPercent = math.Round(savingsPercent*100) / 100
	}

	// Auxiliary metadata always comes from the unfiltered page.
	meta := collectPageMeta(rawHTML, sourceURL)

	return &models.ScrapeResponse{
		Success: true,
		Content: content,
		Metadata: models.Metadata{
			Title:       article.Title,
			Description: article.Excerpt,
			SiteName:    article.SiteName,
			Author:      article.Byline,
			Language:    article.Language,
			SourceURL:   sourceURL,
		},
		Links:      meta.Links,
		Images:     meta.Images,
		OGMetadata: meta.OG,
		Tokens: models.TokenInfo{
			OriginalEstimate: originalTokens,
			CleanedEstimate:  cleanedTokens,
			SavingsPercent:   savingsPercent,
		},
	}, nil
}

// runExtraction dispatches to the selected boilerplate-removal strategy.
func (e *Extractor) runExtraction(rawHTML, sourceURL, mode string) (readability.Article, error) {
	switch mode {
	case "pruning":
		return prunedArticle(rawHTML, sourceURL)
	case "auto":
		return autoExtract(rawHTML, sourceURL)
	default: // "readability"
		return extractArticle(rawHTML, sourceURL)
	}
}

// prunedArticle runs the scoring-based pruner and wraps its output as an
// Article. Metadata still comes from readability on the original HTML so
// title/author survive; only the body selection differs.
func prunedArticle(rawHTML, sourceURL string) (readability.Article, error) {
	prunedHTML, err := pruneContent(rawHTML)
	if err != nil {
		return readability.Article{}, models.NewScrapeError(
			models.ErrCodeNoContent,
			"rendered HTML could not be parsed",
			err,
		)
	}

	prunedText := stripTags(prunedHTML)
	if len(prunedText) < minContentLength {
		return readability.Article{}, models.NewScrapeError(
			models.ErrCodeNoContent,
			"no block scored as main content",
			nil,
		)
	}

	metaArticle, metaErr := extractArticle(rawHTML, sourceURL)
	if metaErr != nil {
		// Pruning found content even though readability did not;
		// proceed without the readability metadata.
		metaArticle = readability.Article{}
	}

	return readability.Article{
		Title:       metaArticle.Title,
		Byline:      metaArticle.Byline,
		Excerpt:     metaArticle.Excerpt,
		SiteName:    metaArticle.SiteName,
		Language:    metaArticle.Language,
		Content:     prunedHTML,
		TextContent: prunedText,
	}, nil
}

// autoExtract runs readability and pruning concurrently and picks the
// result with more extracted text, with a guard against the longer
// result being mostly noise. Fails only when both strategies fail.
func autoExtract(rawHTML, sourceURL string) (readability.Article, error) {
	var (
		readabilityArticle readability.Article
		readabilityErr     error
		prunedResult       readability.Article
		prunedErr          error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		readabilityArticle, readabilityErr = extractArticle(rawHTML, sourceURL)
	}()
	go func() {
		defer wg.Done()
		prunedResult, prunedErr = prunedArticle(rawHTML, sourceURL)
	}()
	wg.Wait()

	switch {
	case readabilityErr != nil && prunedErr != nil:
		return readability.Article{}, readabilityErr
	case readabilityErr != nil:
		return prunedResult, nil
	case prunedErr != nil:
		return readabilityArticle, nil
	}

	readabilityText := strings.TrimSpace(readabilityArticle.TextContent)
	prunedText := prunedResult.TextContent

	useReadability := len(readabilityText) >= len(prunedText)

	// If the longer result dwarfs the shorter by >10x it likely kept
	// noise; prefer the shorter one when it still has real content.
	if useReadability && len(prunedText) >= minContentLength {
		if len(readabilityText) > 10*len(prunedText) {
			useReadability = false
		}
	} else if !useReadability && len(readabilityText) >= minContentLength {
		if len(prunedText) > 10*len(readabilityText) {
			useReadability = true
		}
	}

	if useReadability {
		return readabilityArticle, nil
	}
	slog.Debug("auto extraction picked pruning result",
		"readabilityLen", len(readabilityText), "prunedLen", len(prunedText))
	return prunedResult, nil
}
