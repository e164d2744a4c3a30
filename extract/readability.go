package extract

import (
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/distill/models"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Below this threshold we
// treat the page as having no identifiable main content.
const minContentLength = 50

// extractArticle runs the Mozilla Readability algorithm on rawHTML,
// anchored at sourceURL so relative links and images resolve correctly.
//
// A page the algorithm cannot find main content in (a bare image, a
// login wall, an empty shell) yields a NO_CONTENT error. That is a
// legitimate outcome for non-article pages, not a system fault, and the
// caller maps it accordingly.
func extractArticle(rawHTML string, sourceURL string) (readability.Article, error) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		return readability.Article{}, models.NewScrapeError(
			models.ErrCodeInvalidInput,
			"invalid source URL",
			err,
		)
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return readability.Article{}, models.NewScrapeError(
			models.ErrCodeNoContent,
			"no extractable main content",
			err,
		)
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return readability.Article{}, models.NewScrapeError(
			models.ErrCodeNoContent,
			"extracted content below minimum length",
			nil,
		)
	}

	return article, nil
}
