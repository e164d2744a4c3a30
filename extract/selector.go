package extract

import (
	"bytes"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/distill/models"
)

// applyCSSSelector parses rawHTML, matches elements against the given
// CSS selector, and returns the concatenated outer HTML of all matched
// elements. An invalid selector is a client error.
//
// If no elements match, the original rawHTML is returned unchanged so
// downstream extraction still has something to work with.
func applyCSSSelector(rawHTML string, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", models.NewScrapeError(
			models.ErrCodeInvalidInput,
			"invalid css_selector",
			err,
		)
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", models.NewScrapeError(
			models.ErrCodeNoContent,
			"rendered HTML could not be parsed",
			err,
		)
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return rawHTML, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", models.NewScrapeError(
				models.ErrCodeInternal,
				"failed to render selected nodes",
				err,
			)
		}
	}
	return buf.String(), nil
}
