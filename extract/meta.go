package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/distill/models"
)

// PageMeta bundles the auxiliary page data harvested from the raw
// rendered HTML (not from the extracted article, so links stripped as
// boilerplate are still reported).
type PageMeta struct {
	Links  models.LinksResult
	Images []models.Image
	OG     models.OGMetadata
}

// collectPageMeta parses the raw HTML once and harvests links, images,
// and Open Graph tags. Best-effort: unparseable input yields empty meta.
func collectPageMeta(rawHTML string, sourceURL string) PageMeta {
	meta := PageMeta{
		Links:  models.LinksResult{Internal: []models.Link{}, External: []models.Link{}},
		Images: []models.Image{},
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return meta
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}

	collectLinks(doc, base, &meta)
	collectImages(doc, base, &meta)
	collectOG(doc, &meta)
	return meta
}

// collectLinks separates anchors into internal and external by host,
// resolving relative hrefs against the base and deduplicating.
func collectLinks(doc *goquery.Document, base *url.URL, meta *PageMeta) {
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		// Skip fragments, javascript:, mailto:, tel: etc.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		absURL := resolved.String()
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		link := models.Link{Href: absURL, Text: strings.TrimSpace(s.Text())}
		if strings.EqualFold(resolved.Host, base.Host) {
			meta.Links.Internal = append(meta.Links.Internal, link)
		} else {
			meta.Links.External = append(meta.Links.External, link)
		}
	})
}

// collectImages gathers image elements with absolute URLs, skipping
// data URIs.
func collectImages(doc *goquery.Document, base *url.URL, meta *PageMeta) {
	seen := make(map[string]struct{})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil || resolved.Scheme == "data" {
			return
		}

		absURL := resolved.String()
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		alt, _ := s.Attr("alt")
		meta.Images = append(meta.Images, models.Image{
			Src: absURL,
			Alt: strings.TrimSpace(alt),
		})
	})
}

// collectOG reads Open Graph meta tags.
func collectOG(doc *goquery.Document, meta *PageMeta) {
	doc.Find("meta[property]").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if content == "" {
			return
		}
		switch prop {
		case "og:title":
			meta.OG.Title = content
		case "og:description":
			meta.OG.Description = content
		case "og:image":
			meta.OG.Image = content
		case "og:type":
			meta.OG.Type = content
		}
	})
}
