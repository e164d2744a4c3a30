package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required"`

	// Timeout is the maximum duration in seconds for the entire
	// scrape operation (navigation + rendering + extraction).
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// BlockResources controls whether image/stylesheet/font/media
	// sub-resources are aborted during navigation. When nil, the
	// server default applies.
	BlockResources *bool `json:"block_resources,omitempty"`

	// BlockAds additionally aborts requests to known ad/tracking domains.
	// Default: false.
	BlockAds bool `json:"block_ads,omitempty"`

	// Stealth enables anti-bot-detection evasions
	// (e.g. navigator.webdriver masking). Default: false.
	Stealth bool `json:"stealth,omitempty"`

	// Headers are extra HTTP headers applied to the session before
	// navigation.
	Headers map[string]string `json:"headers,omitempty"`

	// OutputFormat controls the response body format.
	// Allowed: "markdown" (default), "html", "text".
	OutputFormat string `json:"output_format,omitempty" binding:"omitempty,oneof=markdown html text"`

	// ExtractMode controls the content extraction strategy.
	// "readability" (default): Mozilla Readability main-content extraction.
	// "pruning": scoring-based block pruning.
	// "auto": run both and pick the better result.
	ExtractMode string `json:"extract_mode,omitempty" binding:"omitempty,oneof=readability pruning auto"`

	// CSSSelector is an optional CSS selector to filter the rendered HTML
	// before extraction. When set, only the matched elements' outer HTML
	// enters the pipeline.
	CSSSelector string `json:"css_selector,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
	if r.OutputFormat == "" {
		r.OutputFormat = "markdown"
	}
	if r.ExtractMode == "" {
		r.ExtractMode = "readability"
	}
}
