// Package safeurl decides whether a client-supplied URL is safe to hand
// to the browser. It blocks non-HTTP schemes, loopback hosts, and
// literal private-range addresses to limit SSRF exposure.
//
// Known gap: the check is literal. A hostname that resolves to a private
// address via DNS, and IPv6 unique-local/link-local ranges, pass
// validation. Deployments that need stronger guarantees should put the
// service behind an egress policy.
package safeurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/use-agent/distill/models"
)

// blockedHosts are loopback/wildcard hostnames that must never be scraped.
var blockedHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"0.0.0.0":   {},
	"::1":       {},
	"[::1]":     {},
}

// Validate reports whether rawURL is admissible. It is pure: no network
// access, no DNS resolution. The returned error is a *models.ScrapeError
// with code INVALID_INPUT and a reason-bearing message.
func Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			"malformed URL", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("scheme %q not allowed, only http and https", scheme), nil)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			"malformed URL", nil)
	}
	if _, blocked := blockedHosts[host]; blocked {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("host %q is blocked", host), nil)
	}

	if isPrivateRange(host) {
		return models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("host %q is in a private address range", host), nil)
	}

	return nil
}

// isPrivateRange matches the RFC1918 literal prefixes 10.*, 192.168.*
// and 172.16.*-172.31.*.
func isPrivateRange(host string) bool {
	if strings.HasPrefix(host, "10.") || strings.HasPrefix(host, "192.168.") {
		return true
	}
	if rest, ok := strings.CutPrefix(host, "172."); ok {
		second, _, found := strings.Cut(rest, ".")
		if !found {
			return false
		}
		n := 0
		for _, r := range second {
			if r < '0' || r > '9' {
				return false
			}
			n = n*10 + int(r-'0')
		}
		return len(second) > 0 && n >= 16 && n <= 31
	}
	return false
}
