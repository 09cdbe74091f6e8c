package harvest

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so the visited set catches duplicates.
// It lowercases the scheme and host, removes default ports and fragments,
// and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// SameOrigin reports whether candidate shares scheme and host with base.
// Cross-origin links are discarded to keep the crawl bound to the seed's
// domain.
func SameOrigin(base, candidate string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Scheme, c.Scheme) && strings.EqualFold(b.Host, c.Host)
}

// ResolveLink resolves href against the page URL and normalizes the result.
// Anchors, mailto links, and unparsable values return an empty string.
func ResolveLink(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	normalized, err := NormalizeURL(resolved.String())
	if err != nil {
		return ""
	}
	return normalized
}
