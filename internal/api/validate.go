package api

import (
	"net/url"
	"regexp"
)

// Hostname must be dot-separated domain labels with an alphabetic TLD.
var domainPattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// isValidProductURL accepts absolute http/https URLs with a real-looking
// hostname, rejecting everything else before the scraper sees it.
func isValidProductURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return domainPattern.MatchString(u.Hostname())
}
