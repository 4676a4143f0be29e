package maps

import (
	"net/url"
	"strings"
)

const searchBaseURL = "https://www.google.com/maps/search/"

// CSS selectors for the results feed and the listing detail view.
const (
	ResultsPanelSelector         = `div[aria-label*="Results for"]`
	ResultsPanelFallbackSelector = `div.m6QErb[aria-label*="Results"]`
	ListingSelector              = `div.Nv2PK`
	BackButtonSelector           = `button[aria-label="Back"]`

	NameSelector    = `h1.DUwDvf`
	AddressSelector = `button[aria-label*="Address"]`
	PhoneSelector   = `button[aria-label*="Phone"]`
	WebsiteSelector = `a[aria-label*="Website"]`
	EmailSelector   = `a[href^="mailto:"]`
)

// SearchURL builds the results page URL for query.
func SearchURL(query string) string {
	escaped := url.PathEscape(strings.TrimSpace(query))
	return searchBaseURL + escaped + "/"
}
