package models

import "time"

// NotAvailable is the value stored in a ListingRecord field whose detail-view
// lookup failed.
const NotAvailable = "Not Available"

// ListingRecord holds the fields read from one listing's detail view, plus the
// contact email discovered on its website during enrichment.
type ListingRecord struct {
	Name    string
	Address string
	Phone   string
	Website string
	Email   string

	// ScrapedEmail holds the ", "-joined addresses found on Website during
	// enrichment. nil means none were found.
	ScrapedEmail *string
}

// IsAvailable reports whether v holds a real value rather than the sentinel.
func IsAvailable(v string) bool {
	return v != "" && v != NotAvailable
}

// ExportColumns is the fixed column order of every export.
var ExportColumns = []string{"Name", "Address", "Phone", "Website", "Email", "ScrapedEmail"}

// Row returns the record's cells in ExportColumns order. A missing
// ScrapedEmail becomes an empty cell.
func (r ListingRecord) Row() []string {
	scraped := ""
	if r.ScrapedEmail != nil {
		scraped = *r.ScrapedEmail
	}
	return []string{r.Name, r.Address, r.Phone, r.Website, r.Email, scraped}
}

// RunSummary holds the computed statistics over one finished run.
type RunSummary struct {
	Query          string
	OutputPath     string
	TotalListings  int
	WithName       int
	WithAddress    int
	WithPhone      int
	WithWebsite    int
	WithEmail      int
	WithScraped    int
	DuplicatesSeen int
	StartedAt      time.Time
	Duration       time.Duration
}
