package services

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"maps-scraper/models"
	"maps-scraper/utils"
)

type SummaryService struct {
	logger *utils.Logger
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger}
}

// Generate computes the field availability counts of a finished run.
func (s *SummaryService) Generate(query, outputPath string, records []models.ListingRecord, duplicates int, started time.Time) *models.RunSummary {
	r := &models.RunSummary{
		Query:          query,
		OutputPath:     outputPath,
		TotalListings:  len(records),
		DuplicatesSeen: duplicates,
		StartedAt:      started,
	}
	if !started.IsZero() {
		r.Duration = time.Since(started).Round(time.Second)
	}

	for _, rec := range records {
		if models.IsAvailable(rec.Name) {
			r.WithName++
		}
		if models.IsAvailable(rec.Address) {
			r.WithAddress++
		}
		if models.IsAvailable(rec.Phone) {
			r.WithPhone++
		}
		if models.IsAvailable(rec.Website) {
			r.WithWebsite++
		}
		if models.IsAvailable(rec.Email) {
			r.WithEmail++
		}
		if rec.ScrapedEmail != nil {
			r.WithScraped++
		}
	}
	return r
}

// Print writes the summary to stdout.
func (s *SummaryService) Print(r *models.RunSummary) {
	s.Fprint(os.Stdout, r)
}

func (s *SummaryService) Fprint(w io.Writer, r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📍 MAPS SCRAPE SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Query            : \033[1m%s\033[0m\n", truncate(r.Query, 40))
	fmt.Fprintf(w, "  Listings exported: \033[1m%d\033[0m\n", r.TotalListings)
	if r.DuplicatesSeen > 0 {
		fmt.Fprintf(w, "  Duplicates dropped: \033[1m%d\033[0m\n", r.DuplicatesSeen)
	}
	if r.Duration > 0 {
		fmt.Fprintf(w, "  Duration         : %s\n", r.Duration)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Field Coverage\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.TotalListings == 0 {
		fmt.Fprintf(w, "  No listings collected\n")
	} else {
		for _, row := range []struct {
			label string
			count int
		}{
			{"Name", r.WithName},
			{"Address", r.WithAddress},
			{"Phone", r.WithPhone},
			{"Website", r.WithWebsite},
			{"Email", r.WithEmail},
			{"Scraped email", r.WithScraped},
		} {
			fmt.Fprintf(w, "  %-14s %4d / %-4d \033[1;32m%5.1f%%\033[0m\n",
				row.label, row.count, r.TotalListings, percent(row.count, r.TotalListings))
		}
	}
	fmt.Fprintln(w)

	if r.OutputPath != "" {
		fmt.Fprintf(w, "  Saved to: %s\n", r.OutputPath)
	}
	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10
}

// truncate shortens s to at most max runes, ending in "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
