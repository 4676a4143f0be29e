package services

import (
	"strings"

	"maps-scraper/models"
	"maps-scraper/utils"
)

// Cleaner tidies collected records before enrichment and, when enabled,
// drops repeats of a listing the feed rendered more than once.
type Cleaner struct {
	dedupe bool
	logger *utils.Logger
}

// NewCleaner creates a Cleaner. With dedupe set, records sharing Name and
// Address are kept only at their first position.
func NewCleaner(dedupe bool, logger *utils.Logger) *Cleaner {
	return &Cleaner{dedupe: dedupe, logger: logger}
}

// Clean returns the cleaned records in their original order and the number
// of duplicates dropped. Records missing either Name or Address are never
// treated as duplicates, since they carry no usable identity.
func (c *Cleaner) Clean(records []models.ListingRecord) ([]models.ListingRecord, int) {
	seen := utils.NewKeySet()
	result := make([]models.ListingRecord, 0, len(records))
	dropped := 0

	for _, r := range records {
		r = trimRecord(r)

		if c.dedupe && models.IsAvailable(r.Name) && models.IsAvailable(r.Address) {
			if !seen.Add(utils.NormaliseKey(r.Name, r.Address)) {
				c.logger.Debug("[cleaner] Duplicate listing skipped: %s (%s)", r.Name, r.Address)
				dropped++
				continue
			}
		}
		result = append(result, r)
	}

	if dropped > 0 {
		c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d duplicates)",
			len(records), len(result), dropped)
	}
	return result, dropped
}

// trimRecord strips surrounding whitespace and restores the sentinel on
// fields left empty.
func trimRecord(r models.ListingRecord) models.ListingRecord {
	r.Name = orSentinel(r.Name)
	r.Address = orSentinel(r.Address)
	r.Phone = orSentinel(r.Phone)
	r.Website = orSentinel(r.Website)
	r.Email = orSentinel(r.Email)
	return r
}

func orSentinel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.NotAvailable
	}
	return s
}
