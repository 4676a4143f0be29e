package maps

import (
	"context"
	"strings"

	"maps-scraper/models"
	"maps-scraper/utils"
)

// fieldLookup reads one field from the open detail view. ok is false when the
// field could not be resolved for any reason.
type fieldLookup func(ctx context.Context, page Page) (value string, ok bool)

func textOf(selector string) fieldLookup {
	return func(ctx context.Context, page Page) (string, bool) {
		v, err := page.Text(ctx, selector)
		if err != nil {
			return "", false
		}
		return v, true
	}
}

func attributeOf(selector, name string) fieldLookup {
	return func(ctx context.Context, page Page) (string, bool) {
		v, err := page.Attribute(ctx, selector, name)
		if err != nil {
			return "", false
		}
		return v, true
	}
}

func mailtoOf(selector string) fieldLookup {
	lookup := attributeOf(selector, "href")
	return func(ctx context.Context, page Page) (string, bool) {
		v, ok := lookup(ctx, page)
		if !ok {
			return "", false
		}
		return strings.Replace(v, "mailto:", "", 1), true
	}
}

// Extractor reads a ListingRecord from the listing detail view currently in
// focus.
type Extractor struct {
	name, address, phone, website, email fieldLookup
	logger                               *utils.Logger
}

// NewExtractor returns an Extractor using the default detail-view locators.
func NewExtractor(logger *utils.Logger) *Extractor {
	return &Extractor{
		name:    textOf(NameSelector),
		address: textOf(AddressSelector),
		phone:   textOf(PhoneSelector),
		website: attributeOf(WebsiteSelector, "href"),
		email:   mailtoOf(EmailSelector),
		logger:  logger,
	}
}

// Extract resolves all five fields. A field whose lookup fails is set to
// models.NotAvailable; Extract itself never fails.
func (e *Extractor) Extract(ctx context.Context, page Page) models.ListingRecord {
	return models.ListingRecord{
		Name:    e.resolve(ctx, page, "name", e.name),
		Address: e.resolve(ctx, page, "address", e.address),
		Phone:   e.resolve(ctx, page, "phone", e.phone),
		Website: e.resolve(ctx, page, "website", e.website),
		Email:   e.resolve(ctx, page, "email", e.email),
	}
}

func (e *Extractor) resolve(ctx context.Context, page Page, field string, lookup fieldLookup) (value string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("[extract] Recovered in %s lookup: %v", field, r)
			value = models.NotAvailable
		}
	}()

	v, ok := lookup(ctx, page)
	if !ok {
		e.logger.Debug("[extract] %s not available", field)
		return models.NotAvailable
	}
	return v
}
