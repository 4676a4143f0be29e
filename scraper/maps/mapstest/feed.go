// Package mapstest provides a scripted in-memory result feed implementing
// maps.Page, for tests that must not start a browser.
package mapstest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"maps-scraper/scraper/maps"
)

// Listing is one entry of a Feed. Empty fields are absent from its detail view.
type Listing struct {
	Name    string
	Address string
	Phone   string
	Website string
	Email   string
}

// Feed renders Initial listings after navigation and GrowBy more on every
// scroll, up to len(Listings). Unless Extents is set, the measured extent is
// 100 per rendered listing.
type Feed struct {
	Listings []Listing
	Initial  int
	GrowBy   int

	// Extents scripts the value of successive extent measurements; the last
	// value repeats.
	Extents []int64

	NoPanel           bool
	FallbackPanel     bool
	NoBack            bool
	NoContainerScroll bool
	// FailContainerHeight makes ScrollHeight fail, so only DocumentHeight
	// measures the extent.
	FailContainerHeight bool
	FailClick           map[int]bool
	FailCountAfter      int // listing Count fails after this many calls; 0 disables

	mu           sync.Mutex
	rendered     int
	open         int
	listingCount int

	Navigated    []string
	Clicks       []int
	Scrolls      int
	Measurements int
	// DocumentMeasurements counts the extents taken from the whole page.
	DocumentMeasurements int
	Closed               int
}

// NewFeed returns a Feed over listings.
func NewFeed(listings []Listing, initial, growBy int) *Feed {
	return &Feed{
		Listings: listings,
		Initial:  initial,
		GrowBy:   growBy,
		rendered: min(initial, len(listings)),
		open:     -1,
	}
}

// Named returns n listings named "Listing 1".."Listing n" with distinct addresses.
func Named(n int) []Listing {
	out := make([]Listing, n)
	for i := range out {
		out[i] = Listing{
			Name:    fmt.Sprintf("Listing %d", i+1),
			Address: fmt.Sprintf("%d Main St", i+1),
			Phone:   fmt.Sprintf("(518) 555-01%02d", i%100),
			Website: fmt.Sprintf("https://site%d.example.com/", i+1),
		}
	}
	return out
}

func (f *Feed) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Navigated = append(f.Navigated, url)
	f.rendered = min(f.Initial, len(f.Listings))
	f.open = -1
	return nil
}

func (f *Feed) Count(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch selector {
	case maps.ResultsPanelSelector:
		if f.NoPanel || f.FallbackPanel {
			return 0, nil
		}
		return 1, nil
	case maps.ResultsPanelFallbackSelector:
		if f.NoPanel || !f.FallbackPanel {
			return 0, nil
		}
		return 1, nil
	case maps.ListingSelector:
		f.listingCount++
		if f.FailCountAfter > 0 && f.listingCount > f.FailCountAfter {
			return 0, errors.New("browser gone")
		}
		return f.rendered, nil
	case maps.BackButtonSelector:
		if f.NoBack || f.open < 0 {
			return 0, nil
		}
		return 1, nil
	}
	return 0, nil
}

func (f *Feed) current() (Listing, bool) {
	if f.open < 0 || f.open >= len(f.Listings) {
		return Listing{}, false
	}
	return f.Listings[f.open], true
}

func (f *Feed) Text(_ context.Context, selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.current()
	if !ok {
		return "", maps.ErrNotFound
	}

	var v string
	switch selector {
	case maps.NameSelector:
		v = l.Name
	case maps.AddressSelector:
		v = l.Address
	case maps.PhoneSelector:
		v = l.Phone
	}
	if v == "" {
		return "", maps.ErrNotFound
	}
	return v, nil
}

func (f *Feed) Attribute(_ context.Context, selector, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.current()
	if !ok || name != "href" {
		return "", maps.ErrNotFound
	}

	switch selector {
	case maps.WebsiteSelector:
		if l.Website != "" {
			return l.Website, nil
		}
	case maps.EmailSelector:
		if l.Email != "" {
			return "mailto:" + l.Email, nil
		}
	}
	return "", maps.ErrNotFound
}

func (f *Feed) ScrollIntoView(_ context.Context, selector string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if selector != maps.ListingSelector || index >= f.rendered {
		return maps.ErrNotFound
	}
	return nil
}

func (f *Feed) Click(_ context.Context, selector string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch selector {
	case maps.ListingSelector:
		f.Clicks = append(f.Clicks, index)
		if f.FailClick[index] {
			return errors.New("element is stale")
		}
		if index >= f.rendered {
			return maps.ErrNotFound
		}
		f.open = index
		return nil
	case maps.BackButtonSelector:
		if f.NoBack || f.open < 0 {
			return maps.ErrNotFound
		}
		f.open = -1
		return nil
	}
	return maps.ErrNotFound
}

func (f *Feed) grow() {
	f.Scrolls++
	f.rendered = min(f.rendered+f.GrowBy, len(f.Listings))
}

func (f *Feed) ScrollToBottom(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NoContainerScroll {
		return maps.ErrNotFound
	}
	f.grow()
	return nil
}

func (f *Feed) ScrollWindow(context.Context, int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grow()
	return nil
}

func (f *Feed) measure() int64 {
	idx := f.Measurements
	f.Measurements++
	if len(f.Extents) == 0 {
		return int64(f.rendered) * 100
	}
	if idx >= len(f.Extents) {
		idx = len(f.Extents) - 1
	}
	return f.Extents[idx]
}

func (f *Feed) ScrollHeight(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailContainerHeight {
		return 0, errors.New("container detached")
	}
	return f.measure(), nil
}

func (f *Feed) DocumentHeight(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DocumentMeasurements++
	return f.measure(), nil
}

func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed++
	return nil
}

var _ maps.Page = (*Feed)(nil)
