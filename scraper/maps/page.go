// Package maps drives a map-search results feed in a browser: it walks the
// infinitely scrolling result list, opens every listing and reads its detail
// view into a models.ListingRecord.
package maps

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Page lookups when the selector matches nothing
	// (or nothing at the requested index).
	ErrNotFound = errors.New("element not found")

	// ErrResultsPanelNotFound means neither results container locator resolved.
	ErrResultsPanelNotFound = errors.New("results panel not found")
)

// Page is the browser capability the collector and extractor consume. An
// element handle is a selector plus its index among the current matches, so
// handles are only valid until the next re-render.
type Page interface {
	Navigate(ctx context.Context, url string) error

	// Count returns the number of elements currently matching selector.
	Count(ctx context.Context, selector string) (int, error)
	// Text returns the rendered text of the first match.
	Text(ctx context.Context, selector string) (string, error)
	// Attribute returns the named attribute (resolved property for href/src)
	// of the first match.
	Attribute(ctx context.Context, selector, name string) (string, error)

	ScrollIntoView(ctx context.Context, selector string, index int) error
	Click(ctx context.Context, selector string, index int) error

	// ScrollToBottom scrolls the first match to its maximum scroll extent.
	ScrollToBottom(ctx context.Context, selector string) error
	// ScrollWindow scrolls the whole page by dy pixels.
	ScrollWindow(ctx context.Context, dy int) error
	// ScrollHeight returns the scroll height of the first match.
	ScrollHeight(ctx context.Context, selector string) (int64, error)
	// DocumentHeight returns the scroll height of the document body.
	DocumentHeight(ctx context.Context) (int64, error)

	Close() error
}

// Progress receives the one-way log and status signals of a collection run.
type Progress interface {
	Log(message string)
	UpdateStatus(message string)
}
