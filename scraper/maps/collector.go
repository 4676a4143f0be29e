package maps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maps-scraper/models"
	"maps-scraper/utils"
)

// windowScrollStep is the page scroll used when the results container itself
// cannot be scrolled.
const windowScrollStep = 1000

// Timing holds the settle pauses of a collection run. Zero values skip the
// pause.
type Timing struct {
	ScrollSettle time.Duration
	DetailLoad   time.Duration
	BackSettle   time.Duration
	LazyLoad     time.Duration
}

// Collector walks the result feed, opening every newly rendered listing once
// in discovery order until the feed's extent stops changing.
type Collector struct {
	extractor    *Extractor
	timing       Timing
	stablePasses int
	logger       *utils.Logger
}

// NewCollector builds a Collector. stablePasses below 1 uses
// DefaultStablePasses.
func NewCollector(extractor *Extractor, timing Timing, stablePasses int, logger *utils.Logger) *Collector {
	return &Collector{
		extractor:    extractor,
		timing:       timing,
		stablePasses: stablePasses,
		logger:       logger,
	}
}

// Collect returns the records of every listing visited, in ascending index
// order. A missing results panel is reported through progress and yields an
// empty result with a nil error. An error is returned only when the browser
// stops answering enumeration or extent queries, or ctx is cancelled; the
// records collected so far are returned with it.
func (c *Collector) Collect(ctx context.Context, page Page, progress Progress) ([]models.ListingRecord, error) {
	records := make([]models.ListingRecord, 0)

	container, err := locateResultsPanel(ctx, page)
	if err != nil {
		if errors.Is(err, ErrResultsPanelNotFound) {
			progress.Log("Could not locate results panel on the page.")
			c.logger.Warn("[collector] %v", err)
			return records, nil
		}
		return records, err
	}
	c.logger.Debug("[collector] Results panel: %s", container)

	tracker := NewStabilityTracker(c.stablePasses)
	visited := 0

	for pass := 1; ; pass++ {
		n, err := page.Count(ctx, ListingSelector)
		if err != nil {
			return records, fmt.Errorf("collector: enumerate listings: %w", err)
		}
		progress.UpdateStatus(fmt.Sprintf("Found %d listings so far...", n))

		for ; visited < n; visited++ {
			if err := ctx.Err(); err != nil {
				return records, err
			}

			rec, err := c.visit(ctx, page, visited)
			if err != nil {
				progress.Log(fmt.Sprintf("Error collecting listing %d: %v", visited, err))
				c.logger.Warn("[collector] Listing %d skipped: %v", visited, err)
			} else {
				records = append(records, rec)
				progress.Log(fmt.Sprintf("Collected: %s", rec.Name))
				progress.UpdateStatus(fmt.Sprintf("Collected %d listings...", len(records)))
				c.back(ctx, page)
			}

			// Handles may have shifted or grown while the detail view was open.
			if fresh, err := page.Count(ctx, ListingSelector); err == nil {
				n = fresh
			}
		}

		if err := ctx.Err(); err != nil {
			return records, err
		}

		extent, err := c.scrollAndMeasure(ctx, page, container)
		if err != nil {
			return records, err
		}
		c.logger.Debug("[collector] Pass %d: %d visited, extent %d, stable %d",
			pass, visited, extent, tracker.Stable())

		if tracker.Observe(extent) {
			progress.Log("All listings loaded.")
			return records, nil
		}
	}
}

func locateResultsPanel(ctx context.Context, page Page) (string, error) {
	for _, sel := range []string{ResultsPanelSelector, ResultsPanelFallbackSelector} {
		n, err := page.Count(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if n > 0 {
			return sel, nil
		}
	}
	return "", ErrResultsPanelNotFound
}

// visit opens the listing at index and extracts its detail view.
func (c *Collector) visit(ctx context.Context, page Page, index int) (models.ListingRecord, error) {
	if err := page.ScrollIntoView(ctx, ListingSelector, index); err != nil {
		return models.ListingRecord{}, err
	}
	if err := pause(ctx, c.timing.ScrollSettle); err != nil {
		return models.ListingRecord{}, err
	}
	if err := page.Click(ctx, ListingSelector, index); err != nil {
		return models.ListingRecord{}, err
	}
	if err := pause(ctx, c.timing.DetailLoad); err != nil {
		return models.ListingRecord{}, err
	}
	return c.extractor.Extract(ctx, page), nil
}

// back returns to the list view. A missing Back control is ignored.
func (c *Collector) back(ctx context.Context, page Page) {
	if err := page.Click(ctx, BackButtonSelector, 0); err != nil {
		c.logger.Debug("[collector] No back control: %v", err)
		return
	}
	_ = pause(ctx, c.timing.BackSettle)
}

// scrollAndMeasure scrolls the container (or the page) to trigger lazy
// loading and returns the resulting content extent.
func (c *Collector) scrollAndMeasure(ctx context.Context, page Page, container string) (int64, error) {
	if err := page.ScrollToBottom(ctx, container); err != nil {
		c.logger.Debug("[collector] Container scroll failed, scrolling page: %v", err)
		if err := page.ScrollWindow(ctx, windowScrollStep); err != nil {
			return 0, fmt.Errorf("collector: scroll: %w", err)
		}
	}
	if err := pause(ctx, c.timing.LazyLoad); err != nil {
		return 0, err
	}

	extent, err := page.ScrollHeight(ctx, container)
	if err == nil {
		return extent, nil
	}
	c.logger.Debug("[collector] Container height failed, measuring page: %v", err)
	extent, err = page.DocumentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("collector: measure extent: %w", err)
	}
	return extent, nil
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
