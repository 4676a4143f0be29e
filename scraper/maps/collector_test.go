package maps_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"maps-scraper/scraper/maps"
	"maps-scraper/scraper/maps/mapstest"
	"maps-scraper/utils"
)

type recorder struct {
	logs     []string
	statuses []string
	onLog    func(string)
}

func (r *recorder) Log(msg string) {
	r.logs = append(r.logs, msg)
	if r.onLog != nil {
		r.onLog(msg)
	}
}

func (r *recorder) UpdateStatus(msg string) { r.statuses = append(r.statuses, msg) }

func (r *recorder) logged(substr string) bool {
	for _, l := range r.logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func newCollector() *maps.Collector {
	logger := utils.Discard()
	return maps.NewCollector(maps.NewExtractor(logger), maps.Timing{}, 3, logger)
}

func TestCollectTwelveListingsInOrder(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(12), 7, 5)
	rec := &recorder{}

	records, err := newCollector().Collect(context.Background(), feed, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 12 {
		t.Fatalf("records: got %d, want 12", len(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("Listing %d", i+1); r.Name != want {
			t.Errorf("record %d: got %q, want %q", i, r.Name, want)
		}
	}
	// One growth pass, then three unchanged measurements.
	if feed.Measurements != 4 {
		t.Errorf("measurements: got %d, want 4", feed.Measurements)
	}
	if !rec.logged("All listings loaded.") {
		t.Error("missing completion log")
	}
}

func TestCollectStopsAfterThreeUnchangedPasses(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(100), 5, 5)
	feed.Extents = []int64{4200}

	records, err := newCollector().Collect(context.Background(), feed, &recorder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if feed.Measurements != 4 {
		t.Errorf("measurements: got %d, want 4", feed.Measurements)
	}
	if len(records) != 20 {
		t.Errorf("records: got %d, want 20 (4 passes of 5)", len(records))
	}
}

func TestCollectVisitsEachIndexOnce(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(6), 6, 0)
	feed.FailClick = map[int]bool{3: true}
	rec := &recorder{}

	records, err := newCollector().Collect(context.Background(), feed, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 5 {
		t.Errorf("records: got %d, want 5", len(records))
	}
	want := []int{0, 1, 2, 3, 4, 5}
	if fmt.Sprint(feed.Clicks) != fmt.Sprint(want) {
		t.Errorf("clicks: got %v, want %v", feed.Clicks, want)
	}
	if !rec.logged("Error collecting listing 3") {
		t.Errorf("missing skip log, got %v", rec.logs)
	}
	for _, r := range records {
		if r.Name == "Listing 4" {
			t.Error("failed listing must not produce a record")
		}
	}
}

func TestCollectWithoutResultsPanel(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(3), 3, 0)
	feed.NoPanel = true
	rec := &recorder{}

	records, err := newCollector().Collect(context.Background(), feed, rec)
	if err != nil {
		t.Fatalf("missing panel must not be an error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("records: got %d, want 0", len(records))
	}
	if len(feed.Clicks) != 0 {
		t.Errorf("no listing should be opened, got clicks %v", feed.Clicks)
	}
	if !rec.logged("Could not locate results panel") {
		t.Error("missing panel log")
	}
}

func TestCollectUsesFallbackPanel(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(4), 4, 0)
	feed.FallbackPanel = true

	records, err := newCollector().Collect(context.Background(), feed, &recorder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 4 {
		t.Errorf("records: got %d, want 4", len(records))
	}
}

func TestCollectToleratesMissingBackAndContainerScroll(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(9), 3, 3)
	feed.NoBack = true
	feed.NoContainerScroll = true

	records, err := newCollector().Collect(context.Background(), feed, &recorder{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 9 {
		t.Errorf("records: got %d, want 9", len(records))
	}
	if feed.Scrolls == 0 {
		t.Error("window scroll fallback was not used")
	}
}

func TestCollectFallsBackToDocumentHeight(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(9), 3, 3)
	feed.FailContainerHeight = true
	rec := &recorder{}

	records, err := newCollector().Collect(context.Background(), feed, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 9 {
		t.Errorf("records: got %d, want 9", len(records))
	}
	// Two growth passes, then three unchanged page extents.
	if feed.DocumentMeasurements != 5 || feed.Measurements != 5 {
		t.Errorf("page measurements: got %d of %d, want 5 of 5",
			feed.DocumentMeasurements, feed.Measurements)
	}
	if !rec.logged("All listings loaded.") {
		t.Error("collection did not converge")
	}
}

func TestCollectEnumerationFailureIsFatal(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(2), 2, 0)
	feed.FailCountAfter = 3

	records, err := newCollector().Collect(context.Background(), feed, &recorder{})
	if err == nil {
		t.Fatal("expected enumeration error")
	}
	if len(records) != 2 {
		t.Errorf("partial records: got %d, want 2", len(records))
	}
}

func TestCollectStopsOnCancel(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(10), 10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{onLog: func(msg string) {
		if strings.HasPrefix(msg, "Collected:") {
			cancel()
		}
	}}

	records, err := newCollector().Collect(ctx, feed, rec)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records: got %d, want 1", len(records))
	}
}
