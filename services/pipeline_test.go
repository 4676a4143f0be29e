package services

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"maps-scraper/models"
	"maps-scraper/scraper/maps"
	"maps-scraper/scraper/maps/mapstest"
	"maps-scraper/storage"
	"maps-scraper/utils"
)

type fakeReporter struct {
	mu       sync.Mutex
	logs     []string
	statuses []string
	done     []string
	errs     []string
}

func (r *fakeReporter) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, msg)
}

func (r *fakeReporter) UpdateStatus(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, msg)
}

func (r *fakeReporter) Done(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = append(r.done, path)
}

func (r *fakeReporter) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

type fakeFinder struct {
	emails map[string]string
	calls  []string
	onFind func(website string)
}

func (f *fakeFinder) Find(_ context.Context, website string) (string, bool) {
	f.calls = append(f.calls, website)
	if f.onFind != nil {
		f.onFind(website)
	}
	e, ok := f.emails[website]
	return e, ok
}

type memWriter struct {
	records []models.ListingRecord
	err     error
	closed  bool
}

func (m *memWriter) WriteRecords(records []models.ListingRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memWriter) Close() error {
	m.closed = true
	return nil
}

type countingGuard struct{ acquired, released int }

func (g *countingGuard) Acquire() { g.acquired++ }
func (g *countingGuard) Release() { g.released++ }

func testPipeline(feed *mapstest.Feed, finder EmailLookup, cfg PipelineConfig) *Pipeline {
	logger := utils.Discard()
	cfg.Browser = func(context.Context) (maps.Page, error) { return feed, nil }
	cfg.Collector = maps.NewCollector(maps.NewExtractor(logger), maps.Timing{}, 3, logger)
	cfg.Finder = finder
	if cfg.OutputPath == "" {
		cfg.OutputPath = "memory.xlsx"
	}
	return NewPipeline(cfg, logger)
}

func memExporter(w *memWriter) ExporterFactory {
	return func(string) (storage.RecordWriter, error) { return w, nil }
}

func TestRunBakeriesEndToEnd(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(12), 7, 5)
	feed.Listings[0].Email = "owner@site1.example.com"
	finder := &fakeFinder{emails: map[string]string{
		"https://site2.example.com/": "hello@site2.example.com",
		"https://site5.example.com/": "a@site5.example.com, b@site5.example.com",
	}}
	path := filepath.Join(t.TempDir(), "bakeries.csv")
	guard := &countingGuard{}
	rep := &fakeReporter{}

	p := testPipeline(feed, finder, PipelineConfig{OutputPath: path, Guard: guard})
	res, err := p.Run(context.Background(), "bakeries in Troy NY", rep)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if want := "https://www.google.com/maps/search/bakeries%20in%20Troy%20NY/"; len(feed.Navigated) != 1 || feed.Navigated[0] != want {
		t.Errorf("navigated: got %v, want [%s]", feed.Navigated, want)
	}
	if feed.Closed != 1 {
		t.Errorf("browser closed %d times, want 1", feed.Closed)
	}
	if guard.acquired != 1 || guard.released != 1 {
		t.Errorf("guard: acquired %d released %d", guard.acquired, guard.released)
	}
	if len(finder.calls) != 12 {
		t.Errorf("finder calls: got %d, want 12", len(finder.calls))
	}
	if len(rep.done) != 1 || rep.done[0] != path || len(rep.errs) != 0 {
		t.Errorf("terminal signals: done %v errs %v", rep.done, rep.errs)
	}
	if len(res.Records) != 12 {
		t.Errorf("result records: got %d", len(res.Records))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 13 {
		t.Fatalf("export rows: got %d, want 13", len(rows))
	}
	for i, row := range rows[1:] {
		if row[0] != feed.Listings[i].Name {
			t.Errorf("row %d: name %q, want %q", i, row[0], feed.Listings[i].Name)
		}
	}
	if rows[1][4] != "owner@site1.example.com" || rows[1][5] != "" {
		t.Errorf("row 1: got %v", rows[1])
	}
	if rows[2][5] != "hello@site2.example.com" {
		t.Errorf("row 2 scraped email: got %q", rows[2][5])
	}
	if rows[5][5] != "a@site5.example.com, b@site5.example.com" {
		t.Errorf("row 5 scraped email: got %q", rows[5][5])
	}
	if rows[3][4] != models.NotAvailable {
		t.Errorf("row 3 email: got %q, want sentinel", rows[3][4])
	}

	last := rep.statuses[len(rep.statuses)-1]
	if last != "Scraping emails: 12/12" {
		t.Errorf("last status: got %q", last)
	}
}

func TestRunClosesBrowserOnCollectFailure(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(3), 3, 0)
	feed.FailCountAfter = 1
	finder := &fakeFinder{}
	out := &memWriter{}
	rep := &fakeReporter{}

	_, err := testPipeline(feed, finder, PipelineConfig{Exporter: memExporter(out)}).
		Run(context.Background(), "q", rep)
	if err == nil {
		t.Fatal("expected error")
	}
	if feed.Closed != 1 {
		t.Errorf("browser closed %d times, want 1", feed.Closed)
	}
	if len(rep.errs) != 1 || len(rep.done) != 0 {
		t.Errorf("terminal signals: done %v errs %v", rep.done, rep.errs)
	}
	if len(finder.calls) != 0 || out.closed {
		t.Error("enrichment and export must not run after a fatal error")
	}
}

func TestRunBrowserStartFailure(t *testing.T) {
	logger := utils.Discard()
	rep := &fakeReporter{}
	p := NewPipeline(PipelineConfig{
		Browser: func(context.Context) (maps.Page, error) {
			return nil, errors.New("no chrome")
		},
		Collector: maps.NewCollector(maps.NewExtractor(logger), maps.Timing{}, 3, logger),
		Finder:    &fakeFinder{},
	}, logger)

	_, err := p.Run(context.Background(), "q", rep)
	if err == nil || !strings.Contains(err.Error(), "no chrome") {
		t.Fatalf("got %v", err)
	}
	if len(rep.errs) != 1 {
		t.Errorf("errors reported: %d", len(rep.errs))
	}
}

func TestRunRecoversPanic(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(2), 2, 0)
	finder := &fakeFinder{onFind: func(string) { panic("boom") }}
	rep := &fakeReporter{}
	guard := &countingGuard{}

	_, err := testPipeline(feed, finder, PipelineConfig{Exporter: memExporter(&memWriter{}), Guard: guard}).
		Run(context.Background(), "q", rep)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected recovered panic, got %v", err)
	}
	if feed.Closed != 1 || guard.released != 1 {
		t.Errorf("cleanup: closed %d released %d", feed.Closed, guard.released)
	}
	if len(rep.errs) != 1 {
		t.Errorf("errors reported: %d", len(rep.errs))
	}
}

func TestRunExportFailure(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(2), 2, 0)
	rep := &fakeReporter{}
	failing := func(string) (storage.RecordWriter, error) { return nil, errors.New("disk full") }

	_, err := testPipeline(feed, &fakeFinder{}, PipelineConfig{Exporter: failing}).
		Run(context.Background(), "q", rep)
	if err == nil {
		t.Fatal("expected export error")
	}
	if len(rep.errs) != 1 || len(rep.done) != 0 {
		t.Errorf("terminal signals: done %v errs %v", rep.done, rep.errs)
	}
}

// brokenWorkbook writes its rows and then fails, like a workbook that runs
// out of space mid-export.
type brokenWorkbook struct {
	*storage.XLSXWriter
}

func (b brokenWorkbook) WriteRecords(records []models.ListingRecord) error {
	if err := b.XLSXWriter.WriteRecords(records); err != nil {
		return err
	}
	return errors.New("disk full")
}

func TestRunFailedExportLeavesNoPartialFile(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(3), 3, 0)
	path := filepath.Join(t.TempDir(), "results.xlsx")
	rep := &fakeReporter{}
	exporter := func(path string) (storage.RecordWriter, error) {
		w, err := storage.NewXLSXWriter(path)
		if err != nil {
			return nil, err
		}
		return brokenWorkbook{w}, nil
	}

	_, err := testPipeline(feed, &fakeFinder{}, PipelineConfig{OutputPath: path, Exporter: exporter}).
		Run(context.Background(), "q", rep)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected export error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial workbook left at %s (stat err: %v)", path, err)
	}
	if len(rep.errs) != 1 || len(rep.done) != 0 {
		t.Errorf("terminal signals: done %v errs %v", rep.done, rep.errs)
	}
}

func TestRunFailedExportClosesPlainWriter(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(2), 2, 0)
	out := &memWriter{err: errors.New("disk full")}

	_, err := testPipeline(feed, &fakeFinder{}, PipelineConfig{Exporter: memExporter(out)}).
		Run(context.Background(), "q", &fakeReporter{})
	if err == nil {
		t.Fatal("expected export error")
	}
	if !out.closed {
		t.Error("writer without Discard should still be closed")
	}
}

func TestRunMissingPanelExportsEmptyTable(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(2), 2, 0)
	feed.NoPanel = true
	out := &memWriter{}
	rep := &fakeReporter{}

	_, err := testPipeline(feed, &fakeFinder{}, PipelineConfig{Exporter: memExporter(out)}).
		Run(context.Background(), "q", rep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.records) != 0 || !out.closed {
		t.Errorf("export: %d records, closed %v", len(out.records), out.closed)
	}
	if len(rep.done) != 1 {
		t.Errorf("done: %v", rep.done)
	}
}

func TestRunStopsEnrichmentOnCancel(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(5), 5, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	finder := &fakeFinder{onFind: func(string) { cancel() }}
	rep := &fakeReporter{}

	_, err := testPipeline(feed, finder, PipelineConfig{Exporter: memExporter(&memWriter{})}).
		Run(ctx, "q", rep)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(finder.calls) != 1 {
		t.Errorf("finder calls: got %d, want 1", len(finder.calls))
	}
}

func TestRunDedupesAndMirrorsToSinks(t *testing.T) {
	listings := mapstest.Named(4)
	listings[2] = listings[0]
	feed := mapstest.NewFeed(listings, 4, 0)
	out := &memWriter{}
	sink := &memWriter{}
	broken := &memWriter{err: errors.New("db down")}

	res, err := testPipeline(feed, &fakeFinder{}, PipelineConfig{
		Exporter: memExporter(out),
		Sinks:    []storage.RecordWriter{broken, sink},
		Cleaner:  NewCleaner(true, utils.Discard()),
	}).Run(context.Background(), "q", &fakeReporter{})
	if err != nil {
		t.Fatalf("sink failure must not fail the run: %v", err)
	}
	if res.Duplicates != 1 || len(out.records) != 3 {
		t.Errorf("duplicates %d, exported %d", res.Duplicates, len(out.records))
	}
	if len(sink.records) != 3 {
		t.Errorf("sink records: got %d, want 3", len(sink.records))
	}
}

func TestStartDeliversOneOutcome(t *testing.T) {
	feed := mapstest.NewFeed(mapstest.Named(3), 3, 0)
	rep := &fakeReporter{}

	ch := testPipeline(feed, &fakeFinder{}, PipelineConfig{Exporter: memExporter(&memWriter{})}).
		Start(context.Background(), "q", rep)

	outcome := <-ch
	if outcome.Err != nil {
		t.Fatalf("unexpected error: %v", outcome.Err)
	}
	if len(outcome.Result.Records) != 3 {
		t.Errorf("records: got %d", len(outcome.Result.Records))
	}
	if _, open := <-ch; open {
		t.Error("channel should be closed after the outcome")
	}
}
