package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"maps-scraper/models"
	"maps-scraper/scraper/maps"
	"maps-scraper/storage"
	"maps-scraper/utils"
)

// Reporter receives the one-way progress signals of a run. Done or Error is
// called exactly once, last.
type Reporter interface {
	maps.Progress
	Done(outputPath string)
	Error(msg string)
}

// BrowserFactory opens a browser session for one run.
type BrowserFactory func(ctx context.Context) (maps.Page, error)

// ExporterFactory opens the tabular export at path.
type ExporterFactory func(path string) (storage.RecordWriter, error)

// EmailLookup finds contact emails on a website.
type EmailLookup interface {
	Find(ctx context.Context, website string) (string, bool)
}

// PipelineConfig wires the collaborators of a Pipeline. Sinks, Guard and
// Cleaner are optional.
type PipelineConfig struct {
	Browser          BrowserFactory
	Collector        *maps.Collector
	Finder           EmailLookup
	Cleaner          *Cleaner
	Exporter         ExporterFactory
	Sinks            []storage.RecordWriter
	Guard            utils.AwakeGuard
	OutputPath       string
	NavigationSettle time.Duration
	EnrichInterval   time.Duration
}

// RunResult describes a finished (or aborted) run.
type RunResult struct {
	Query      string
	OutputPath string
	Records    []models.ListingRecord
	Duplicates int
	StartedAt  time.Time
}

// Outcome is delivered by Start when the run ends.
type Outcome struct {
	Result *RunResult
	Err    error
}

// Pipeline runs collection, enrichment and export for one query at a time.
type Pipeline struct {
	cfg     PipelineConfig
	limiter *rate.Limiter
	logger  *utils.Logger
}

func NewPipeline(cfg PipelineConfig, logger *utils.Logger) *Pipeline {
	if cfg.Guard == nil {
		cfg.Guard = utils.NoopAwakeGuard{}
	}
	if cfg.Cleaner == nil {
		cfg.Cleaner = NewCleaner(false, logger)
	}
	if cfg.Exporter == nil {
		cfg.Exporter = storage.NewExporter
	}

	limit := rate.Inf
	if cfg.EnrichInterval > 0 {
		limit = rate.Every(cfg.EnrichInterval)
	}

	return &Pipeline{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Start runs the pipeline on its own goroutine. The channel receives exactly
// one Outcome and is then closed.
func (p *Pipeline) Start(ctx context.Context, query string, reporter Reporter) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		res, err := p.Run(ctx, query, reporter)
		out <- Outcome{Result: res, Err: err}
	}()
	return out
}

// Run collects the listings for query, enriches them with website emails and
// writes the export. Any failure aborts the rest of the run, is reported once
// through reporter.Error and returned. The browser session is always closed.
func (p *Pipeline) Run(ctx context.Context, query string, reporter Reporter) (res *RunResult, err error) {
	res = &RunResult{Query: query, OutputPath: p.cfg.OutputPath, StartedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: panic: %v", r)
		}
		if err != nil {
			p.logger.Error("[pipeline] %v", err)
			reporter.Error(err.Error())
		}
	}()

	p.cfg.Guard.Acquire()
	defer p.cfg.Guard.Release()

	p.logger.Info("[pipeline] Starting run for %q", query)

	records, err := p.collect(ctx, query, reporter)
	if err != nil {
		res.Records = records
		return res, err
	}

	records, res.Duplicates = p.cfg.Cleaner.Clean(records)
	res.Records = records

	if err := p.enrich(ctx, records, reporter); err != nil {
		return res, err
	}

	if err := p.export(ctx, records); err != nil {
		return res, err
	}

	reporter.Log(fmt.Sprintf("Saved results to %s", p.cfg.OutputPath))
	p.logger.Info("[pipeline] Exported %d listings to %s", len(records), p.cfg.OutputPath)
	reporter.Done(p.cfg.OutputPath)
	return res, nil
}

// collect owns the browser session for the collection phase only.
func (p *Pipeline) collect(ctx context.Context, query string, reporter Reporter) ([]models.ListingRecord, error) {
	page, err := p.cfg.Browser(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: open browser: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			p.logger.Warn("[pipeline] Closing browser: %v", err)
		}
	}()

	url := maps.SearchURL(query)
	p.logger.Debug("[pipeline] Navigating to %s", url)
	if err := page.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if err := wait(ctx, p.cfg.NavigationSettle); err != nil {
		return nil, err
	}

	records, err := p.cfg.Collector.Collect(ctx, page, reporter)
	if err != nil {
		return records, fmt.Errorf("pipeline: collect: %w", err)
	}
	p.logger.Info("[pipeline] Collected %d listings", len(records))
	return records, nil
}

// enrich sets ScrapedEmail on every record in place, in order.
func (p *Pipeline) enrich(ctx context.Context, records []models.ListingRecord, reporter Reporter) error {
	for i := range records {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("pipeline: enrich: %w", err)
		}
		reporter.UpdateStatus(fmt.Sprintf("Scraping emails: %d/%d", i+1, len(records)))

		website := records[i].Website
		shown := "None"
		if found, ok := p.cfg.Finder.Find(ctx, website); ok {
			records[i].ScrapedEmail = &found
			shown = found
		}
		reporter.Log(fmt.Sprintf("Website: %s → Email: %s", website, shown))
	}
	return nil
}

func (p *Pipeline) export(ctx context.Context, records []models.ListingRecord) error {
	w, err := p.cfg.Exporter(p.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("pipeline: export: %w", err)
	}
	if err := w.WriteRecords(records); err != nil {
		abandon(w, p.logger)
		return fmt.Errorf("pipeline: export: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("pipeline: export: %w", err)
	}

	// Extra sinks mirror the export; their failures do not fail the run.
	for _, sink := range p.cfg.Sinks {
		if ctx.Err() != nil {
			break
		}
		if err := sink.WriteRecords(records); err != nil {
			p.logger.Warn("[pipeline] Sink write failed: %v", err)
		}
	}
	return nil
}

// abandon releases a writer whose export failed, dropping the partial file
// when the writer supports it.
func abandon(w storage.RecordWriter, logger *utils.Logger) {
	d, ok := w.(storage.Discarder)
	if !ok {
		_ = w.Close()
		return
	}
	if err := d.Discard(); err != nil {
		logger.Warn("[pipeline] Discarding partial export: %v", err)
	}
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
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
