package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maps-scraper/config"
	"maps-scraper/scraper/email"
	"maps-scraper/scraper/maps"
	"maps-scraper/services"
	"maps-scraper/storage"
	"maps-scraper/utils"
)

// consoleReporter prints pipeline progress through the logger.
type consoleReporter struct {
	logger *utils.Logger
}

func (r consoleReporter) Log(msg string)          { r.logger.Info("%s", msg) }
func (r consoleReporter) UpdateStatus(msg string) { r.logger.Info("\033[1;36m%s\033[0m", msg) }
func (r consoleReporter) Done(path string)        { r.logger.Info("Finished. Results saved to %s", path) }
func (r consoleReporter) Error(msg string)        { r.logger.Error("Run failed: %s", msg) }

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one scrape for the command-line args and returns the process
// exit code. Deferred cleanup runs before main exits.
func run(args []string) int {
	logger := utils.NewLogger()
	cfg := config.Load()

	fs := flag.NewFlagSet("maps-scraper", flag.ContinueOnError)
	queryFlag := fs.String("query", "", "search query, e.g. \"bakeries in Troy NY\"")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	query := strings.TrimSpace(*queryFlag)
	if query == "" {
		query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	}
	if query == "" {
		query = cfg.Query
	}
	if query == "" {
		logger.Error("No search query given. Use -query, positional arguments or SEARCH_QUERY.")
		return 2
	}

	logger.Info("=== Maps Scraping System starting ===")
	logger.Info("Config: query %q | headless: %v | output: %s | stable passes: %d | enrich delay: %dms",
		query, cfg.Headless, cfg.OutputPath, cfg.StablePasses, cfg.EnrichDelayMs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	var sinks []storage.RecordWriter
	if cfg.PostgresEnabled {
		pgWriter, err := storage.NewPostgresWriter(ctx, cfg.DSN(), query, utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return 1
		}
		defer pgWriter.Close()
		sinks = append(sinks, pgWriter)
		logger.Info("PostgreSQL sink enabled (table: listings)")
	}

	chromeOpts := maps.ChromeOptions{
		Headless:  cfg.Headless,
		ChromeBin: cfg.ChromeBin,
		UserAgent: cfg.UserAgent,
	}
	timing := maps.Timing{
		ScrollSettle: cfg.ScrollSettle,
		DetailLoad:   cfg.DetailLoad,
		BackSettle:   cfg.BackSettle,
		LazyLoad:     cfg.LazyLoad,
	}

	pipeline := services.NewPipeline(services.PipelineConfig{
		Browser: func(ctx context.Context) (maps.Page, error) {
			return maps.NewChromePage(ctx, chromeOpts, logger)
		},
		Collector:        maps.NewCollector(maps.NewExtractor(logger), timing, cfg.StablePasses, logger),
		Finder:           email.New(cfg.FetchTimeout, cfg.UserAgent, logger),
		Cleaner:          services.NewCleaner(cfg.DedupeByIdentity, logger),
		Exporter:         storage.NewExporter,
		Sinks:            sinks,
		Guard:            utils.NewAwakeGuard(cfg.KeepAwake, logger),
		OutputPath:       cfg.OutputPath,
		NavigationSettle: cfg.NavigationSettle,
		EnrichInterval:   cfg.EnrichInterval(),
	}, logger)

	outcome := <-pipeline.Start(ctx, query, consoleReporter{logger: logger})

	if outcome.Result != nil {
		summarySvc := services.NewSummaryService(logger)
		path := outcome.Result.OutputPath
		if outcome.Err != nil {
			path = ""
		}
		summarySvc.Print(summarySvc.Generate(query, path, outcome.Result.Records,
			outcome.Result.Duplicates, outcome.Result.StartedAt))
	}

	if outcome.Err != nil {
		return 1
	}
	fmt.Printf("  Done. Results → %s\n\n", cfg.OutputPath)
	return 0
}
