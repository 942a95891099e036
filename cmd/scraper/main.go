package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-listings/config"
	"github.com/aluiziolira/go-scrape-listings/models"
	"github.com/aluiziolira/go-scrape-listings/pipeline"
	"github.com/aluiziolira/go-scrape-listings/scraper"
	"github.com/aluiziolira/go-scrape-listings/sheets"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaults := config.DefaultConfig()

	configFile := flag.String("config", "", "YAML config file (default: scraper.yaml if present)")
	urlTemplate := flag.String("url-template", defaults.ProductURLTemplate, "Product page URL template, {id} is replaced by the ASIN")
	ids := flag.String("ids", "", "Comma-separated ASINs to scrape instead of the configured list")
	minDelayMs := flag.Int("min-delay", int(defaults.MinDelay/time.Millisecond), "Minimum courtesy delay before each request (milliseconds)")
	maxDelayMs := flag.Int("max-delay", int(defaults.MaxDelay/time.Millisecond), "Maximum courtesy delay before each request (milliseconds)")
	rpm := flag.Int("rpm", defaults.RequestsPerMinute, "Maximum requests per minute (0 for no ceiling)")
	outputFile := flag.String("output", defaults.OutputFile, "Output file path")
	outputFormat := flag.String("format", defaults.OutputFormat, "Output format: csv, json, xlsx, dual, or none")
	clip := flag.Bool("clipboard", defaults.Clipboard, "Copy the normalised table to the clipboard")
	sheetID := flag.String("sheet-id", defaults.Sheets.SpreadsheetID, "Spreadsheet ID to upload to (empty skips the upload)")
	sheetName := flag.String("sheet-name", defaults.Sheets.SheetName, "Worksheet name")
	metricsAddr := flag.String("metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", defaults.Verbose, "Enable verbose logging")

	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// explicit flags win over file and environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "url-template":
			cfg.ProductURLTemplate = *urlTemplate
		case "ids":
			cfg.Identifiers = splitIDs(*ids)
		case "min-delay":
			cfg.MinDelay = time.Duration(*minDelayMs) * time.Millisecond
		case "max-delay":
			cfg.MaxDelay = time.Duration(*maxDelayMs) * time.Millisecond
		case "rpm":
			cfg.RequestsPerMinute = *rpm
		case "output":
			cfg.OutputFile = *outputFile
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "clipboard":
			cfg.Clipboard = *clip
		case "sheet-id":
			cfg.Sheets.SpreadsheetID = *sheetID
		case "sheet-name":
			cfg.Sheets.SheetName = *sheetName
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "v":
			cfg.Verbose = *verbose
		}
	})

	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting scrape",
		slog.String("url_template", cfg.ProductURLTemplate),
		slog.Int("items", len(cfg.Identifiers)),
		slog.Duration("min_delay", cfg.MinDelay),
		slog.Duration("max_delay", cfg.MaxDelay),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && s.Metrics != nil {
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, runErr := s.Run(ctx, cfg.Identifiers)
	// a second signal during output or upload must not be swallowed
	stop()
	interrupted := runErr != nil
	if interrupted {
		slog.Warn("scrape stopped early", slog.Any("error", runErr), slog.Int("records", len(result.Records)))
	}

	listings, pipelineMetrics, err := writeOutput(writer, cfg, result.Records)
	outputFailed := err != nil
	if outputFailed {
		slog.Error("writing output failed", slog.Any("error", err))
	}

	var upload *sheets.Result
	uploadFailed := false
	switch {
	case cfg.Sheets.SpreadsheetID == "":
		slog.Debug("no spreadsheet configured, skipping upload")
	case interrupted:
		slog.Warn("skipping upload of an interrupted run")
	case outputFailed:
		slog.Warn("skipping upload after output failure")
	default:
		uploadCtx, stopUpload := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		upload, err = uploadListings(uploadCtx, cfg, listings, s.Metrics)
		stopUpload()
		if err != nil {
			slog.Error("upload failed", slog.Any("error", err))
			uploadFailed = true
		}
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg, pipelineMetrics, upload)

	if interrupted || outputFailed || uploadFailed {
		os.Exit(1)
	}
}

// writeOutput normalises records, hands them to writer and releases it. A run
// without records leaves the output unvalidated rather than failing.
func writeOutput(writer pipeline.OutputWriter, cfg *config.Config, records []*models.ProductRecord) ([]*models.Listing, map[string]interface{}, error) {
	p := pipeline.NewPipeline(writer, cfg)
	// write errors are sticky and come back from Shutdown
	listings, _ := p.Process(records)
	err := p.Shutdown()
	return listings, p.GetMetrics(), err
}

func uploadListings(ctx context.Context, cfg *config.Config, listings []*models.Listing, metrics *scraper.Metrics) (*sheets.Result, error) {
	creds := sheets.NewFileCredentials(cfg.Sheets.ClientSecretFile, cfg.Sheets.TokenFile)
	uploader := sheets.NewUploader(creds, cfg.Sheets)

	res, err := uploader.Upload(ctx, listings)
	if err != nil {
		return nil, err
	}
	metrics.AddCells(res.UpdatedCells)
	slog.Info("uploaded listings",
		slog.String("sheet", cfg.Sheets.SheetName),
		slog.String("anchor", res.AnchorCell),
		slog.Int("rows", res.Rows),
		slog.Int64("cells", res.UpdatedCells),
	)
	return res, nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	var primary pipeline.OutputWriter
	var err error
	switch cfg.OutputFormat {
	case "json":
		primary, err = pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		primary, err = pipeline.NewCSVWriter(cfg.OutputFile)
	case "xlsx":
		primary, err = pipeline.NewXLSXWriter(cfg.OutputFile)
	case "dual":
		jsonFilename := strings.TrimSuffix(cfg.OutputFile, ".csv") + ".json"
		primary, err = pipeline.NewDualWriter(cfg.OutputFile, jsonFilename)
	case "none":
		primary = pipeline.DiscardWriter{}
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Clipboard {
		return primary, nil
	}
	clip, err := pipeline.NewClipboardWriter()
	if err != nil {
		// the file output is still useful without a clipboard
		slog.Warn("clipboard disabled", slog.Any("error", err))
		return primary, nil
	}
	return pipeline.NewMultiWriter(primary, clip), nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printSummary(result *models.ScrapeResult, cfg *config.Config, metrics map[string]interface{}, upload *sheets.Result) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")

	processed := int64(0)
	if v, ok := metrics["processed_records"].(int64); ok {
		processed = v
	}
	duration := result.EndTime.Sub(result.StartTime)

	fmt.Printf("  Requested:     %d\n", result.Requested)
	fmt.Printf("  Scraped:       %d\n", len(result.Records))
	fmt.Printf("  Normalised:    %d\n", processed)
	successRate := 0.0
	if result.Requested > 0 {
		successRate = float64(len(result.Records)) / float64(result.Requested) * 100
	}
	fmt.Printf("  Success rate:  %.2f%%\n", successRate)
	fmt.Printf("  Errors:        %d\n", result.ErrorCount)
	if len(result.FailedASINs) > 0 {
		fmt.Printf("  Failed ASINs:  %s\n", strings.Join(result.FailedASINs, ", "))
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	if prices, ok := metrics["prices"].(map[string]int); ok {
		fmt.Printf("  Prices:        %v\n", prices)
	}
	fmt.Printf("  Duration:      %v\n", duration.Round(time.Millisecond))
	if cfg.OutputFormat != "none" {
		fmt.Printf("  Output file:   %s\n", cfg.OutputFile)
	}
	if upload != nil {
		fmt.Printf("  Uploaded:      %d rows at %s!%s\n", upload.Rows, cfg.Sheets.SheetName, upload.AnchorCell)
		fmt.Printf("  Cells written: %d\n", upload.UpdatedCells)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
