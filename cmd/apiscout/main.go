package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/apiscout/apiscout/internal/report"
	"github.com/apiscout/apiscout/internal/shutdown"
	"github.com/apiscout/apiscout/pkg/scanner"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Scan flags
	outputDir      string
	resultsDir     string
	analyzeOnly    bool
	noBrowser      bool
	concurrency    int
	rateLimit      float64
	timeout        int
	allowedDomains []string
	userAgent      string
	noHTML         bool
	noOpenAPI      bool
	skipCached     bool
	analyzeTarget  string

	// Display flags
	showProgress bool
	noProgress   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "apiscout",
		Short: "apiscout - API endpoint discovery from JavaScript bundles",
		Long: `apiscout downloads the JavaScript bundles of a target web application,
scans their text for API endpoint references (paths, query parameters, HTTP
methods, request-body shapes), and emits JSON findings plus an HTML report
and an OpenAPI 3.0 document.`,
		Version: version,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [target]",
		Short: "Scan a target URL",
		Long:  "Render the target, download its JavaScript bundles, and extract API endpoint references.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScan,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze previously downloaded scripts",
		Long:  "Run the extraction heuristics over an existing scripts directory without re-downloading.",
		RunE:  runAnalyze,
	}

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate reports from existing results",
		Long:  "Regenerate the HTML report and OpenAPI document from a previously written results JSON.",
		RunE:  runReport,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Scan flags
	scanCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "downloaded_js", "Directory for downloaded scripts")
	scanCmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Directory for result artifacts")
	scanCmd.Flags().BoolVar(&analyzeOnly, "analyze-only", false, "Skip rendering and downloading, reuse existing scripts")
	scanCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Fetch raw HTML instead of rendering with a browser")
	scanCmd.Flags().IntVar(&concurrency, "concurrency", 8, "Number of concurrent downloads")
	scanCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 10, "Requests per second")
	scanCmd.Flags().IntVarP(&timeout, "timeout", "t", 20, "Request timeout in seconds")
	scanCmd.Flags().StringArrayVar(&allowedDomains, "allowed-domain", nil, "Extra domains treated as first-party (repeatable)")
	scanCmd.Flags().StringVar(&userAgent, "user-agent", "", "User agent string")
	scanCmd.Flags().BoolVar(&noHTML, "no-html", false, "Skip the HTML report")
	scanCmd.Flags().BoolVar(&noOpenAPI, "no-openapi", false, "Skip the OpenAPI document")
	scanCmd.Flags().BoolVar(&skipCached, "skip-cached", false, "Skip URLs already recorded in the download manifest")

	// Display flags
	scanCmd.Flags().BoolVar(&showProgress, "progress", true, "Show progress bar during downloads")
	scanCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable progress bar (use verbose logging instead)")

	// Analyze flags
	analyzeCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "downloaded_js", "Directory of previously downloaded scripts")
	analyzeCmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Directory for result artifacts")
	analyzeCmd.Flags().StringVar(&analyzeTarget, "target", "", "Target URL used for first-party classification")
	analyzeCmd.Flags().BoolVar(&noHTML, "no-html", false, "Skip the HTML report")
	analyzeCmd.Flags().BoolVar(&noOpenAPI, "no-openapi", false, "Skip the OpenAPI document")

	// Report flags
	reportCmd.Flags().StringVar(&resultsDir, "results-dir", "results", "Directory holding the results JSON")
	reportCmd.Flags().BoolVar(&noHTML, "no-html", false, "Skip the HTML report")
	reportCmd.Flags().BoolVar(&noOpenAPI, "no-openapi", false, "Skip the OpenAPI document")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildConfig(cmd *cobra.Command, target string) (*scanner.Config, error) {
	config := scanner.DefaultConfig()

	// Load config file first so flags override it
	if configFile != "" {
		fileConfig, err := scanner.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if target != "" {
		config.Target = target
	}

	if cmd.Flags().Changed("output-dir") || config.Output.ScriptsDir == "" {
		config.Output.ScriptsDir = outputDir
	}
	if cmd.Flags().Changed("results-dir") || config.Output.ResultsDir == "" {
		config.Output.ResultsDir = resultsDir
	}
	if cmd.Flags().Changed("concurrency") {
		config.Concurrency = concurrency
	}
	if cmd.Flags().Changed("rate-limit") {
		config.RateLimit.RequestsPerSecond = rateLimit
	}
	if cmd.Flags().Changed("timeout") {
		config.Timeout = time.Duration(timeout) * time.Second
	}
	if userAgent != "" {
		config.UserAgent = userAgent
		config.Browser.UserAgent = userAgent
	}

	config.AnalyzeOnly = analyzeOnly
	config.NoBrowser = noBrowser
	config.Scope.AllowedDomains = append(config.Scope.AllowedDomains, allowedDomains...)
	config.Output.HTML = !noHTML
	config.Output.OpenAPI = !noOpenAPI
	config.Cache.SkipCached = skipCached
	config.Verbose = verbose
	config.Debug = debug

	// Keep the manifest alongside the other artifacts
	if config.Cache.Path == scanner.DefaultConfig().Cache.Path {
		config.Cache.Path = filepath.Join(config.Output.ResultsDir, "manifest.db")
	}

	return config, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	config, err := buildConfig(cmd, target)
	if err != nil {
		return err
	}

	enableProgress := showProgress && !noProgress && !verbose && !config.AnalyzeOnly

	s, err := scanner.New(
		scanner.WithConfig(config),
		scanner.WithProgress(enableProgress),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := shutdown.New(shutdown.Config{
		Timeout: 10 * time.Second,
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		OnShutdownStart: func() {
			fmt.Fprintf(os.Stderr, "\nReceived interrupt signal, stopping...\n")
		},
	})
	h.RegisterFunc("cancel-scan", cancel)
	go h.WaitWithContext(ctx)

	pterm.DefaultHeader.Printfln("apiscout v%s", version)
	pterm.Info.Printfln("Target: %s", config.Target)

	result, err := s.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("scan interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	printResult(s, result)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	analyzeOnly = true
	config, err := buildConfig(cmd, analyzeTarget)
	if err != nil {
		return err
	}

	s, err := scanner.New(scanner.WithConfig(config))
	if err != nil {
		return err
	}

	result, err := s.Run(context.Background())
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printResult(s, result)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	jsonPath := filepath.Join(resultsDir, scanner.JSONResultsFile)
	result, err := report.LoadJSON(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to load results from %s: %w", jsonPath, err)
	}

	if !noHTML {
		htmlPath := filepath.Join(resultsDir, scanner.HTMLReportFile)
		if err := report.WriteHTML(htmlPath, result); err != nil {
			return fmt.Errorf("failed to write HTML report: %w", err)
		}
		pterm.Success.Printfln("Wrote %s", htmlPath)
	}

	if !noOpenAPI {
		specPath := filepath.Join(resultsDir, scanner.OpenAPIFile)
		if err := report.WriteOpenAPI(specPath, result); err != nil {
			return fmt.Errorf("failed to write OpenAPI document: %w", err)
		}
		pterm.Success.Printfln("Wrote %s", specPath)
	}

	return nil
}

func printResult(s *scanner.Scanner, result *scanner.ScanResult) {
	report.PrintSummary(s.Summary(result))
	report.PrintEndpoints(result.Analysis())
	if len(result.FirstPartyDomains) > 0 || len(result.ExternalDomains) > 0 {
		report.PrintDomains(result.FirstPartyDomains, result.ExternalDomains)
	}
}
