package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/PentesterFlow/OpenMirror/internal/errors"
	"github.com/PentesterFlow/OpenMirror/internal/output"
	"github.com/PentesterFlow/OpenMirror/internal/shutdown"
	"github.com/PentesterFlow/OpenMirror/internal/state"
	"github.com/PentesterFlow/OpenMirror/pkg/crawler"
)

var (
	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Mirror flags
	outputDir       string
	domain          string
	renderer        string
	maxPages        int
	maxDepth        int
	rateLimit       float64
	settleDelay     time.Duration
	renderTimeout   time.Duration
	userAgent       string
	includePatterns []string
	excludePatterns []string
	followSession   bool
	stateFile       string
	jsonOutput      bool
	detailed        bool
	noProgress      bool

	// Status flags
	statusJSON bool
)

const maxListedErrors = 10

func main() {
	rootCmd := &cobra.Command{
		Use:   "openmirror",
		Short: "OpenMirror - Offline Website Archiver",
		Long: `OpenMirror renders every page of a single website and writes a
browsable offline copy: pages, stylesheets, scripts, images and fonts are
stored locally and every reference is rewritten to a relative path.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	mirrorCmd := &cobra.Command{
		Use:   "mirror [url]",
		Short: "Mirror a website into a local directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runMirror,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run stored in a state file",
		RunE:  runStatus,
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Mirror flags
	mirrorCmd.Flags().StringVarP(&outputDir, "output", "o", "site", "Output directory (cleared before the run)")
	mirrorCmd.Flags().StringVar(&domain, "domain", "", "Exact host to archive (default: host of url)")
	mirrorCmd.Flags().StringVar(&renderer, "renderer", crawler.RendererBrowser, "Page renderer: browser or http")
	mirrorCmd.Flags().IntVar(&maxPages, "max-pages", 0, "Maximum pages to archive (0 = unlimited)")
	mirrorCmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum link depth (0 = unlimited)")
	mirrorCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 0, "Requests per second (0 = unlimited)")
	mirrorCmd.Flags().DurationVar(&settleDelay, "settle-delay", 0, "Wait after page load before capturing the DOM")
	mirrorCmd.Flags().DurationVar(&renderTimeout, "render-timeout", 0, "Per-page render timeout")
	mirrorCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header")
	mirrorCmd.Flags().StringSliceVar(&includePatterns, "include", nil, "Only queue page URLs matching these regexes")
	mirrorCmd.Flags().StringSliceVar(&excludePatterns, "exclude", nil, "Never queue page URLs matching these regexes")
	mirrorCmd.Flags().BoolVar(&followSession, "follow-session-links", false, "Queue logout, unsubscribe and similar links")
	mirrorCmd.Flags().StringVar(&stateFile, "state-file", "", "Persist the run record (.db, .json or .json.gz)")
	mirrorCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	mirrorCmd.Flags().BoolVar(&detailed, "detailed", false, "Include every page and asset in the JSON report")
	mirrorCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress line")

	// Status flags
	statusCmd.Flags().StringVar(&stateFile, "state-file", "", "State file to read")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the run record as JSON")
	statusCmd.MarkFlagRequired("state-file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(mirrorCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMirror(cmd *cobra.Command, args []string) error {
	config := crawler.DefaultConfig()

	// Load config file if provided; flags given explicitly take precedence
	if configFile != "" {
		fileConfig, err := crawler.LoadFromFile(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	opts := []crawler.Option{
		crawler.WithConfig(config),
		crawler.WithTarget(args[0]),
	}
	opts = append(opts, flagOptions(cmd, config)...)

	if !noProgress && !jsonOutput && !verbose && !debug {
		opts = append(opts, crawler.WithProgress(os.Stderr))
	}

	c, err := crawler.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create mirror: %w", err)
	}

	handler := shutdown.New(context.Background(), shutdown.Config{
		OnSignal: func(sig os.Signal) {
			fmt.Fprintf(os.Stderr, "\nReceived %s, stopping after the current page...\n", sig)
		},
	})
	defer handler.Shutdown()

	if !jsonOutput {
		printBanner(os.Stderr, c.Config())
	}

	summary, runErr := c.Start(handler.Context())
	if summary == nil {
		return fmt.Errorf("mirror failed: %w", runErr)
	}

	writer := output.NewWriter(os.Stdout, output.Config{
		Format:    reportFormat(jsonOutput),
		Pretty:    true,
		Detailed:  detailed,
		MaxErrors: maxListedErrors,
	})
	if err := writer.WriteRecord(c.Record()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		if errors.IsFatal(runErr) {
			return fmt.Errorf("mirror aborted: %w", runErr)
		}
		return fmt.Errorf("mirror failed: %w", runErr)
	}
	if summary.Status == state.StatusInterrupted {
		fmt.Fprintln(os.Stderr, "Mirror interrupted; the output tree is partial.")
	}

	return nil
}

// flagOptions returns options for the flags set on the command line, so a
// config file value is only replaced when the flag was given explicitly.
func flagOptions(cmd *cobra.Command, config *crawler.Config) []crawler.Option {
	flags := cmd.Flags()
	var opts []crawler.Option

	if flags.Changed("output") || configFile == "" {
		opts = append(opts, crawler.WithOutputDir(outputDir))
	}
	if flags.Changed("domain") {
		opts = append(opts, crawler.WithDomain(domain))
	}
	if flags.Changed("renderer") {
		opts = append(opts, crawler.WithRendererKind(renderer))
	}
	if flags.Changed("max-pages") {
		opts = append(opts, crawler.WithMaxPages(maxPages))
	}
	if flags.Changed("max-depth") {
		opts = append(opts, crawler.WithMaxDepth(maxDepth))
	}
	if flags.Changed("rate-limit") {
		opts = append(opts, crawler.WithRateLimit(rateLimit, config.RateLimit.Burst))
	}
	if flags.Changed("settle-delay") {
		opts = append(opts, crawler.WithSettleDelay(settleDelay))
	}
	if flags.Changed("render-timeout") {
		opts = append(opts, crawler.WithRenderTimeout(renderTimeout))
	}
	if flags.Changed("user-agent") {
		opts = append(opts, crawler.WithUserAgent(userAgent))
	}
	if len(includePatterns) > 0 {
		opts = append(opts, crawler.WithIncludePatterns(includePatterns...))
	}
	if len(excludePatterns) > 0 {
		opts = append(opts, crawler.WithExcludePatterns(excludePatterns...))
	}
	if flags.Changed("follow-session-links") {
		opts = append(opts, crawler.WithSessionLinks(followSession))
	}
	if flags.Changed("state-file") {
		opts = append(opts, crawler.WithStateFile(stateFile))
	}
	if verbose {
		opts = append(opts, crawler.WithVerbose(true))
	}
	if debug {
		opts = append(opts, crawler.WithDebug(true))
	}

	return opts
}

func runStatus(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(stateFile); err != nil {
		return fmt.Errorf("state file %s: %w", stateFile, err)
	}

	store, err := state.OpenStore(stateFile)
	if err != nil {
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer store.Close()

	record, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if record == nil {
		fmt.Printf("No run recorded in %s\n", stateFile)
		return nil
	}

	writer := output.NewWriter(os.Stdout, output.Config{
		Format:    reportFormat(statusJSON),
		Pretty:    true,
		Detailed:  statusJSON,
		MaxErrors: maxListedErrors,
	})
	return writer.WriteRecord(record)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := "openmirror.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	config := crawler.DefaultConfig()
	config.Target = "https://example.com/"
	if err := config.SaveToFile(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote default configuration to %s\n", path)
	return nil
}

func reportFormat(asJSON bool) string {
	if asJSON {
		return "json"
	}
	return "text"
}

func printBanner(w io.Writer, config *crawler.Config) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OpenMirror v1.0 - Starting mirror...")
	fmt.Fprintf(w, "Target:     %s\n", config.Target)
	fmt.Fprintf(w, "Domain:     %s\n", config.EffectiveDomain())
	fmt.Fprintf(w, "Output:     %s\n", config.OutputDir)
	fmt.Fprintf(w, "Renderer:   %s\n", config.Renderer)
	if config.RateLimit.RequestsPerSecond > 0 {
		fmt.Fprintf(w, "Rate Limit: %.1f req/s\n", config.RateLimit.RequestsPerSecond)
	}
	fmt.Fprintln(w)
}
