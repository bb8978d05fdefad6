package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	exitCodeSuccess = 0
	exitCodeRuntime = 1
	exitCodeUsage   = 2
)

type cliArgs struct {
	configPath          string
	generateConfig      bool
	timeout             int
	logLevel            string
	format              string
	outputFile          string
	progress            bool
	tenancyID           string
	includeCompartments string
	excludeCompartments string
	compartmentWorkers  int
	detailWorkers       int

	diffOld      string
	diffNew      string
	diffFormat   string
	diffDetailed bool
	diffOutput   string
}

func main() {
	os.Exit(run())
}

func run() int {
	args, setFlags := parseFlags()

	if args.generateConfig {
		if err := GenerateDefaultConfigFile("oci-checkmk.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate configuration file: %v\n", err)
			return exitCodeRuntime
		}
		fmt.Println("Generated default configuration file: oci-checkmk.yaml")
		return exitCodeSuccess
	}

	if args.configPath != "" {
		os.Setenv("OCI_CHECKMK_CONFIG_FILE", args.configPath)
	}

	config, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitCodeUsage
	}

	MergeWithCLIArgs(config, overridesFromFlags(args, setFlags))
	if err := validateConfig(config); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitCodeUsage
	}

	logger, err := newLogger(config.General.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return exitCodeUsage
	}
	defer logger.Sync()

	// Diff mode compares two exported snapshots and never talks to OCI.
	if args.diffOld != "" || args.diffNew != "" {
		return runDiff(args, logger)
	}

	return runWalk(config, logger)
}

func runDiff(args cliArgs, logger *zap.Logger) int {
	if args.diffOld == "" || args.diffNew == "" {
		fmt.Fprintln(os.Stderr, "diff mode requires both --diff-old and --diff-new")
		return exitCodeUsage
	}

	opts := DiffOptions{
		Format:     args.diffFormat,
		Detailed:   args.diffDetailed,
		OutputFile: args.diffOutput,
	}

	result, err := CompareSnapshots(args.diffOld, args.diffNew, opts)
	if err != nil {
		logger.Error("snapshot comparison failed", zap.Error(err))
		return exitCodeRuntime
	}

	if err := WriteDiffResult(result, opts); err != nil {
		logger.Error("failed to write diff result", zap.Error(err))
		return exitCodeRuntime
	}

	return exitCodeSuccess
}

func runWalk(config *AppConfig, logger *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, time.Duration(config.General.Timeout)*time.Second)
	defer cancel()

	client, err := NewOCIClient(ctx, config.Auth)
	if err != nil {
		logger.Error("failed to initialize OCI clients", zap.Error(err))
		return exitCodeRuntime
	}

	tenancyID := config.Tenancy.ID
	if tenancyID == "" {
		tenancyID = client.TenancyID()
	}
	if tenancyID == "" {
		logger.Error("tenancy OCID not available from configuration or auth provider")
		return exitCodeUsage
	}

	tenancyName, err := client.TenancyName(ctx)
	if err != nil {
		logger.Warn("failed to resolve tenancy name", zap.Error(err))
		tenancyName = "tenancy-root"
	}

	walker := NewWalker(client, config, logger)
	snapshot, err := walker.Run(ctx, tenancyID, tenancyName)
	if err != nil {
		if ctx.Err() != nil {
			logger.Error("walk cancelled before completion", zap.Error(ctx.Err()))
		} else {
			logger.Error("walk failed", zap.Error(err))
		}
		return exitCodeRuntime
	}

	if err := WriteSnapshot(snapshot, config.General.OutputFormat, config.Output.File); err != nil {
		logger.Error("failed to write snapshot", zap.Error(err))
		return exitCodeRuntime
	}

	// Recorded failures do not fail the run, but the operator should
	// know the snapshot is incomplete.
	if len(snapshot.Failures) > 0 {
		logger.Warn("snapshot complete with recorded failures",
			zap.Int("failures", len(snapshot.Failures)))
	}

	return exitCodeSuccess
}

func parseFlags() (cliArgs, map[string]bool) {
	var args cliArgs

	flag.StringVar(&args.configPath, "config", "", "Path to the configuration file")
	flag.BoolVar(&args.generateConfig, "generate-config", false, "Generate a default configuration file and exit")
	flag.IntVar(&args.timeout, "timeout", 0, "Overall timeout in seconds")
	flag.IntVar(&args.timeout, "t", 0, "Overall timeout in seconds (shorthand)")
	flag.StringVar(&args.logLevel, "log-level", "", "Log level: debug, info, warn, or error")
	flag.StringVar(&args.format, "format", "", "Output format: json, csv, or tsv")
	flag.StringVar(&args.format, "f", "", "Output format: json, csv, or tsv (shorthand)")
	flag.StringVar(&args.outputFile, "output", "", "Output file path (default stdout)")
	flag.StringVar(&args.outputFile, "o", "", "Output file path (shorthand)")
	flag.BoolVar(&args.progress, "progress", false, "Show a progress line on stderr")
	flag.StringVar(&args.tenancyID, "tenancy", "", "Tenancy root OCID (default from auth provider)")
	flag.StringVar(&args.includeCompartments, "include-compartments", "", "Comma-separated compartment OCIDs to include")
	flag.StringVar(&args.excludeCompartments, "exclude-compartments", "", "Comma-separated compartment OCIDs to exclude")
	flag.IntVar(&args.compartmentWorkers, "compartment-workers", 0, "Maximum concurrent compartment collectors")
	flag.IntVar(&args.detailWorkers, "detail-workers", 0, "Maximum concurrent detail lookups")

	flag.StringVar(&args.diffOld, "diff-old", "", "Old JSON snapshot for comparison")
	flag.StringVar(&args.diffNew, "diff-new", "", "New JSON snapshot for comparison")
	flag.StringVar(&args.diffFormat, "diff-format", "text", "Diff report format: json or text")
	flag.BoolVar(&args.diffDetailed, "diff-detailed", false, "Include unchanged resources in the diff report")
	flag.StringVar(&args.diffOutput, "diff-output", "", "Diff report file path (default stdout)")

	flag.Parse()

	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	return args, setFlags
}

func overridesFromFlags(args cliArgs, setFlags map[string]bool) CLIOverrides {
	var cli CLIOverrides

	if setFlags["timeout"] || setFlags["t"] {
		cli.Timeout = &args.timeout
	}
	if setFlags["log-level"] {
		cli.LogLevel = &args.logLevel
	}
	if setFlags["format"] || setFlags["f"] {
		cli.Format = &args.format
	}
	if setFlags["progress"] {
		cli.Progress = &args.progress
	}
	if setFlags["output"] || setFlags["o"] {
		cli.OutputFile = &args.outputFile
	}
	if setFlags["tenancy"] {
		cli.TenancyID = &args.tenancyID
	}
	if setFlags["include-compartments"] {
		cli.IncludeCompartments = &args.includeCompartments
	}
	if setFlags["exclude-compartments"] {
		cli.ExcludeCompartments = &args.excludeCompartments
	}
	if setFlags["compartment-workers"] {
		cli.CompartmentWorkers = &args.compartmentWorkers
	}
	if setFlags["detail-workers"] {
		cli.DetailWorkers = &args.detailWorkers
	}

	return cli
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger, nil
}
