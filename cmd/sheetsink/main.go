package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datapipehq/sheetsink/internal/pipeline"
	"github.com/datapipehq/sheetsink/pkg/config"
	"github.com/datapipehq/sheetsink/pkg/logger"
	"github.com/datapipehq/sheetsink/pkg/schema"
	"github.com/datapipehq/sheetsink/pkg/sink"
	"github.com/datapipehq/sheetsink/pkg/store/sheets"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sheetsink",
		Short: "sheetsink - Singer target for Google Sheets",
		Long: `sheetsink consumes a Singer protocol stream on stdin and writes each stream
into its own worksheet of a Google spreadsheet, batching rows adaptively to
stay inside the Sheets API quota. The final STATE checkpoint is emitted on
stdout once every buffered row has been delivered.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sheetsink v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile string
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Consume a Singer stream from stdin into Google Sheets",
		Long: `Run the target against the configured spreadsheet.

Example:
  tap-something | sheetsink run --config config.json > state.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTarget(cmd.Context(), configFile)
		},
	}
	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to target configuration JSON file (required)")
	_ = runCmd.MarkFlagRequired("config")
	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runTarget wires config -> store -> sink manager -> pipeline and runs the
// pipeline over stdin, emitting the checkpoint on stdout.
func runTarget(ctx context.Context, configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Encoding: "json"}); err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	log := logger.Get().With(zap.String("component", "sheetsink-cli"))
	defer func() { _ = logger.Sync() }()

	log.Info("starting target",
		zap.String("config", configFile),
		zap.Int("sink_default_size", cfg.Sink.DefaultSize),
		zap.Int("sink_limit_increment", cfg.Sink.LimitIncrement),
		zap.Int("sink_max_limit", cfg.Sink.MaxLimit))

	if ctx == nil {
		ctx = context.Background()
	}

	store, err := sheets.New(ctx, cfg.SpreadsheetURL, cfg.CredentialsPath, log)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	manager := sink.NewManager(store, sink.Limits{
		DefaultSize:    cfg.Sink.DefaultSize,
		LimitIncrement: cfg.Sink.LimitIncrement,
		MaxLimit:       cfg.Sink.MaxLimit,
	}, log)

	p := pipeline.New(schema.NewRegistry(), manager, os.Stdout, log)

	start := time.Now()
	if err := p.Run(ctx, os.Stdin); err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	log.Info("target completed successfully", zap.Duration("duration", time.Since(start)))
	return nil
}
