package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/ironsheep/omr-grader/internal/config"
	"github.com/ironsheep/omr-grader/internal/logging"
	"github.com/ironsheep/omr-grader/internal/omr"
	"github.com/ironsheep/omr-grader/internal/server"
	"github.com/ironsheep/omr-grader/internal/store"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("omr-grader %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Backend:    %s\n", omr.BackendName)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "omr-grader: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	// stdout is for the MCP protocol
	log := logging.New(os.Stderr, level, !cfg.LogJSON)
	if err != nil {
		log.Warn().Err(err).Msg("falling back to info level")
	}
	log.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Str("backend", omr.BackendName).
		Str("data_dir", cfg.DataDir).
		Msg("starting omr-grader")

	st, err := store.Open(cfg.DataDir, store.WithPassingScore(cfg.PassingScore))
	if err != nil {
		return err
	}

	grader, err := omr.NewGrader(
		omr.WithParams(cfg.Params),
		omr.WithScoringPolicy(cfg.Scoring),
		omr.WithLogger(logging.Component(log, "omr")),
	)
	if err != nil {
		return err
	}
	logParams(log, cfg)

	srv, err := server.New(st, grader, server.WithLogger(log), server.WithVersion(Version))
	if err != nil {
		return err
	}
	return srv.Run()
}

func logParams(log zerolog.Logger, cfg *config.Config) {
	p := cfg.Params
	log.Debug().
		Str("params_file", cfg.ParamsFile).
		Float64("filled_threshold", p.FilledThreshold).
		Int("min_bubble_size", p.MinBubbleSize).
		Int("max_bubble_size", p.MaxBubbleSize).
		Float64("column_gap", p.ColumnGap).
		Float64("row_tolerance", p.RowTolerance).
		Str("multiple_marks", cfg.Scoring.MultipleMarks).
		Msg("detection parameters")
}

func printHelp() {
	fmt.Println("omr-grader - MCP server for grading bubble answer sheets")
	fmt.Println()
	fmt.Println("Usage: omr-grader [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Printf("  %-22s Data directory (default ./data)\n", config.EnvDataDir)
	fmt.Printf("  %-22s debug, info, warn or error (default info)\n", config.EnvLogLevel)
	fmt.Printf("  %-22s console or json (default console)\n", config.EnvLogFormat)
	fmt.Printf("  %-22s TOML file with [detection] and [scoring] tables\n", config.EnvParamsFile)
	fmt.Printf("  %-22s Mean intensity below which a bubble is filled (default 150)\n", config.EnvFilledThreshold)
	fmt.Printf("  %-22s Percentage counted as a pass (default 75)\n", config.EnvPassingScore)
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client.")
}
