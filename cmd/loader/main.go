package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"smitelog/internal/ingest"
	"smitelog/internal/mirror"
	"smitelog/internal/normalize"
	"smitelog/internal/store"
)

func main() {
	// Load .env file - try multiple locations
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	// Parse flags
	output := flag.String("o", "", "Output database file path (default: data/<log stem>.db)")
	batchSize := flag.Int("batch-size", store.DefaultBatchSize, "Rows buffered per table before a transactional flush")
	force := flag.Bool("force", false, "Clear existing rows for the match before ingesting")
	strict := flag.Bool("strict", false, "Abort on the first malformed or unroutable line")
	progress := flag.Bool("progress", false, "Log periodic line-count progress")
	dedupe := flag.Bool("dedupe", false, "Suppress exact duplicate lines (client reconnect noise)")
	policyPath := flag.String("policy", "", "YAML file overriding timeline importance thresholds")
	verbose := flag.Bool("v", false, "Verbose logging")
	pushTo := flag.String("mirror", "", "Postgres DSN to mirror the match into after loading")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage:")
		fmt.Println("  loader [flags] <combat log file>")
		fmt.Println()
		fmt.Println("Loads a line-delimited combat log into a SQLite match database.")
		fmt.Println("Re-running on the same match requires --force, which clears the")
		fmt.Println("match's rows first so reloads are idempotent.")
		os.Exit(1)
	}
	logPath := flag.Arg(0)

	if _, err := os.Stat(logPath); err != nil {
		log.Fatalf("Log file %q not readable: %v", logPath, err)
	}

	dbPath := *output
	if dbPath == "" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		base := filepath.Base(logPath)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		dbPath = filepath.Join("data", stem+".db")
	}

	logger := newLogger(*verbose)
	defer logger.Sync()

	policy := normalize.DefaultPolicy()
	if *policyPath != "" {
		var err error
		policy, err = normalize.LoadPolicy(*policyPath)
		if err != nil {
			log.Fatalf("Failed to load policy: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted; data is consistent up to the last committed batch.")
		cancel()
	}()

	fmt.Printf("Processing log file: %s\n", logPath)
	fmt.Printf("Output database: %s\n", dbPath)

	coordinator := ingest.New(ingest.Config{
		SourcePath:    logPath,
		DBPath:        dbPath,
		BatchSize:     *batchSize,
		ShowProgress:  *progress,
		SkipMalformed: !*strict,
		Dedupe:        *dedupe,
		ForceReload:   *force,
		Policy:        policy,
	}, logger)

	summary, err := coordinator.Run(ctx)
	printSummary(summary)
	if err != nil {
		fmt.Printf("\nFailed to process log file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nSuccessfully processed log file: %s\n", logPath)
	fmt.Printf("Query it with: sqlite3 %s\n", dbPath)

	if *pushTo != "" {
		if err := pushMirror(ctx, *pushTo, dbPath, summary.MatchID, logger); err != nil {
			log.Fatalf("Mirror push failed: %v", err)
		}
		fmt.Printf("Mirrored match %s to Postgres\n", summary.MatchID)
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	return logger
}

func printSummary(s *ingest.Summary) {
	fmt.Printf("\nMatch: %s (state: %s)\n", s.MatchID, s.State)
	fmt.Printf("Lines read: %d, skipped: %d, unroutable: %d, warnings: %d",
		s.LinesRead, s.LinesSkipped, s.EventsUnroutable, s.Warnings)
	if s.DuplicatesSuppressed > 0 {
		fmt.Printf(", duplicates suppressed: %d", s.DuplicatesSuppressed)
	}
	fmt.Println()

	tables := make([]string, 0, len(s.Rows))
	for table := range s.Rows {
		tables = append(tables, string(table))
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Printf("  %-16s %d rows (%d batches)\n",
			table, s.Rows[store.Table(table)], s.Batches[store.Table(table)])
	}
}

func pushMirror(ctx context.Context, dsn, dbPath, matchID string, logger *zap.Logger) error {
	s, err := store.Open(dbPath, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	m, err := mirror.New(ctx, dsn, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Push(ctx, s.DB(), matchID)
}
