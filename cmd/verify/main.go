package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"smitelog/internal/store"
	"smitelog/internal/verify"
)

func main() {
	dbPath := flag.String("db", "", "Match database file")
	matchID := flag.String("match", "", "Match id to verify (default: every match in the database)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Println("Usage:")
		fmt.Println("  verify --db=data/match.db [--match=M-100]")
		fmt.Println()
		fmt.Println("Prints per-table row counts so a load can be checked at a glance.")
		os.Exit(1)
	}

	ctx := context.Background()
	s, err := store.Open(*dbPath, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer s.Close()

	ids := []string{*matchID}
	if *matchID == "" {
		ids, err = verify.Matches(ctx, s.DB())
		if err != nil {
			log.Fatalf("Failed to list matches: %v", err)
		}
		if len(ids) == 0 {
			log.Fatal("Database contains no matches")
		}
	}

	exitCode := 0
	for _, id := range ids {
		report, err := verify.Count(ctx, s.DB(), id)
		if err != nil {
			log.Fatalf("Failed to count rows for %s: %v", id, err)
		}

		fmt.Printf("Match %s:\n", id)
		for _, table := range store.AllTables {
			fmt.Printf("  %-16s %d rows\n", table, report.Counts[table])
		}
		if empty := report.EmptyTables(); len(empty) > 0 {
			fmt.Printf("  WARNING: empty tables: %v\n", empty)
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
