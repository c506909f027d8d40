package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"smitelog/internal/mirror"
	"smitelog/internal/store"
	"smitelog/internal/verify"
)

func main() {
	for _, path := range []string{".env", "../.env"} {
		if err := godotenv.Load(path); err == nil {
			break
		}
	}

	dbPath := flag.String("db", "", "Match database file")
	matchID := flag.String("match", "", "Match id to mirror (default: every match in the database)")
	dsn := flag.String("postgres", os.Getenv("DATABASE_URL"), "Postgres DSN (default: DATABASE_URL)")
	flag.Parse()

	if *dbPath == "" || *dsn == "" {
		fmt.Println("Usage:")
		fmt.Println("  mirror --db=data/match.db [--match=M-100] [--postgres=postgres://...]")
		fmt.Println()
		fmt.Println("Replays a loaded match database into Postgres for fleet-wide")
		fmt.Println("analytics. The Postgres DSN can also come from DATABASE_URL.")
		os.Exit(1)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	s, err := store.Open(*dbPath, logger)
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

	m, err := mirror.New(ctx, *dsn, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer m.Close()

	for _, id := range ids {
		if err := m.Push(ctx, s.DB(), id); err != nil {
			log.Fatalf("Failed to mirror %s: %v", id, err)
		}
		fmt.Printf("Mirrored match %s\n", id)
	}
}
