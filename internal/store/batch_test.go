package store

import (
	"context"
	"fmt"
	"testing"
)

// R rows with batch size K must commit in exactly ceil(R/K) transactions
// and persist all R rows.
func TestBatchWriter_BatchBoundaries(t *testing.T) {
	const batchSize = 7
	const total = 23 // not a multiple of batchSize

	s := openTestStore(t)
	ctx := context.Background()
	w := NewBatchWriter(s, batchSize)

	if err := w.Append(ctx, MatchRow{MatchID: "m1", SourceFile: "m1.log"}); err != nil {
		t.Fatalf("append match failed: %v", err)
	}
	if err := w.FlushTable(ctx, TableMatches); err != nil {
		t.Fatalf("flush matches failed: %v", err)
	}

	for i := 0; i < total; i++ {
		err := w.Append(ctx, RewardRow{MatchID: "m1", EventType: "Currency", EntityName: fmt.Sprintf("p%d", i%5)})
		if err != nil {
			t.Fatalf("append reward %d failed: %v", i, err)
		}
	}
	if err := w.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}

	wantFlushes := (total + batchSize - 1) / batchSize
	if got := w.Flushes()[TableRewardEvents]; got != wantFlushes {
		t.Errorf("reward_events flushes = %d, want %d", got, wantFlushes)
	}
	if got := w.RowsWritten()[TableRewardEvents]; got != total {
		t.Errorf("reward_events rows written = %d, want %d", got, total)
	}
	if n := countRows(t, s, TableRewardEvents, "m1"); n != total {
		t.Errorf("persisted reward_events = %d, want %d", n, total)
	}
}

// Rows must come back in file order: event_time ascending with the
// autoincrement id breaking ties.
func TestBatchWriter_OrderPreserved(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	w := NewBatchWriter(s, 4) // force multiple batches

	if err := w.Append(ctx, MatchRow{MatchID: "m1", SourceFile: "m1.log"}); err != nil {
		t.Fatalf("append match failed: %v", err)
	}
	if err := w.FlushTable(ctx, TableMatches); err != nil {
		t.Fatalf("flush matches failed: %v", err)
	}

	times := []string{
		"2025-03-19T04:10:00Z",
		"2025-03-19T04:10:00Z", // tie with previous, file order decides
		"2025-03-19T04:10:05Z",
		"2025-03-19T04:10:09Z",
		"2025-03-19T04:10:09Z",
		"2025-03-19T04:10:12Z",
	}
	for i, ts := range times {
		ts := ts
		err := w.Append(ctx, CombatRow{
			MatchID: "m1", EventTime: &ts, EventType: "Damage",
			SourceEntity: fmt.Sprintf("line-%d", i), TargetEntity: "x",
		})
		if err != nil {
			t.Fatalf("append combat %d failed: %v", i, err)
		}
	}
	if err := w.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}

	rows, err := s.DB().Query(`SELECT source_entity FROM combat_events WHERE match_id = 'm1' ORDER BY event_time, event_id`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if want := fmt.Sprintf("line-%d", i); src != want {
			t.Errorf("row %d = %q, want %q", i, src, want)
		}
		i++
	}
	if i != len(times) {
		t.Errorf("got %d rows, want %d", i, len(times))
	}
}

// A failing batch must roll back entirely and keep the buffer so the caller
// can see what was never committed.
func TestBatchWriter_FailedBatchRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	w := NewBatchWriter(s, 10)

	// Duplicate primary key inside one batch.
	if err := w.Append(ctx, MatchRow{MatchID: "dup", SourceFile: "a.log"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := w.Append(ctx, MatchRow{MatchID: "dup", SourceFile: "b.log"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	if err := w.FlushTable(ctx, TableMatches); err == nil {
		t.Fatal("expected constraint violation, got nil")
	}

	if n := countRows(t, s, TableMatches, "dup"); n != 0 {
		t.Errorf("matches rows after failed batch = %d, want 0", n)
	}
	if got := w.RowsWritten()[TableMatches]; got != 0 {
		t.Errorf("RowsWritten = %d after failed batch, want 0", got)
	}
	if w.Pending(TableMatches) != 2 {
		t.Errorf("Pending = %d after failed batch, want 2", w.Pending(TableMatches))
	}
}

func TestBatchWriter_PartialBufferFlushedAtEnd(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	w := NewBatchWriter(s, 100)

	if err := w.Append(ctx, MatchRow{MatchID: "m1", SourceFile: "m1.log"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := w.Append(ctx, ItemRow{MatchID: "m1", EventType: "ItemPurchase", PlayerName: "p", ItemName: "Deathbringer"}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	// Nothing committed yet, everything below threshold.
	if n := countRows(t, s, TableItemEvents, "m1"); n != 0 {
		t.Fatalf("premature commit: %d rows", n)
	}

	if err := w.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if n := countRows(t, s, TableItemEvents, "m1"); n != 5 {
		t.Errorf("item_events = %d, want 5", n)
	}
}
