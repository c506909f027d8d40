package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DefaultBatchSize is the per-table row threshold before a buffer is
// committed.
const DefaultBatchSize = 1000

// BatchWriter buffers normalized rows per table and commits each buffer as
// one transaction when it reaches the configured size. It is the only path
// through which event rows reach the store.
type BatchWriter struct {
	store     *Store
	batchSize int
	buffers   map[Table][]Row

	rowsWritten map[Table]int
	flushes     map[Table]int
}

// NewBatchWriter creates a writer with the given per-table batch size.
func NewBatchWriter(s *Store, batchSize int) *BatchWriter {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchWriter{
		store:       s,
		batchSize:   batchSize,
		buffers:     make(map[Table][]Row),
		rowsWritten: make(map[Table]int),
		flushes:     make(map[Table]int),
	}
}

// Append buffers one row, flushing that table's buffer if it reaches the
// batch size.
func (w *BatchWriter) Append(ctx context.Context, r Row) error {
	t := r.Table()
	w.buffers[t] = append(w.buffers[t], r)
	if len(w.buffers[t]) >= w.batchSize {
		return w.FlushTable(ctx, t)
	}
	return nil
}

// AppendAll buffers every row; rows for a full table flush as they land.
func (w *BatchWriter) AppendAll(ctx context.Context, rows []Row) error {
	for _, r := range rows {
		if err := w.Append(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// FlushTable commits one table's pending rows in a single transaction. The
// batch is all-or-nothing: any failure rolls the whole transaction back and
// leaves the buffer intact so the caller can report how far ingestion got.
func (w *BatchWriter) FlushTable(ctx context.Context, t Table) error {
	batch := w.buffers[t]
	if len(batch) == 0 {
		return nil
	}

	tx, err := w.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch for %s: %w", t, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatements[t])
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert for %s: %w", t, err)
	}

	for _, r := range batch {
		if _, err := stmt.ExecContext(ctx, r.Args()...); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert into %s: %w", t, err)
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch for %s: %w", t, err)
	}

	w.rowsWritten[t] += len(batch)
	w.flushes[t]++
	w.buffers[t] = w.buffers[t][:0]
	w.store.log.Debug("flushed batch",
		zap.String("table", string(t)), zap.Int("rows", len(batch)))
	return nil
}

// FlushAll commits every non-empty buffer, matches table first so dependent
// rows never land ahead of their match row.
func (w *BatchWriter) FlushAll(ctx context.Context) error {
	for _, t := range AllTables {
		if err := w.FlushTable(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// RowsWritten reports committed row counts per table. Buffered-but-unflushed
// rows are not included.
func (w *BatchWriter) RowsWritten() map[Table]int {
	out := make(map[Table]int, len(w.rowsWritten))
	for t, n := range w.rowsWritten {
		out[t] = n
	}
	return out
}

// Flushes reports how many batch transactions each table committed.
func (w *BatchWriter) Flushes() map[Table]int {
	out := make(map[Table]int, len(w.flushes))
	for t, n := range w.flushes {
		out[t] = n
	}
	return out
}

// Pending reports the number of buffered rows for a table.
func (w *BatchWriter) Pending(t Table) int {
	return len(w.buffers[t])
}
