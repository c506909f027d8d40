package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"smitelog/internal/events"
	"smitelog/internal/match"
	"smitelog/internal/normalize"
	"smitelog/internal/store"
)

// State tracks where the coordinator is in the pipeline. Failed is terminal
// and reachable from any state after Idle.
type State int

const (
	StateIdle State = iota
	StateSchemaReady
	StateResolving
	StateStreaming
	StateFlushing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSchemaReady:
		return "schema-ready"
	case StateResolving:
		return "resolving"
	case StateStreaming:
		return "streaming"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config is the engine's configuration surface.
type Config struct {
	SourcePath    string
	DBPath        string
	BatchSize     int
	ShowProgress  bool
	SkipMalformed bool
	Dedupe        bool
	ForceReload   bool
	Policy        *normalize.Policy
}

// Summary reports what a run did, whether it succeeded or not. Row counts
// cover committed batches only, so on failure the caller knows exactly how
// far ingestion got.
type Summary struct {
	MatchID              string
	State                State
	LinesRead            int
	LinesSkipped         int
	EventsUnroutable     int
	Warnings             int
	DuplicatesSuppressed int
	Rows                 map[store.Table]int
	Batches              map[store.Table]int
}

// Succeeded reports whether the run completed cleanly.
func (s *Summary) Succeeded() bool {
	return s.State == StateDone
}

const (
	progressInterval = 10000
	maxLineBytes     = 1 << 20

	// Sized for the largest logs we see (tens of thousands of events) with
	// plenty of slack; at this false-positive rate a wrongly suppressed
	// line is about a one-in-a-million event.
	dedupeCapacity = 1 << 20
	dedupeFPRate   = 1e-6
)

// Coordinator drives one file through decode, normalize, and batch write.
type Coordinator struct {
	cfg   Config
	log   *zap.Logger
	state State
}

// New creates a coordinator for one ingestion run.
func New(cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, log: logger, state: StateIdle}
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	return c.state
}

// Run ingests the configured file end to end. The returned Summary is
// always non-nil; on error it reflects everything committed before the
// failure.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		Rows:    make(map[store.Table]int),
		Batches: make(map[store.Table]int),
	}

	var normalizer *normalize.Normalizer

	fail := func(w *store.BatchWriter, err error) (*Summary, error) {
		c.state = StateFailed
		summary.State = StateFailed
		if w != nil {
			summary.Rows = w.RowsWritten()
			summary.Batches = w.Flushes()
		}
		if normalizer != nil {
			summary.Warnings = normalizer.Warnings()
		}
		c.log.Error("ingestion failed",
			zap.String("match_id", summary.MatchID),
			zap.Int("lines_read", summary.LinesRead),
			zap.Error(err))
		return summary, err
	}

	s, err := store.Open(c.cfg.DBPath, c.log)
	if err != nil {
		return fail(nil, err)
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return fail(nil, err)
	}
	c.state = StateSchemaReady

	c.state = StateResolving
	matchID, err := match.Resolve(c.cfg.SourcePath)
	if err != nil {
		return fail(nil, err)
	}
	summary.MatchID = matchID
	c.log.Info("resolved match identity", zap.String("match_id", matchID))

	if c.cfg.ForceReload {
		if err := s.ClearMatch(ctx, matchID); err != nil {
			return fail(nil, err)
		}
	}

	writer := store.NewBatchWriter(s, c.cfg.BatchSize)
	normalizer = normalize.New(matchID, c.cfg.Policy, c.log)

	// The match row lands before any dependent batch can, so every event
	// row always references an existing match.
	if err := writer.Append(ctx, store.MatchRow{MatchID: matchID, SourceFile: c.cfg.SourcePath}); err != nil {
		return fail(writer, err)
	}
	if err := writer.FlushTable(ctx, store.TableMatches); err != nil {
		return fail(writer, fmt.Errorf("write match row: %w", err))
	}

	f, err := os.Open(c.cfg.SourcePath)
	if err != nil {
		return fail(writer, fmt.Errorf("open log file: %w", err))
	}
	defer f.Close()

	var seen *bloom.BloomFilter
	if c.cfg.Dedupe {
		seen = bloom.NewWithEstimates(dedupeCapacity, dedupeFPRate)
	}

	c.state = StateStreaming
	reader := events.NewLineReader(f, maxLineBytes)

	for reader.Scan() {
		if err := ctx.Err(); err != nil {
			return fail(writer, err)
		}

		// An over-long line is malformed input, not a read failure; it
		// must not abort a tolerant run.
		if reader.TooLong() {
			summary.LinesRead++
			summary.LinesSkipped++
			if !c.cfg.SkipMalformed {
				return fail(writer, fmt.Errorf("line %d: longer than %d bytes", summary.LinesRead, maxLineBytes))
			}
			continue
		}

		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		summary.LinesRead++

		if seen != nil && seen.TestOrAddString(line) {
			summary.DuplicatesSuppressed++
			continue
		}

		ev, err := events.Decode([]byte(line))
		if err != nil {
			if errors.Is(err, events.ErrUnknownKind) {
				summary.EventsUnroutable++
			} else {
				summary.LinesSkipped++
			}
			if !c.cfg.SkipMalformed {
				return fail(writer, fmt.Errorf("line %d: %w", summary.LinesRead, err))
			}
			continue
		}

		rows, err := normalizer.Normalize(ev)
		if err != nil {
			summary.EventsUnroutable++
			if !c.cfg.SkipMalformed {
				return fail(writer, fmt.Errorf("line %d: %w", summary.LinesRead, err))
			}
			continue
		}

		if err := writer.AppendAll(ctx, rows); err != nil {
			return fail(writer, err)
		}

		if c.cfg.ShowProgress && summary.LinesRead%progressInterval == 0 {
			c.log.Info("ingestion progress",
				zap.String("match_id", matchID),
				zap.Int("lines_read", summary.LinesRead),
				zap.Int("lines_skipped", summary.LinesSkipped))
		}
	}
	if err := reader.Err(); err != nil {
		return fail(writer, fmt.Errorf("read log file: %w", err))
	}

	if err := writer.AppendAll(ctx, normalizer.Finalize()); err != nil {
		return fail(writer, err)
	}

	c.state = StateFlushing
	if err := writer.FlushAll(ctx); err != nil {
		return fail(writer, err)
	}

	info := normalizer.Info()
	if err := s.FinalizeMatch(ctx, matchID, info.MapName, info.GameType,
		info.StartTime, info.EndTime, info.DurationSeconds()); err != nil {
		return fail(writer, err)
	}

	c.state = StateDone
	summary.State = StateDone
	summary.Warnings = normalizer.Warnings()
	summary.Rows = writer.RowsWritten()
	summary.Batches = writer.Flushes()

	c.log.Info("ingestion complete",
		zap.String("match_id", matchID),
		zap.Int("lines_read", summary.LinesRead),
		zap.Int("lines_skipped", summary.LinesSkipped),
		zap.Int("events_unroutable", summary.EventsUnroutable),
		zap.Int("warnings", summary.Warnings))
	return summary, nil
}
