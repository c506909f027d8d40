package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"smitelog/internal/events"
)

// ErrNoIdentity reports that neither the log contents nor the file name
// yields a usable match identifier. Ingestion cannot proceed without one.
var ErrNoIdentity = errors.New("no match identity derivable")

// maxLineBytes bounds a single log line during the identity scan. Combat
// logs occasionally carry long chat text but never approach this.
const maxLineBytes = 1 << 20

// Resolve determines the match id for a log file. It scans for a start
// event carrying an explicit matchID; if none exists, it derives a
// deterministic fallback from the file's base name so repeated runs over the
// same file always map to the same id.
func Resolve(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	reader := events.NewLineReader(f, maxLineBytes)

	for reader.Scan() {
		// An over-long line cannot be a start event; skip past it.
		if reader.TooLong() {
			continue
		}
		line := strings.TrimSpace(reader.Text())
		if line == "" {
			continue
		}
		var probe struct {
			EventType string `json:"eventType"`
			MatchID   string `json:"matchID"`
		}
		// Malformed lines are the streaming pass's problem, not ours.
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			continue
		}
		if probe.EventType == "start" && probe.MatchID != "" {
			return probe.MatchID, nil
		}
	}
	if err := reader.Err(); err != nil {
		return "", fmt.Errorf("scan log file: %w", err)
	}

	return Fallback(path)
}

// Fallback derives "match-<stem>" from the file's base name.
func Fallback(path string) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "", fmt.Errorf("%w: file name %q has no stem", ErrNoIdentity, path)
	}
	return "match-" + stem, nil
}
