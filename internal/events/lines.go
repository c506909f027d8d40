package events

import (
	"bufio"
	"io"
)

// LineReader yields one log line per Scan with a hard cap on line length.
// A line over the cap can never decode into an event, but it must not sink
// the rest of the file either: the reader discards the remainder of the
// oversized line and reports it through TooLong so the caller can treat it
// like any other malformed line and keep going.
type LineReader struct {
	r       *bufio.Reader
	max     int
	line    []byte
	tooLong bool
	done    bool
	err     error
}

// NewLineReader wraps r with a per-line cap of max bytes.
func NewLineReader(r io.Reader, max int) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024), max: max}
}

// Scan advances to the next line. It returns false at end of input or on a
// read error; check Err afterwards.
func (lr *LineReader) Scan() bool {
	if lr.err != nil || lr.done {
		return false
	}
	lr.line = lr.line[:0]
	lr.tooLong = false
	for {
		frag, isPrefix, err := lr.r.ReadLine()
		if !lr.tooLong && len(frag) > 0 {
			lr.line = append(lr.line, frag...)
			if len(lr.line) > lr.max {
				lr.tooLong = true
				lr.line = lr.line[:0]
			}
		}
		if err == io.EOF {
			lr.done = true
			return len(lr.line) > 0 || lr.tooLong
		}
		if err != nil {
			lr.err = err
			return false
		}
		if !isPrefix {
			return true
		}
	}
}

// Text returns the current line. It is empty when TooLong reports true.
func (lr *LineReader) Text() string {
	return string(lr.line)
}

// TooLong reports whether the current line exceeded the cap and was
// discarded.
func (lr *LineReader) TooLong() bool {
	return lr.tooLong
}

// Err returns the first read error other than end of input.
func (lr *LineReader) Err() error {
	return lr.err
}
