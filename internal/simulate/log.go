package simulate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/autoaim/internal/enemy"
)

// Record is one line of an observation log: an enemy's observation (or
// its absence) at a cycle. Truth is optional.
type Record struct {
	Cycle       int                `json:"cycle"`
	OffsetNanos int64              `json:"offset_ns"`
	Enemy       string             `json:"enemy"`
	Observation *enemy.Observation `json:"observation"`
	Truth       *Truth             `json:"truth,omitempty"`
}

// maxLogLine bounds a single JSON line.
const maxLogLine = 64 * 1024

// ReadLog parses a JSON-lines observation log. Blank lines are skipped.
func ReadLog(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLogLine)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := enemy.ParseID(rec.Enemy); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return out, nil
}

// WriteLog writes frames for one enemy as JSON lines.
func WriteLog(w io.Writer, id enemy.ID, frames []Frame) error {
	enc := json.NewEncoder(w)
	for _, f := range frames {
		truth := f.Truth
		rec := Record{
			Cycle:       f.Cycle,
			OffsetNanos: f.Offset.Nanoseconds(),
			Enemy:       id.String(),
			Observation: f.Observation,
			Truth:       &truth,
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write cycle %d: %w", f.Cycle, err)
		}
	}
	return nil
}
