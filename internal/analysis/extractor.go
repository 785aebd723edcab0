package analysis

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoResultFound means no output line parsed as a JSON object.
var ErrNoResultFound = errors.New("no valid JSON result found in output")

// LineOutcome classifies a single output line during extraction.
type LineOutcome int

const (
	// LineNoise does not start with '{' (log and progress text).
	LineNoise LineOutcome = iota
	// LineMalformed starts with '{' but is not valid JSON. Skipped, never fatal.
	LineMalformed
	// LineParsed is a valid JSON object and a result candidate.
	LineParsed
)

func (o LineOutcome) String() string {
	switch o {
	case LineNoise:
		return "noise"
	case LineMalformed:
		return "malformed"
	case LineParsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// Extraction is the outcome of scanning RawOutput.
type Extraction struct {
	// Result is the last line that parsed as a JSON object, verbatim.
	Result json.RawMessage
	// ResultLine is the index of Result within the scanned lines, -1 if none.
	ResultLine int
	// Outcomes holds one entry per scanned line.
	Outcomes []LineOutcome
}

// Count returns how many lines had the given outcome.
func (e *Extraction) Count(o LineOutcome) int {
	n := 0
	for _, got := range e.Outcomes {
		if got == o {
			n++
		}
	}
	return n
}

// Skipped returns the number of lines that were not chosen as the result.
func (e *Extraction) Skipped() int {
	if e.ResultLine < 0 {
		return len(e.Outcomes)
	}
	return len(e.Outcomes) - 1
}

// ClassifyLine decides what a single output line is. The returned payload is
// the trimmed line when the outcome is LineParsed.
func ClassifyLine(line string) (LineOutcome, json.RawMessage) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return LineNoise, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return LineMalformed, nil
	}
	return LineParsed, json.RawMessage(trimmed)
}

// Extract scans lines in order and keeps the last one that parses as a JSON
// object; later objects replace earlier ones. Malformed candidates are
// recorded as LineMalformed and skipped. When nothing parses, including for
// empty input, it returns the partial Extraction together with
// ErrNoResultFound.
func Extract(lines []string) (*Extraction, error) {
	ext := &Extraction{
		ResultLine: -1,
		Outcomes:   make([]LineOutcome, len(lines)),
	}

	for i, line := range lines {
		outcome, payload := ClassifyLine(line)
		ext.Outcomes[i] = outcome
		if outcome == LineParsed {
			ext.Result = payload
			ext.ResultLine = i
		}
	}

	if ext.ResultLine < 0 {
		return ext, ErrNoResultFound
	}
	return ext, nil
}
