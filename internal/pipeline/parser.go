// Package pipeline implements the fills ingestion pipeline: strict NDJSON
// parsing, normalization into the canonical trade schema, cross-batch
// deduplication, the run coordinator, and the cron scheduler that drives it.
package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/twaplab/hltwap/internal/domain"
)

// maxLineSize bounds a single NDJSON line. Fill records are small; 1 MiB
// leaves generous headroom.
const maxLineSize = 1 << 20

// ParseFills decodes raw newline-delimited JSON into loosely-typed fill
// records. Blank lines are skipped. Any malformed line is a hard failure for
// the whole object: partially parsed files would silently lose trades, so
// structurally corrupt objects are rejected outright (domain.ErrParse).
//
// Numbers are decoded as json.Number so order IDs and millisecond timestamps
// survive without float rounding.
func ParseFills(data []byte) ([]domain.RawFill, error) {
	var fills []domain.RawFill

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()

		var fill domain.RawFill
		if err := dec.Decode(&fill); err != nil {
			return nil, fmt.Errorf("pipeline: line %d: %w: %w", lineNo, domain.ErrParse, err)
		}
		fills = append(fills, fill)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: scan fills: %w: %w", domain.ErrParse, err)
	}

	return fills, nil
}
