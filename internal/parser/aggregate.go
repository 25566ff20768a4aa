package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nwtelemetry/huboffload/internal/models"
)

// The Data Usage Timeline export is often a .txt table rather than a real
// CSV: one "YYYY-MM-DD <whitespace> NNN" pair per line, with the numeral
// optionally thousands-grouped.
var aggregateLineRe = regexp.MustCompile(`^\s*(\d{4}-\d{2}-\d{2})\s+([\d,]+(?:\.\d+)?)\s*$`)

// ParseAggregate converts raw Data Usage Timeline export text into daily
// aggregate records. Lines that do not match the date/value pattern (headers
// included) are skipped silently rather than reported. Stateless; safe to
// call concurrently.
func ParseAggregate(text string) []models.AggregateRecord {
	var rows []models.AggregateRecord
	if text == "" {
		return rows
	}

	for _, rawLine := range splitLines(text) {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}

		m := aggregateLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		day, err := time.Parse("2006-01-02", m[1])
		if err != nil {
			continue
		}

		gb, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil || math.IsInf(gb, 0) || math.IsNaN(gb) {
			continue
		}

		rows = append(rows, models.AggregateRecord{Day: day, Gigabytes: gb})
	}

	return rows
}

// splitLines splits export text on LF, tolerating CRLF endings.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
