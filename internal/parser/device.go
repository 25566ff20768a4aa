package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nwtelemetry/huboffload/internal/models"
)

// deviceHeaders are the six expected columns of the NASID Daily export, in
// order. The export also carries a leading empty column which is discarded.
var deviceHeaders = []string{
	"Transaction Date",
	"NAS-ID",
	"Total Sessions",
	"Count of Users",
	"Rejects",
	"Total GBs",
}

// SchemaError means the export header line is missing expected columns.
// The whole parse is aborted; no partial data is returned.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing expected headers: %s", strings.Join(e.Missing, ", "))
}

// ParseDevice converts raw NASID Daily export text into device records.
// The header line is validated up front; a missing column is fatal. Data
// rows that fail validation are collected into the result's error list with
// their 1-based source line number and parsing continues.
func ParseDevice(csvText string) (*models.DeviceParseResult, error) {
	trimmed := strings.TrimSpace(csvText)
	if trimmed == "" {
		return nil, &SchemaError{Missing: deviceHeaders}
	}

	lines := splitLines(trimmed)
	if err := validateDeviceHeader(lines[0]); err != nil {
		return nil, err
	}

	result := &models.DeviceParseResult{}
	for i := 1; i < len(lines); i++ {
		// Every line after the header counts as a row, blank or not; blanks
		// are skipped without becoming records or errors.
		result.TotalRows++
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}

		record, err := parseDeviceRow(line)
		if err != nil {
			result.Errors = append(result.Errors, models.RowError{
				Line:    i + 1,
				Content: line,
				Err:     err.Error(),
			})
			continue
		}
		result.Data = append(result.Data, *record)
	}

	result.ValidRows = len(result.Data)
	result.ErrorRows = len(result.Errors)
	return result, nil
}

func validateDeviceHeader(headerLine string) error {
	present := make(map[string]bool)
	for _, h := range strings.Split(headerLine, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			present[h] = true
		}
	}

	var missing []string
	for _, h := range deviceHeaders {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

func parseDeviceRow(line string) (*models.DeviceRecord, error) {
	fields := splitCSVRow(line)

	// Discard the leading empty column the export prepends.
	if len(fields) > 0 && strings.TrimSpace(fields[0]) == "" {
		fields = fields[1:]
	}
	if len(fields) != len(deviceHeaders) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(deviceHeaders), len(fields))
	}

	transactionDate, err := time.Parse("2006-01-02", strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid Transaction Date: %s", strings.TrimSpace(fields[0]))
	}

	nasID := strings.TrimSpace(fields[1])
	if nasID == "" {
		return nil, fmt.Errorf("empty NAS-ID")
	}

	totalSessions, err := parseNonNegativeInt(fields[2])
	if err != nil {
		return nil, fmt.Errorf("invalid Total Sessions: %s", strings.TrimSpace(fields[2]))
	}
	countOfUsers, err := parseNonNegativeInt(fields[3])
	if err != nil {
		return nil, fmt.Errorf("invalid Count of Users: %s", strings.TrimSpace(fields[3]))
	}
	rejects, err := parseNonNegativeInt(fields[4])
	if err != nil {
		return nil, fmt.Errorf("invalid Rejects: %s", strings.TrimSpace(fields[4]))
	}

	totalGbs, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64)
	if err != nil || math.IsNaN(totalGbs) || math.IsInf(totalGbs, 0) || totalGbs < 0 {
		return nil, fmt.Errorf("invalid Total GBs: %s", strings.TrimSpace(fields[5]))
	}

	return &models.DeviceRecord{
		TransactionDate: transactionDate,
		NasID:           nasID,
		TotalSessions:   totalSessions,
		CountOfUsers:    countOfUsers,
		Rejects:         rejects,
		TotalGbs:        totalGbs,
	}, nil
}

func parseNonNegativeInt(field string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}

// splitCSVRow splits a data row on commas while honoring double-quoted
// fields: a comma inside quotes is not a separator.
func splitCSVRow(line string) []string {
	var fields []string
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	fields = append(fields, current.String())
	return fields
}
