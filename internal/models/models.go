package models

import "time"

// AggregateRecord is one calendar day's total offload volume across all
// devices, as exported by the Data Usage Timeline report.
type AggregateRecord struct {
	Day       time.Time `json:"day"`
	Gigabytes float64   `json:"gigabytes"`
}

// DeviceRecord is one calendar day's offload statistics for a single NAS ID,
// as exported by the NASID Daily report.
type DeviceRecord struct {
	TransactionDate time.Time `json:"transaction_date"`
	NasID           string    `json:"nas_id"`
	TotalSessions   int64     `json:"total_sessions"`
	CountOfUsers    int64     `json:"count_of_users"`
	Rejects         int64     `json:"rejects"`
	TotalGbs        float64   `json:"total_gbs"`
}

// RowError records a data row that failed validation. Line is the 1-based
// line number in the source export.
type RowError struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
	Err     string `json:"error"`
}

// DeviceParseResult carries valid device rows alongside the rows that failed
// validation. A non-empty Errors list does not invalidate Data: row failures
// never abort the batch.
type DeviceParseResult struct {
	Data      []DeviceRecord `json:"data"`
	Errors    []RowError     `json:"errors"`
	TotalRows int            `json:"totalRows"`
	ValidRows int            `json:"validRows"`
	ErrorRows int            `json:"errorRows"`
}

// RawExportFile is the captured portal export. Produced once per run and
// consumed immediately by the parser; never persisted.
type RawExportFile struct {
	Filename   string
	Content    string
	CapturedAt time.Time
}

// AggregateUpsertResult reports the outcome of a diff-based aggregate write.
// Upserted = Inserted + Updated = rows actually sent to the store.
type AggregateUpsertResult struct {
	Inserted    int `json:"inserted"`
	Updated     int `json:"updated"`
	Upserted    int `json:"upserted"`
	TotalParsed int `json:"totalParsed"`
}

// UpsertError records a single device row the store could not read or write.
type UpsertError struct {
	Key string `json:"key"`
	Err string `json:"error"`
}

// DeviceUpsertResult reports the outcome of a per-row device reconciliation.
type DeviceUpsertResult struct {
	TotalProcessed int           `json:"totalProcessed"`
	TotalUpserted  int           `json:"totalUpserted"`
	TotalChanged   int           `json:"totalChanged"`
	Errors         []UpsertError `json:"errors"`
}

// AuditLogEntry is appended to the scrape log exactly once per pipeline run,
// success or failure. Never mutated or deleted afterwards.
type AuditLogEntry struct {
	RunID          string
	NasID          string
	SourceFilename string
	Checksum       string
	RowsParsed     int
	RowsUpserted   int
	RowsChanged    int
	Success        bool
	ErrorText      string
	Timestamp      time.Time
}

// RunRequest is the pipeline invocation input. StartDate and EndDate must
// both be set or both be zero.
type RunRequest struct {
	NasID     string
	StartDate time.Time
	EndDate   time.Time
}

// HasDateRange reports whether the request scopes the report to a custom
// date window.
func (r RunRequest) HasDateRange() bool {
	return !r.StartDate.IsZero() && !r.EndDate.IsZero()
}

// RunSummary is the pipeline invocation output for a run that reached the
// reconciliation stage. Fatal automation and export failures are returned
// as errors instead.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Success        bool          `json:"success"`
	NasID          string        `json:"nas_id"`
	SourceFilename string        `json:"source_filename"`
	TotalProcessed int           `json:"totalProcessed"`
	TotalUpserted  int           `json:"totalUpserted"`
	TotalChanged   int           `json:"totalChanged"`
	Errors         []UpsertError `json:"errors"`
}

// Device is a registry entry for a NAS device on the scrape list.
type Device struct {
	ID         int       `json:"id"`
	NasID      string    `json:"nas_id"`
	Name       string    `json:"device_name"`
	Notes      string    `json:"notes,omitempty"`
	Active     bool      `json:"is_active"`
	AddedAt    time.Time `json:"added_at"`
	LastScrape time.Time `json:"last_scraped,omitempty"`
}
