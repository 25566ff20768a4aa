package pipeline

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
	"github.com/nwtelemetry/huboffload/internal/parser"
	"github.com/nwtelemetry/huboffload/internal/reconcile"
	"github.com/nwtelemetry/huboffload/pkg/checksum"
)

// Scraper captures portal exports. Satisfied by automation.Scraper; the
// tests substitute a fake.
type Scraper interface {
	ScrapeDevice(nasID string, start, end time.Time) (*models.RawExportFile, error)
	ScrapeAggregate() (*models.RawExportFile, error)
}

// DefaultInterDeviceDelay paces sequential device runs so the portal is
// never hit by overlapping sessions.
const DefaultInterDeviceDelay = 5 * time.Second

// Runner orchestrates one scrape-parse-reconcile-audit cycle per
// invocation. Every run appends exactly one audit entry, failures included.
type Runner struct {
	scraper          Scraper
	store            database.Store
	interDeviceDelay time.Duration
}

func NewRunner(scraper Scraper, store database.Store) *Runner {
	return &Runner{
		scraper:          scraper,
		store:            store,
		interDeviceDelay: DefaultInterDeviceDelay,
	}
}

// SetInterDeviceDelay overrides the pause between sequential device runs.
func (r *Runner) SetInterDeviceDelay(d time.Duration) {
	r.interDeviceDelay = d
}

func validateRequest(req models.RunRequest) error {
	if req.NasID == "" {
		return errors.New("nas id is required")
	}
	if req.StartDate.IsZero() != req.EndDate.IsZero() {
		return errors.New("start and end dates must be provided together")
	}
	if req.HasDateRange() && req.EndDate.Before(req.StartDate) {
		return fmt.Errorf("end date %s precedes start date %s",
			database.DayKey(req.EndDate), database.DayKey(req.StartDate))
	}
	return nil
}

// RunDevice executes the full device pipeline for one NAS ID. Fatal
// failures (automation, export capture, schema mismatch) are returned as
// errors after the failure is audited; row-level problems are reported in
// the summary and do not fail the run.
func (r *Runner) RunDevice(req models.RunRequest) (*models.RunSummary, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log.Printf("Starting device run %s for NAS %s", runID, req.NasID)

	file, err := r.scraper.ScrapeDevice(req.NasID, req.StartDate, req.EndDate)
	if err != nil {
		r.auditFailure(runID, req.NasID, "", "", err)
		return nil, fmt.Errorf("scrape failed for NAS %s: %w", req.NasID, err)
	}
	sum := checksum.Sum(file.Content)

	result, err := parser.ParseDevice(file.Content)
	if err != nil {
		r.auditFailure(runID, req.NasID, file.Filename, sum, err)
		return nil, fmt.Errorf("export for NAS %s is unusable: %w", req.NasID, err)
	}

	upsert := reconcile.NewDeviceEngine(r.store).Reconcile(result.Data)

	entry := models.AuditLogEntry{
		RunID:          runID,
		NasID:          req.NasID,
		SourceFilename: file.Filename,
		Checksum:       sum,
		RowsParsed:     result.TotalRows,
		RowsUpserted:   upsert.TotalUpserted,
		RowsChanged:    upsert.TotalChanged,
		Success:        true,
		Timestamp:      time.Now().UTC(),
	}
	if result.ErrorRows > 0 || len(upsert.Errors) > 0 {
		entry.ErrorText = fmt.Sprintf("%d rows rejected by validation, %d rows failed to write",
			result.ErrorRows, len(upsert.Errors))
	}
	r.writeAudit(entry)

	if err := r.store.TouchDeviceScrape(req.NasID, entry.Timestamp); err != nil {
		log.Printf("Failed to record scrape time for NAS %s: %v", req.NasID, err)
	}

	return &models.RunSummary{
		RunID:          runID,
		Success:        true,
		NasID:          req.NasID,
		SourceFilename: file.Filename,
		TotalProcessed: upsert.TotalProcessed,
		TotalUpserted:  upsert.TotalUpserted,
		TotalChanged:   upsert.TotalChanged,
		Errors:         upsert.Errors,
	}, nil
}

// RunAggregate executes the aggregate pipeline over the Data Usage
// Timeline export.
func (r *Runner) RunAggregate() (*models.AggregateUpsertResult, error) {
	runID := uuid.NewString()
	log.Printf("Starting aggregate run %s", runID)

	file, err := r.scraper.ScrapeAggregate()
	if err != nil {
		r.auditFailure(runID, "", "", "", err)
		return nil, fmt.Errorf("aggregate scrape failed: %w", err)
	}
	sum := checksum.Sum(file.Content)

	records := parser.ParseAggregate(file.Content)
	if len(records) == 0 {
		err := errors.New("no day rows recognized in aggregate export")
		r.auditFailure(runID, "", file.Filename, sum, err)
		return nil, err
	}

	result, err := reconcile.NewAggregateEngine(r.store).Reconcile(records)
	if err != nil {
		r.auditFailure(runID, "", file.Filename, sum, err)
		return nil, fmt.Errorf("aggregate reconciliation failed: %w", err)
	}

	r.writeAudit(models.AuditLogEntry{
		RunID:          runID,
		SourceFilename: file.Filename,
		Checksum:       sum,
		RowsParsed:     result.TotalParsed,
		RowsUpserted:   result.Upserted,
		RowsChanged:    result.Updated,
		Success:        true,
		Timestamp:      time.Now().UTC(),
	})
	return result, nil
}

// RunAll runs the device pipeline for every active registry device in
// sequence. A failed device never aborts the sweep; its summary carries
// Success=false and the next device starts after the usual delay.
func (r *Runner) RunAll() ([]models.RunSummary, error) {
	devices, err := r.store.ListDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var summaries []models.RunSummary
	first := true
	for _, device := range devices {
		if !device.Active {
			continue
		}
		if !first {
			time.Sleep(r.interDeviceDelay)
		}
		first = false

		summary, err := r.RunDevice(models.RunRequest{NasID: device.NasID})
		if err != nil {
			log.Printf("Run failed for NAS %s: %v", device.NasID, err)
			summaries = append(summaries, models.RunSummary{
				NasID:   device.NasID,
				Success: false,
			})
			continue
		}
		summaries = append(summaries, *summary)
	}

	if len(summaries) == 0 {
		return nil, errors.New("no active devices in registry")
	}
	return summaries, nil
}

func (r *Runner) auditFailure(runID, nasID, filename, sum string, cause error) {
	r.writeAudit(models.AuditLogEntry{
		RunID:          runID,
		NasID:          nasID,
		SourceFilename: filename,
		Checksum:       sum,
		Success:        false,
		ErrorText:      cause.Error(),
		Timestamp:      time.Now().UTC(),
	})
}

// Audit writes are best effort: a run that already changed the usage
// tables must not be reported as failed because the log insert broke.
func (r *Runner) writeAudit(entry models.AuditLogEntry) {
	if err := r.store.AppendAuditLog(entry); err != nil {
		log.Printf("Failed to append audit entry for run %s: %v", entry.RunID, err)
	}
}
