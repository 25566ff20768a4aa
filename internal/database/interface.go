package database

import (
	"time"

	"github.com/nwtelemetry/huboffload/internal/models"
)

// Store defines the persistence operations consumed by the reconciliation
// engine, the pipeline runner, the device registry and the query API.
type Store interface {
	// Aggregate offload path.
	GetDailyUsage(days []time.Time) (map[string]float64, error)
	UpsertDailyUsage(records []models.AggregateRecord) error

	// Device offload path, keyed by (transaction_date, nas_id).
	GetDeviceDaily(date time.Time, nasID string) (*models.DeviceRecord, error)
	InsertDeviceDaily(record models.DeviceRecord) error
	UpdateDeviceDaily(record models.DeviceRecord) error

	// Audit trail. Append-only; one entry per pipeline run.
	AppendAuditLog(entry models.AuditLogEntry) error

	// Read path for the query API.
	GetLatestDaily() (*models.AggregateRecord, error)
	GetDailyRange(start, end time.Time) ([]models.AggregateRecord, error)
	GetDeviceRange(nasID string, start, end time.Time) ([]models.DeviceRecord, error)

	// Device registry.
	ListDevices() ([]models.Device, error)
	GetDevice(nasID string) (*models.Device, error)
	AddDevice(nasID, name, notes string) (*models.Device, error)
	RemoveDevice(nasID string) error
	TouchDeviceScrape(nasID string, at time.Time) error
}

// DayKey normalizes a calendar date to the map key used by batched daily
// lookups.
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}
