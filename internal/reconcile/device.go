package reconcile

import (
	"fmt"
	"log"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
)

// DeviceEngine reconciles per-device records against the store, one row at
// a time keyed by (transaction_date, nas_id).
type DeviceEngine struct {
	store database.Store
}

func NewDeviceEngine(store database.Store) *DeviceEngine {
	return &DeviceEngine{store: store}
}

// Reconcile upserts each record independently: absent rows are inserted,
// present rows are updated only when one of the four numeric fields differs
// (exact comparison; these come from a structured export). A store failure
// on one row is collected and does not abort the remaining rows.
func (e *DeviceEngine) Reconcile(records []models.DeviceRecord) *models.DeviceUpsertResult {
	result := &models.DeviceUpsertResult{TotalProcessed: len(records)}

	for _, record := range records {
		upserted, changed, err := e.reconcileOne(record)
		if err != nil {
			log.Printf("Error upserting device row %s: %v", rowKey(record), err)
			result.Errors = append(result.Errors, models.UpsertError{
				Key: rowKey(record),
				Err: err.Error(),
			})
			continue
		}
		if upserted {
			result.TotalUpserted++
		}
		if changed {
			result.TotalChanged++
		}
	}

	return result
}

func (e *DeviceEngine) reconcileOne(record models.DeviceRecord) (upserted, changed bool, err error) {
	existing, err := e.store.GetDeviceDaily(record.TransactionDate, record.NasID)
	if err != nil {
		return false, false, err
	}

	if existing == nil {
		if err := e.store.InsertDeviceDaily(record); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	if existing.TotalSessions == record.TotalSessions &&
		existing.CountOfUsers == record.CountOfUsers &&
		existing.Rejects == record.Rejects &&
		existing.TotalGbs == record.TotalGbs {
		return false, false, nil
	}

	if err := e.store.UpdateDeviceDaily(record); err != nil {
		return false, false, err
	}
	return true, true, nil
}

func rowKey(record models.DeviceRecord) string {
	return fmt.Sprintf("%s/%s", database.DayKey(record.TransactionDate), record.NasID)
}
