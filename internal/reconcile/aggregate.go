// Package reconcile persists parsed export records while writing only the
// rows that actually changed, and reports precise counts of what was
// written.
package reconcile

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
)

// Epsilon absorbs floating-point noise on stored gigabyte values without
// masking real changes.
const Epsilon = 1e-4

// AggregateEngine reconciles daily aggregate records against the store.
type AggregateEngine struct {
	store database.Store
}

func NewAggregateEngine(store database.Store) *AggregateEngine {
	return &AggregateEngine{store: store}
}

// Reconcile performs one batched read of the days present in the batch,
// classifies each row as insert, update or unchanged, and sends only the
// insert/update rows in a single batched upsert keyed by day. Unchanged
// rows (within Epsilon) are excluded from the write entirely.
func (e *AggregateEngine) Reconcile(records []models.AggregateRecord) (*models.AggregateUpsertResult, error) {
	result := &models.AggregateUpsertResult{TotalParsed: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	days := make([]time.Time, len(records))
	for i, r := range records {
		days[i] = r.Day
	}

	existing, err := e.store.GetDailyUsage(days)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing daily usage: %w", err)
	}

	var toWrite []models.AggregateRecord
	for _, r := range records {
		have, found := existing[database.DayKey(r.Day)]
		switch {
		case !found:
			toWrite = append(toWrite, r)
			result.Inserted++
		case !nearlyEqual(have, r.Gigabytes):
			toWrite = append(toWrite, r)
			result.Updated++
		}
	}

	if len(toWrite) > 0 {
		if err := e.store.UpsertDailyUsage(toWrite); err != nil {
			return nil, fmt.Errorf("failed to upsert daily usage: %w", err)
		}
	}

	result.Upserted = len(toWrite)
	log.Printf("Aggregate reconciliation: %d parsed, %d inserted, %d updated, %d unchanged",
		result.TotalParsed, result.Inserted, result.Updated, result.TotalParsed-result.Upserted)

	return result, nil
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}
