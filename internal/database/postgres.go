package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nwtelemetry/huboffload/internal/models"
)

func ConnectDB(connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return dbpool, nil
}

type PostgresStore struct {
	dbpool *pgxpool.Pool
	ctx    context.Context
}

func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{dbpool: pool, ctx: ctx}
}

// EnsureSchema creates the offload tables if they do not exist yet.
func (m *PostgresStore) EnsureSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS offload_daily (
			day DATE PRIMARY KEY,
			gigabytes NUMERIC(14, 4) NOT NULL CHECK (gigabytes >= 0),
			updated_at TIMESTAMP NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS device_offload_daily (
			id SERIAL PRIMARY KEY,
			transaction_date DATE NOT NULL,
			nas_id VARCHAR(255) NOT NULL,
			total_sessions BIGINT NOT NULL CHECK (total_sessions >= 0),
			count_of_users BIGINT NOT NULL CHECK (count_of_users >= 0),
			rejects BIGINT NOT NULL CHECK (rejects >= 0),
			total_gbs NUMERIC(14, 4) NOT NULL CHECK (total_gbs >= 0),
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			updated_at TIMESTAMP NOT NULL DEFAULT now(),
			UNIQUE (transaction_date, nas_id)
		);`,
		`CREATE TABLE IF NOT EXISTS scrape_log (
			id SERIAL PRIMARY KEY,
			run_id VARCHAR(64),
			nas_id VARCHAR(255),
			source_filename VARCHAR(255),
			checksum VARCHAR(64),
			rows_parsed INTEGER NOT NULL DEFAULT 0,
			rows_upserted INTEGER NOT NULL DEFAULT 0,
			rows_changed INTEGER NOT NULL DEFAULT 0,
			success BOOLEAN NOT NULL,
			error_text TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS devices (
			id SERIAL PRIMARY KEY,
			nas_id VARCHAR(255) NOT NULL UNIQUE,
			device_name VARCHAR(255) NOT NULL,
			notes TEXT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			added_at TIMESTAMP NOT NULL DEFAULT now(),
			last_scraped TIMESTAMP
		);`,
	}

	for _, query := range queries {
		if _, err := m.dbpool.Exec(m.ctx, query); err != nil {
			return fmt.Errorf("error creating schema: %v", err)
		}
	}

	return nil
}

// GetDailyUsage returns the persisted gigabyte values for the given days,
// keyed by DayKey. Days with no persisted row are absent from the map.
func (m *PostgresStore) GetDailyUsage(days []time.Time) (map[string]float64, error) {
	existing := make(map[string]float64, len(days))
	if len(days) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(days))
	args := make([]interface{}, len(days))
	for i, day := range days {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = day
	}

	query := fmt.Sprintf(
		`SELECT day, gigabytes FROM offload_daily WHERE day = ANY(ARRAY[%s]::date[])`,
		strings.Join(placeholders, ", "))

	rows, err := m.dbpool.Query(m.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying daily usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day time.Time
		var gigabytes float64
		if err := rows.Scan(&day, &gigabytes); err != nil {
			return nil, fmt.Errorf("error scanning daily usage row: %w", err)
		}
		existing[DayKey(day)] = gigabytes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily usage rows: %w", err)
	}

	return existing, nil
}

// UpsertDailyUsage writes the batch in a single statement keyed by day.
func (m *PostgresStore) UpsertDailyUsage(records []models.AggregateRecord) error {
	if len(records) == 0 {
		return nil
	}

	values := make([]string, len(records))
	args := make([]interface{}, 0, len(records)*2)
	for i, r := range records {
		values[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
		args = append(args, r.Day, r.Gigabytes)
	}

	query := fmt.Sprintf(`
	INSERT INTO offload_daily (day, gigabytes)
	VALUES %s
	ON CONFLICT (day) DO UPDATE
	SET gigabytes = EXCLUDED.gigabytes,
		updated_at = now();`, strings.Join(values, ", "))

	if _, err := m.dbpool.Exec(m.ctx, query, args...); err != nil {
		return fmt.Errorf("error upserting daily usage: %w", err)
	}

	return nil
}

// GetDeviceDaily looks up one row by its composite key. Returns nil without
// error when no row exists.
func (m *PostgresStore) GetDeviceDaily(date time.Time, nasID string) (*models.DeviceRecord, error) {
	query := `
	SELECT transaction_date, nas_id, total_sessions, count_of_users, rejects, total_gbs
	FROM device_offload_daily
	WHERE transaction_date = $1 AND nas_id = $2;`

	var record models.DeviceRecord
	err := m.dbpool.QueryRow(m.ctx, query, date, nasID).Scan(
		&record.TransactionDate, &record.NasID, &record.TotalSessions,
		&record.CountOfUsers, &record.Rejects, &record.TotalGbs)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying device daily row: %w", err)
	}

	return &record, nil
}

func (m *PostgresStore) InsertDeviceDaily(record models.DeviceRecord) error {
	query := `
	INSERT INTO device_offload_daily (transaction_date, nas_id, total_sessions, count_of_users, rejects, total_gbs)
	VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := m.dbpool.Exec(m.ctx, query, record.TransactionDate, record.NasID,
		record.TotalSessions, record.CountOfUsers, record.Rejects, record.TotalGbs)
	if err != nil {
		return fmt.Errorf("error inserting device daily row: %w", err)
	}

	return nil
}

func (m *PostgresStore) UpdateDeviceDaily(record models.DeviceRecord) error {
	query := `
	UPDATE device_offload_daily
	SET total_sessions = $1,
		count_of_users = $2,
		rejects = $3,
		total_gbs = $4,
		updated_at = now()
	WHERE transaction_date = $5 AND nas_id = $6;`

	_, err := m.dbpool.Exec(m.ctx, query, record.TotalSessions, record.CountOfUsers,
		record.Rejects, record.TotalGbs, record.TransactionDate, record.NasID)
	if err != nil {
		return fmt.Errorf("error updating device daily row: %w", err)
	}

	return nil
}

func (m *PostgresStore) AppendAuditLog(entry models.AuditLogEntry) error {
	query := `
	INSERT INTO scrape_log (run_id, nas_id, source_filename, checksum, rows_parsed, rows_upserted, rows_changed, success, error_text, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10);`

	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	_, err := m.dbpool.Exec(m.ctx, query, entry.RunID, entry.NasID, entry.SourceFilename,
		entry.Checksum, entry.RowsParsed, entry.RowsUpserted, entry.RowsChanged,
		entry.Success, entry.ErrorText, timestamp)
	if err != nil {
		return fmt.Errorf("error appending scrape log entry: %w", err)
	}

	return nil
}

// GetLatestDaily returns the most recent aggregate row, or nil when the
// table is empty.
func (m *PostgresStore) GetLatestDaily() (*models.AggregateRecord, error) {
	query := `SELECT day, gigabytes FROM offload_daily ORDER BY day DESC LIMIT 1;`

	var record models.AggregateRecord
	err := m.dbpool.QueryRow(m.ctx, query).Scan(&record.Day, &record.Gigabytes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying latest daily row: %w", err)
	}

	return &record, nil
}

// GetDailyRange returns aggregate rows ordered by day ascending. Zero start
// or end leaves that bound open.
func (m *PostgresStore) GetDailyRange(start, end time.Time) ([]models.AggregateRecord, error) {
	query := `
	SELECT day, gigabytes FROM offload_daily
	WHERE ($1::date IS NULL OR day >= $1)
	  AND ($2::date IS NULL OR day <= $2)
	ORDER BY day;`

	rows, err := m.dbpool.Query(m.ctx, query, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, fmt.Errorf("error querying daily range: %w", err)
	}
	defer rows.Close()

	var records []models.AggregateRecord
	for rows.Next() {
		var r models.AggregateRecord
		if err := rows.Scan(&r.Day, &r.Gigabytes); err != nil {
			return nil, fmt.Errorf("error scanning daily range row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily range rows: %w", err)
	}

	return records, nil
}

// GetDeviceRange returns device rows for one NAS ID ordered by transaction
// date descending. Zero start or end leaves that bound open.
func (m *PostgresStore) GetDeviceRange(nasID string, start, end time.Time) ([]models.DeviceRecord, error) {
	query := `
	SELECT transaction_date, nas_id, total_sessions, count_of_users, rejects, total_gbs
	FROM device_offload_daily
	WHERE nas_id = $1
	  AND ($2::date IS NULL OR transaction_date >= $2)
	  AND ($3::date IS NULL OR transaction_date <= $3)
	ORDER BY transaction_date DESC;`

	rows, err := m.dbpool.Query(m.ctx, query, nasID, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, fmt.Errorf("error querying device range: %w", err)
	}
	defer rows.Close()

	var records []models.DeviceRecord
	for rows.Next() {
		var r models.DeviceRecord
		if err := rows.Scan(&r.TransactionDate, &r.NasID, &r.TotalSessions,
			&r.CountOfUsers, &r.Rejects, &r.TotalGbs); err != nil {
			return nil, fmt.Errorf("error scanning device range row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device range rows: %w", err)
	}

	return records, nil
}

func (m *PostgresStore) ListDevices() ([]models.Device, error) {
	query := `
	SELECT id, nas_id, device_name, COALESCE(notes, ''), is_active, added_at, COALESCE(last_scraped, 'epoch'::timestamp)
	FROM devices
	ORDER BY added_at DESC;`

	rows, err := m.dbpool.Query(m.ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.ID, &d.NasID, &d.Name, &d.Notes, &d.Active, &d.AddedAt, &d.LastScrape); err != nil {
			return nil, fmt.Errorf("error scanning device row: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device rows: %w", err)
	}

	return devices, nil
}

func (m *PostgresStore) GetDevice(nasID string) (*models.Device, error) {
	query := `
	SELECT id, nas_id, device_name, COALESCE(notes, ''), is_active, added_at, COALESCE(last_scraped, 'epoch'::timestamp)
	FROM devices
	WHERE nas_id = $1;`

	var d models.Device
	err := m.dbpool.QueryRow(m.ctx, query, nasID).Scan(
		&d.ID, &d.NasID, &d.Name, &d.Notes, &d.Active, &d.AddedAt, &d.LastScrape)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("error querying device: %w", err)
	}

	return &d, nil
}

func (m *PostgresStore) AddDevice(nasID, name, notes string) (*models.Device, error) {
	if name == "" {
		name = fmt.Sprintf("Device %s", nasID)
	}

	query := `
	INSERT INTO devices (nas_id, device_name, notes, is_active)
	VALUES ($1, $2, NULLIF($3, ''), TRUE)
	ON CONFLICT (nas_id) DO UPDATE
	SET is_active = TRUE,
		device_name = EXCLUDED.device_name,
		notes = COALESCE(EXCLUDED.notes, devices.notes)
	RETURNING id, nas_id, device_name, COALESCE(notes, ''), is_active, added_at, COALESCE(last_scraped, 'epoch'::timestamp);`

	var d models.Device
	err := m.dbpool.QueryRow(m.ctx, query, nasID, name, notes).Scan(
		&d.ID, &d.NasID, &d.Name, &d.Notes, &d.Active, &d.AddedAt, &d.LastScrape)
	if err != nil {
		return nil, fmt.Errorf("error adding device: %w", err)
	}

	return &d, nil
}

// RemoveDevice takes the device off the scrape list. Its historical data
// stays in device_offload_daily.
func (m *PostgresStore) RemoveDevice(nasID string) error {
	query := `UPDATE devices SET is_active = FALSE WHERE nas_id = $1;`

	if _, err := m.dbpool.Exec(m.ctx, query, nasID); err != nil {
		return fmt.Errorf("error removing device: %w", err)
	}

	return nil
}

func (m *PostgresStore) TouchDeviceScrape(nasID string, at time.Time) error {
	query := `UPDATE devices SET last_scraped = $1 WHERE nas_id = $2;`

	if _, err := m.dbpool.Exec(m.ctx, query, at, nasID); err != nil {
		return fmt.Errorf("error updating device last_scraped: %w", err)
	}

	return nil
}

func nullableDate(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
