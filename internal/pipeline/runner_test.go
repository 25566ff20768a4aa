package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nwtelemetry/huboffload/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetDailyUsage(days []time.Time) (map[string]float64, error) {
	args := m.Called(days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *MockStore) UpsertDailyUsage(records []models.AggregateRecord) error {
	args := m.Called(records)
	return args.Error(0)
}

func (m *MockStore) GetDeviceDaily(date time.Time, nasID string) (*models.DeviceRecord, error) {
	args := m.Called(date, nasID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DeviceRecord), args.Error(1)
}

func (m *MockStore) InsertDeviceDaily(record models.DeviceRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockStore) UpdateDeviceDaily(record models.DeviceRecord) error {
	args := m.Called(record)
	return args.Error(0)
}

func (m *MockStore) AppendAuditLog(entry models.AuditLogEntry) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockStore) GetLatestDaily() (*models.AggregateRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AggregateRecord), args.Error(1)
}

func (m *MockStore) GetDailyRange(start, end time.Time) ([]models.AggregateRecord, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.AggregateRecord), args.Error(1)
}

func (m *MockStore) GetDeviceRange(nasID string, start, end time.Time) ([]models.DeviceRecord, error) {
	args := m.Called(nasID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DeviceRecord), args.Error(1)
}

func (m *MockStore) ListDevices() ([]models.Device, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Device), args.Error(1)
}

func (m *MockStore) GetDevice(nasID string) (*models.Device, error) {
	args := m.Called(nasID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}

func (m *MockStore) AddDevice(nasID, name, notes string) (*models.Device, error) {
	args := m.Called(nasID, name, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}

func (m *MockStore) RemoveDevice(nasID string) error {
	args := m.Called(nasID)
	return args.Error(0)
}

func (m *MockStore) TouchDeviceScrape(nasID string, at time.Time) error {
	args := m.Called(nasID, at)
	return args.Error(0)
}

type fakeScraper struct {
	deviceFile    *models.RawExportFile
	deviceErr     error
	aggregateFile *models.RawExportFile
	aggregateErr  error
	deviceCalls   []string
}

func (f *fakeScraper) ScrapeDevice(nasID string, start, end time.Time) (*models.RawExportFile, error) {
	f.deviceCalls = append(f.deviceCalls, nasID)
	return f.deviceFile, f.deviceErr
}

func (f *fakeScraper) ScrapeAggregate() (*models.RawExportFile, error) {
	return f.aggregateFile, f.aggregateErr
}

const deviceCSV = `,Transaction Date,NAS-ID,Total Sessions,Count of Users,Rejects,Total GBs
,2025-03-01,site-01,120,45,3,18.25
,2025-03-02,site-01,98,40,1,15.5
`

func TestRunDevice(t *testing.T) {
	t.Run("should audit a successful run and return its summary", func(t *testing.T) {
		scraper := &fakeScraper{deviceFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  deviceCSV,
		}}
		store := new(MockStore)
		store.On("GetDeviceDaily", mock.Anything, "site-01").Return(nil, nil)
		store.On("InsertDeviceDaily", mock.Anything).Return(nil)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return entry.Success &&
				entry.NasID == "site-01" &&
				entry.SourceFilename == "download.csv" &&
				entry.Checksum != "" &&
				entry.RowsParsed == 2 &&
				entry.RowsUpserted == 2
		})).Return(nil)
		store.On("TouchDeviceScrape", "site-01", mock.Anything).Return(nil)

		summary, err := NewRunner(scraper, store).RunDevice(models.RunRequest{NasID: "site-01"})

		assert.NoError(t, err)
		assert.True(t, summary.Success)
		assert.NotEmpty(t, summary.RunID)
		assert.Equal(t, 2, summary.TotalUpserted)
		assert.Empty(t, summary.Errors)
		store.AssertExpectations(t)
	})

	t.Run("should audit a scrape failure and return the error", func(t *testing.T) {
		scraper := &fakeScraper{deviceErr: errors.New("browser crashed")}
		store := new(MockStore)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return !entry.Success && entry.ErrorText == "browser crashed"
		})).Return(nil)

		summary, err := NewRunner(scraper, store).RunDevice(models.RunRequest{NasID: "site-01"})

		assert.Error(t, err)
		assert.Nil(t, summary)
		store.AssertExpectations(t)
		store.AssertNotCalled(t, "TouchDeviceScrape", mock.Anything, mock.Anything)
	})

	t.Run("should audit an unusable export as a failed run", func(t *testing.T) {
		scraper := &fakeScraper{deviceFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  "Date,Volume\n2025-03-01,10\n",
		}}
		store := new(MockStore)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return !entry.Success && entry.Checksum != ""
		})).Return(nil)

		_, err := NewRunner(scraper, store).RunDevice(models.RunRequest{NasID: "site-01"})

		assert.Error(t, err)
		store.AssertExpectations(t)
	})

	t.Run("should reject a request with only a start date", func(t *testing.T) {
		scraper := &fakeScraper{}
		store := new(MockStore)

		_, err := NewRunner(scraper, store).RunDevice(models.RunRequest{
			NasID:     "site-01",
			StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		})

		assert.Error(t, err)
		assert.Empty(t, scraper.deviceCalls)
		store.AssertNotCalled(t, "AppendAuditLog", mock.Anything)
	})

	t.Run("should reject an inverted date range", func(t *testing.T) {
		scraper := &fakeScraper{}
		store := new(MockStore)

		_, err := NewRunner(scraper, store).RunDevice(models.RunRequest{
			NasID:     "site-01",
			StartDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		})

		assert.Error(t, err)
		assert.Empty(t, scraper.deviceCalls)
	})
}

func TestRunAll(t *testing.T) {
	t.Run("should sweep active devices and skip inactive ones", func(t *testing.T) {
		scraper := &fakeScraper{deviceFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  deviceCSV,
		}}
		store := new(MockStore)
		store.On("ListDevices").Return([]models.Device{
			{NasID: "site-01", Active: true},
			{NasID: "site-02", Active: false},
			{NasID: "site-03", Active: true},
		}, nil)
		store.On("GetDeviceDaily", mock.Anything, mock.Anything).Return(nil, nil)
		store.On("InsertDeviceDaily", mock.Anything).Return(nil)
		store.On("AppendAuditLog", mock.Anything).Return(nil)
		store.On("TouchDeviceScrape", mock.Anything, mock.Anything).Return(nil)

		runner := NewRunner(scraper, store)
		runner.SetInterDeviceDelay(0)
		summaries, err := runner.RunAll()

		assert.NoError(t, err)
		assert.Len(t, summaries, 2)
		assert.Equal(t, []string{"site-01", "site-03"}, scraper.deviceCalls)
	})

	t.Run("should continue the sweep when one device fails", func(t *testing.T) {
		scraper := &fakeScraper{deviceErr: errors.New("portal timeout")}
		store := new(MockStore)
		store.On("ListDevices").Return([]models.Device{
			{NasID: "site-01", Active: true},
			{NasID: "site-02", Active: true},
		}, nil)
		store.On("AppendAuditLog", mock.Anything).Return(nil)

		runner := NewRunner(scraper, store)
		runner.SetInterDeviceDelay(0)
		summaries, err := runner.RunAll()

		assert.NoError(t, err)
		assert.Len(t, summaries, 2)
		assert.False(t, summaries[0].Success)
		assert.False(t, summaries[1].Success)
		assert.Equal(t, []string{"site-01", "site-02"}, scraper.deviceCalls)
	})

	t.Run("should fail when the registry has no active devices", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListDevices").Return([]models.Device{}, nil)

		_, err := NewRunner(&fakeScraper{}, store).RunAll()

		assert.Error(t, err)
	})
}

func TestRunAggregate(t *testing.T) {
	t.Run("should reconcile recognized day rows and audit the run", func(t *testing.T) {
		scraper := &fakeScraper{aggregateFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  "Date Total\n2025-03-01 1,234.5\n2025-03-02 987.6\n",
		}}
		store := new(MockStore)
		store.On("GetDailyUsage", mock.Anything).Return(map[string]float64{}, nil)
		store.On("UpsertDailyUsage", mock.Anything).Return(nil)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return entry.Success && entry.RowsParsed == 2 && entry.RowsUpserted == 2
		})).Return(nil)

		result, err := NewRunner(scraper, store).RunAggregate()

		assert.NoError(t, err)
		assert.Equal(t, 2, result.Inserted)
		store.AssertExpectations(t)
	})

	t.Run("should audit only updated rows as changed", func(t *testing.T) {
		scraper := &fakeScraper{aggregateFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  "2025-03-01 100.0\n2025-03-02 987.6\n",
		}}
		store := new(MockStore)
		// Day one already stored with a different value, day two is new.
		store.On("GetDailyUsage", mock.Anything).Return(map[string]float64{
			"2025-03-01": 90.0,
		}, nil)
		store.On("UpsertDailyUsage", mock.Anything).Return(nil)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return entry.Success && entry.RowsUpserted == 2 && entry.RowsChanged == 1
		})).Return(nil)

		result, err := NewRunner(scraper, store).RunAggregate()

		assert.NoError(t, err)
		assert.Equal(t, 1, result.Inserted)
		assert.Equal(t, 1, result.Updated)
		store.AssertExpectations(t)
	})

	t.Run("should audit zero changed rows when every row is new", func(t *testing.T) {
		scraper := &fakeScraper{aggregateFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  "2025-03-01 100.0\n2025-03-02 987.6\n",
		}}
		store := new(MockStore)
		store.On("GetDailyUsage", mock.Anything).Return(map[string]float64{}, nil)
		store.On("UpsertDailyUsage", mock.Anything).Return(nil)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return entry.RowsUpserted == 2 && entry.RowsChanged == 0
		})).Return(nil)

		_, err := NewRunner(scraper, store).RunAggregate()

		assert.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("should audit a failure when no day rows are recognized", func(t *testing.T) {
		scraper := &fakeScraper{aggregateFile: &models.RawExportFile{
			Filename: "download.csv",
			Content:  "<html>session expired</html>",
		}}
		store := new(MockStore)
		store.On("AppendAuditLog", mock.MatchedBy(func(entry models.AuditLogEntry) bool {
			return !entry.Success
		})).Return(nil)

		_, err := NewRunner(scraper, store).RunAggregate()

		assert.Error(t, err)
		store.AssertExpectations(t)
	})
}
