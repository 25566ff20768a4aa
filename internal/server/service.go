package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nwtelemetry/huboffload/internal/database"
	"github.com/nwtelemetry/huboffload/internal/models"
)

// Dispatcher hands a scrape request off to the CI pipeline. Satisfied by
// dispatch.Client. Zero dates request the report's default window.
type Dispatcher interface {
	TriggerRun(nasID string, start, end time.Time) error
}

var timeNow = time.Now

type UsageService struct {
	Store      database.Store
	Dispatcher Dispatcher
}

func NewUsageService(store database.Store, dispatcher Dispatcher) *UsageService {
	return &UsageService{Store: store, Dispatcher: dispatcher}
}

// GetLatest returns the most recent aggregate day on record.
func (h *UsageService) GetLatest(w http.ResponseWriter, r *http.Request) {
	record, err := h.Store.GetLatestDaily()
	if err != nil {
		http.Error(w, "Failed to retrieve latest usage", http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "No usage data recorded yet", http.StatusNotFound)
		return
	}
	writeJSON(w, record)
}

// GetRange returns aggregate daily rows for a date window. Defaults to the
// last 7 days when no window is given.
func (h *UsageService) GetRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseWindow(w, r)
	if !ok {
		return
	}

	records, err := h.Store.GetDailyRange(start, end)
	if err != nil {
		http.Error(w, "Failed to retrieve usage data", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.AggregateRecord{}
	}
	writeJSON(w, records)
}

type usageSummary struct {
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Days           int     `json:"days"`
	TotalGigabytes float64 `json:"total_gigabytes"`
	AvgGigabytes   float64 `json:"avg_gigabytes"`
}

// GetSummary aggregates a date window into totals.
func (h *UsageService) GetSummary(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseWindow(w, r)
	if !ok {
		return
	}

	records, err := h.Store.GetDailyRange(start, end)
	if err != nil {
		http.Error(w, "Failed to retrieve usage data", http.StatusInternalServerError)
		return
	}

	summary := usageSummary{
		Start: database.DayKey(start),
		End:   database.DayKey(end),
		Days:  len(records),
	}
	for _, record := range records {
		summary.TotalGigabytes += record.Gigabytes
	}
	if summary.Days > 0 {
		summary.AvgGigabytes = summary.TotalGigabytes / float64(summary.Days)
	}
	writeJSON(w, summary)
}

// GetDeviceOffload returns per-device daily rows for one NAS ID.
func (h *UsageService) GetDeviceOffload(w http.ResponseWriter, r *http.Request) {
	nasID := strings.TrimPrefix(r.URL.Path, "/api/device-offload/")
	if nasID == "" {
		http.Error(w, "NAS ID is required in the URL path /api/device-offload/{nasid}", http.StatusBadRequest)
		return
	}

	start, end, ok := parseWindow(w, r)
	if !ok {
		return
	}

	records, err := h.Store.GetDeviceRange(nasID, start, end)
	if err != nil {
		http.Error(w, "Failed to retrieve device usage", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.DeviceRecord{}
	}
	writeJSON(w, records)
}

type addDeviceRequest struct {
	NasID string `json:"nas_id"`
	Name  string `json:"device_name"`
	Notes string `json:"notes"`
}

// HandleDevices lists the registry on GET and registers a device on POST.
func (h *UsageService) HandleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		devices, err := h.Store.ListDevices()
		if err != nil {
			http.Error(w, "Failed to list devices", http.StatusInternalServerError)
			return
		}
		if devices == nil {
			devices = []models.Device{}
		}
		writeJSON(w, devices)

	case http.MethodPost:
		var req addDeviceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.NasID) == "" {
			http.Error(w, "nas_id is required", http.StatusBadRequest)
			return
		}
		device, err := h.Store.AddDevice(strings.TrimSpace(req.NasID), req.Name, req.Notes)
		if err != nil {
			http.Error(w, "Failed to register device", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(device)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleDeviceByID removes a device from the scrape list on DELETE.
func (h *UsageService) HandleDeviceByID(w http.ResponseWriter, r *http.Request) {
	nasID := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	if nasID == "" {
		http.Error(w, "NAS ID is required in the URL path /api/devices/{nasid}", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		device, err := h.Store.GetDevice(nasID)
		if err != nil {
			http.Error(w, "Failed to retrieve device", http.StatusInternalServerError)
			return
		}
		if device == nil {
			http.Error(w, "Device not found", http.StatusNotFound)
			return
		}
		writeJSON(w, device)

	case http.MethodDelete:
		if err := h.Store.RemoveDevice(nasID); err != nil {
			http.Error(w, "Failed to remove device", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type triggerRequest struct {
	NasID     string `json:"nas_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// TriggerRun dispatches a scrape through the CI pipeline. The scrape itself
// never runs inside the API process; a browser session does not belong in a
// request handler.
func (h *UsageService) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Dispatcher == nil {
		http.Error(w, "Run dispatch is not configured", http.StatusServiceUnavailable)
		return
	}

	var req triggerRequest
	if r.Body != nil {
		// An empty body triggers a full sweep.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if (req.StartDate == "") != (req.EndDate == "") {
		http.Error(w, "start_date and end_date must be provided together", http.StatusBadRequest)
		return
	}
	var start, end time.Time
	if req.StartDate != "" {
		var err error
		if start, err = time.Parse("2006-01-02", req.StartDate); err != nil {
			http.Error(w, "Invalid 'start_date' format. Use YYYY-MM-DD.", http.StatusBadRequest)
			return
		}
		if end, err = time.Parse("2006-01-02", req.EndDate); err != nil {
			http.Error(w, "Invalid 'end_date' format. Use YYYY-MM-DD.", http.StatusBadRequest)
			return
		}
		if end.Before(start) {
			http.Error(w, "'end_date' must not precede 'start_date'", http.StatusBadRequest)
			return
		}
	}

	if err := h.Dispatcher.TriggerRun(req.NasID, start, end); err != nil {
		http.Error(w, "Failed to dispatch run", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "dispatched"})
}

// parseWindow reads the date window from the query: either days=N back
// from today, or explicit start/end. Defaults to the last 7 days. Reports
// false after writing the error response.
func parseWindow(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	end := timeNow().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -7)

	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 {
			http.Error(w, "Invalid 'days' value. Use a positive integer.", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		return end.AddDate(0, 0, -days), end, true
	}

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid 'start' format. Use YYYY-MM-DD.", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid 'end' format. Use YYYY-MM-DD.", http.StatusBadRequest)
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	if end.Before(start) {
		http.Error(w, "'end' must not precede 'start'", http.StatusBadRequest)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
