package server

import (
	"net/http"
)

func SetupRoutes(usageHandler *UsageService) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/latest", usageHandler.GetLatest)
	mux.HandleFunc("/api/data", usageHandler.GetRange)
	mux.HandleFunc("/api/summary", usageHandler.GetSummary)
	mux.HandleFunc("/api/device-offload/", usageHandler.GetDeviceOffload)
	mux.HandleFunc("/api/devices", usageHandler.HandleDevices)
	mux.HandleFunc("/api/devices/", usageHandler.HandleDeviceByID)
	mux.HandleFunc("/api/trigger", usageHandler.TriggerRun)

	return mux
}
