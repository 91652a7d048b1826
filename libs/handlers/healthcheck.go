package handlers

import (
	"net/http"
)

// HealthCheckResponse - response structure for healthchecks
type HealthCheckResponse struct {
	BuildTime string `json:"buildTime"`
	Commit    string `json:"commit"`
	Version   string `json:"version"`
}

// HealthCheckHandler - function which generates a health check http.HandlerFunc
func HealthCheckHandler(version, buildTime, commit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hcr := HealthCheckResponse{
			Commit:    commit,
			BuildTime: buildTime,
			Version:   version,
		}
		w.Header().Set("content-type", "application/json")
		if err := RenderContent(r.Context(), hcr, w, http.StatusOK); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}
