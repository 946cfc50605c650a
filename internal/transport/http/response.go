package httptransport

import (
	"encoding/json"
	"net/http"

	"landscape-job-service/internal/entity"
)

// apiResponse is the body of every gate response.
type apiResponse struct {
	Success bool             `json:"success"`
	Status  entity.JobStatus `json:"status,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiResponse{Success: false, Error: msg})
}
