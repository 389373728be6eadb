package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/Matchmaker/internal/matchstore"
	"github.com/MikeSquared-Agency/Matchmaker/internal/rescan"
	"github.com/MikeSquared-Agency/Matchmaker/internal/scoring"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, rescan.ErrInvestorNotFound),
		errors.Is(err, rescan.ErrTargetNotFound),
		errors.Is(err, matchstore.ErrMatchNotFound):
		status = http.StatusNotFound
	case errors.Is(err, matchstore.ErrMatchConverted),
		errors.Is(err, rescan.ErrRescanInProgress):
		status = http.StatusConflict
	case errors.Is(err, scoring.ErrMalformedField):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, rescan.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
