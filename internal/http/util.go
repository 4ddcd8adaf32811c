package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"wisefido-records/internal/chart"
	"wisefido-records/internal/location"
	"wisefido-records/internal/provider"
	"wisefido-records/internal/store"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), Fail(err.Error()))
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBytes))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var missing *chart.MissingConceptError
	var fetch *location.LocationFetchError
	var nameFetch *location.LocationNameFetchError
	switch {
	case errors.Is(err, provider.ErrNoMatchingDelegate),
		errors.Is(err, chart.ErrPatientNotFound),
		errors.Is(err, location.ErrUnknownLocation):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrUnsupportedOperation):
		return http.StatusMethodNotAllowed
	case errors.Is(err, store.ErrUnknownColumn),
		errors.Is(err, store.ErrInvalidOrdering),
		errors.Is(err, store.ErrEmptyValues),
		errors.Is(err, store.ErrInvalidJSONRows),
		errors.Is(err, provider.ErrMixedColumns),
		errors.Is(err, provider.ErrViewQuery),
		errors.Is(err, location.ErrInvalidDepth),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, location.ErrNoRootLocation),
		errors.As(err, &fetch),
		errors.As(err, &nameFetch),
		errors.Is(err, chart.ErrNoDictionary),
		errors.As(err, &missing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")
