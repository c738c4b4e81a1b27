package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/CarbonNeuron/carbon-files-sub000/internal/xerr"
	"github.com/CarbonNeuron/carbon-files-sub000/internal/xlog"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := jsonc.NewEncoder(w).Encode(v); err != nil {
		xlog.Errorf("api: failed encoding response: %v", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, errMsg, hint string) {
	writeJSON(w, status, errorBody{Error: errMsg, Hint: hint})
}

// writeServiceError is the single boundary translation point of spec §7:
// every *xerr.Failure a service raises is mapped here, once, to a status
// code; anything else is an unexpected internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	f, ok := xerr.As(err)
	if !ok {
		xlog.Errorf("api: unexpected error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", "")
		return
	}
	switch f.Code {
	case xerr.Validation:
		writeError(w, http.StatusBadRequest, f.Hint, "")
	case xerr.Authorization:
		writeError(w, http.StatusForbidden, f.Hint, "")
	case xerr.Unauthenticated:
		writeError(w, http.StatusUnauthorized, f.Hint, "")
	case xerr.NotFound:
		writeError(w, http.StatusNotFound, f.Hint, "")
	case xerr.Conflict:
		writeError(w, http.StatusConflict, f.Hint, "")
	case xerr.Overflow:
		writeError(w, http.StatusRequestEntityTooLarge, f.Hint, "")
	case xerr.RangeUnsatisfiable:
		writeError(w, http.StatusRequestedRangeNotSatisfiable, f.Hint, "")
	default:
		xlog.Errorf("api: internal failure: %v", xerr.Cause(f))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}
