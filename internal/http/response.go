package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/service"
)

// envelope is merged into every response body next to success and message.
type envelope map[string]any

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, status int, message string, payload envelope) {
	body := envelope{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{"success": false, "message": message})
}

// handleServiceError maps err onto a status code by its service kind.
// Internal failures are logged and hidden from the caller.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)
	var status int
	switch kind {
	case service.KindValidation:
		status = http.StatusBadRequest
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindStateConflict:
		status = http.StatusConflict
	case service.KindExternal:
		status = http.StatusBadGateway
	default:
		logging.FromCtx(r.Context()).Error("request failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	logging.FromCtx(r.Context()).Warn("request rejected", "kind", kind.String(), "err", err)
	respondError(w, status, err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pageParams reads page and limit from the query string. Zero means use the default.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
