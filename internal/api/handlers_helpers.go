// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/rescuenet/internal/dispatcher"
	"github.com/tomtom215/rescuenet/internal/logging"
	"github.com/tomtom215/rescuenet/internal/models"
)

// Error codes for API responses
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// maxRequestBodyBytes bounds REST request bodies.
const maxRequestBodyBytes = 64 * 1024

// sanitizeLogValue escapes control characters so client supplied paths and
// messages cannot forge extra log lines.
func sanitizeLogValue(s string) string {
	if strings.IndexFunc(s, isControl) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		if isControl(r) {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isControl(r rune) bool { return r < 0x20 || r == 0x7F }

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	body, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Int("status", status).Msg("Encoding response envelope failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Client went away before response was written")
	}
}

// respondSuccess sends data in a success envelope.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// respondError writes an error envelope. A non-nil err is logged, not sent.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}

	respondAPIError(w, status, &models.APIError{Code: code, Message: message})
}

func respondAPIError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    apiErr,
	})
}

// respondDispatcherError maps a dispatcher error onto the REST status codes.
func respondDispatcherError(w http.ResponseWriter, r *http.Request, err error) {
	switch dispatcher.Classify(err) {
	case dispatcher.KindValidation:
		var ve *dispatcher.ValidationError
		if errors.As(err, &ve) {
			respondAPIError(w, http.StatusBadRequest, ve.APIError())
			return
		}
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)

	case dispatcher.KindNotFound:
		respondError(w, http.StatusNotFound, ErrCodeNotFound, err.Error(), nil)

	default:
		logging.Ctx(r.Context()).Error().Err(errors.Unwrap(err)).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Msg("Location request failed")
		var internal *dispatcher.InternalError
		if errors.As(err, &internal) {
			respondError(w, http.StatusInternalServerError, ErrCodeInternal, internal.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error", nil)
	}
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched so that validation reports missing fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "Invalid request body", nil)
		return false
	}
	return true
}

// getIntParam returns fallback when key is absent or not an integer.
func getIntParam(r *http.Request, key string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return n
}

// getBoolParam extracts a boolean query parameter; anything unparsable is false.
func getBoolParam(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}
