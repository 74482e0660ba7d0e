package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Envelope is the uniform success response
type Envelope struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// PagedEnvelope adds paging metadata next to data
type PagedEnvelope struct {
	Envelope
	PageNumber int   `json:"pageNumber"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteData writes {success, statusCode, data}
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, StatusCode: status, Data: data})
}

// WriteMessage writes {success, statusCode, message, data?}
func WriteMessage(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, Envelope{Success: true, StatusCode: status, Message: message, Data: data})
}

// WritePage writes one page of jobs with its metadata
func WritePage(w http.ResponseWriter, page *model.PagedJobs) {
	WriteJSON(w, http.StatusOK, PagedEnvelope{
		Envelope: Envelope{
			Success:    true,
			StatusCode: http.StatusOK,
			Data:       model.JobViews(page.Jobs),
		},
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
	})
}

// WriteError writes the failure envelope
func WriteError(w http.ResponseWriter, err *model.APIError) {
	err.WriteJSON(w)
}

// writeServiceError maps err and logs anything that became a 500
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := MapServiceError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err)
	}
	WriteError(w, apiErr)
}

// DecodeJSON decodes a single JSON object from the request body. Unknown
// fields and trailing data are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}
