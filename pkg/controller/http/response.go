package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/secmon-lab/grcops/pkg/domain/model"
	"github.com/secmon-lab/grcops/pkg/usecase"
	"github.com/secmon-lab/grcops/pkg/utils/errutil"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

type dataResponse struct {
	Data      any       `json:"data"`
	Meta      *pageMeta `json:"meta,omitempty"`
	Timestamp string    `json:"timestamp"`
}

type pageMeta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type fieldErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	StatusCode int                  `json:"statusCode"`
	Message    string               `json:"message"`
	Errors     []fieldErrorResponse `json:"errors,omitempty"`
	Timestamp  string               `json:"timestamp"`
	Path       string               `json:"path"`
}

// errBadRequest marks malformed requests: undecodable bodies and bad path or query values
var errBadRequest = errors.New("bad request")

// errRateLimited is returned by the rate limiting middleware
var errRateLimited = errors.New("too many requests")

// errTooLarge marks request bodies over maxBodySize
var errTooLarge = errors.New("request body too large")

// errUnavailable maps to 503
var errUnavailable = errors.New("service unavailable")

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.From(ctx).Warn("failed to write response", slog.Any("error", err))
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(r.Context(), w, status, dataResponse{
		Data:      data,
		Timestamp: now(),
	})
}

func writePage(w http.ResponseWriter, r *http.Request, data any, page *model.FrameworkPage) {
	totalPages := 0
	if page.Limit > 0 {
		totalPages = (page.Total + page.Limit - 1) / page.Limit
	}
	writeJSON(r.Context(), w, http.StatusOK, dataResponse{
		Data: data,
		Meta: &pageMeta{
			Total:      page.Total,
			Page:       page.Page,
			Limit:      page.Limit,
			TotalPages: totalPages,
		},
		Timestamp: now(),
	})
}

// writeError is the single place where domain errors become HTTP responses
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{
		Timestamp: now(),
		Path:      r.URL.Path,
	}

	var verrs model.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		resp.StatusCode = http.StatusBadRequest
		resp.Message = "validation failed"
		for _, fe := range verrs {
			resp.Errors = append(resp.Errors, fieldErrorResponse{Field: fe.Field, Message: fe.Message})
		}
	case errors.Is(err, errBadRequest):
		resp.StatusCode = http.StatusBadRequest
		resp.Message = err.Error()
	case errors.Is(err, errTooLarge):
		resp.StatusCode = http.StatusRequestEntityTooLarge
		resp.Message = "request body too large"
	case errors.Is(err, usecase.ErrNotFound):
		resp.StatusCode = http.StatusNotFound
		resp.Message = "resource not found"
	case errors.Is(err, usecase.ErrDuplicateKey):
		resp.StatusCode = http.StatusConflict
		resp.Message = "resource already exists"
	case errors.Is(err, usecase.ErrForbidden):
		resp.StatusCode = http.StatusForbidden
		resp.Message = "forbidden"
	case errors.Is(err, errRateLimited):
		resp.StatusCode = http.StatusTooManyRequests
		resp.Message = "too many requests"
	case errors.Is(err, errUnavailable):
		errutil.Handle(r.Context(), err, "service unavailable", slog.String("path", r.URL.Path))
		resp.StatusCode = http.StatusServiceUnavailable
		resp.Message = "service unavailable"
	default:
		errutil.Handle(r.Context(), err, "internal server error",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		resp.StatusCode = http.StatusInternalServerError
		resp.Message = "internal server error"
	}

	if resp.StatusCode < http.StatusInternalServerError {
		logging.From(r.Context()).Debug("request failed",
			slog.Int("status", resp.StatusCode),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
	}

	writeJSON(r.Context(), w, resp.StatusCode, resp)
}
