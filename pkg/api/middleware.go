package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/marine"
	"github.com/ssargent/marinedb/pkg/validation"
)

// apiKeyMiddleware validates the X-API-Key header
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(headerAPIKey)
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// principalMiddleware rejects mutating requests that carry no X-Principal.
func principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if principalFrom(r).IsAnonymous() {
				sendError(w, "Missing X-Principal header", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func principalFrom(r *http.Request) auth.Principal {
	if p := r.Header.Get(headerPrincipal); p != "" {
		return auth.Principal(p)
	}
	return auth.Anonymous
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	sendStatus(w, http.StatusOK, data)
}

func sendStatus(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

// sendError sends an error JSON response
func sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := APIResponse{
		Success: false,
		Error:   message,
	}
	_ = json.NewEncoder(w).Encode(response)
}

// sendFailure maps a facade error onto a status code and envelope.
func sendFailure(w http.ResponseWriter, err error) {
	kind := marine.Kind(err)
	response := APIResponse{Error: err.Error(), Kind: string(kind)}

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		response.Violations = verr.Violations
	}
	if kind == marine.KindInternal {
		response.Error = "internal error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(kind))
	_ = json.NewEncoder(w).Encode(response)
}

func statusFor(kind marine.ErrorKind) int {
	switch kind {
	case marine.KindNone:
		return http.StatusOK
	case marine.KindNotFound:
		return http.StatusNotFound
	case marine.KindValidation:
		return http.StatusUnprocessableEntity
	case marine.KindNotAuthorized:
		return http.StatusForbidden
	case marine.KindEncoding:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
