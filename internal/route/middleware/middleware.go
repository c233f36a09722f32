// Package middleware holds handlers wrapped around every route.
package middleware

import (
	"net/http"
	"time"

	"github.com/dense-analysis/stockwarp/internal/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// Standard wraps a handler in the middleware every response goes through.
func Standard(next http.Handler) http.Handler {
	return Logging(Recover(NoCache(next)))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (recorder *statusRecorder) WriteHeader(status int) {
	recorder.status = status
	recorder.ResponseWriter.WriteHeader(status)
}

// Logging gives each request an ID and a logger, and logs the response.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		requestID := request.Header.Get(RequestIDHeader)

		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}

		writer.Header().Set(RequestIDHeader, requestID)

		entry := logrus.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     request.Method,
			"path":       request.URL.Path,
		})
		recorder := &statusRecorder{ResponseWriter: writer, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, request.WithContext(logging.WithEntry(request.Context(), entry)))

		entry.WithFields(logrus.Fields{
			"status":   recorder.status,
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// NoCache stops browsers and proxies caching responses, so balances are
// never stale.
func NoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		header := writer.Header()
		header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		header.Set("Expires", "0")
		header.Set("Pragma", "no-cache")

		next.ServeHTTP(writer, request)
	})
}

// Recover turns a panic in a handler into a 500 response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		defer func() {
			if value := recover(); value != nil {
				if value == http.ErrAbortHandler {
					panic(value)
				}

				logging.FromContext(request.Context()).WithField("panic", value).Error("handler panicked")
				http.Error(writer, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(writer, request)
	})
}
