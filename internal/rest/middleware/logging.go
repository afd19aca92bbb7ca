package middleware

import (
	"net/http"
	"time"

	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// Logging records one line per handled request.
type Logging struct {
	logger *zap.Logger
}

// NewLogging creates a new request logging middleware.
func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{
		logger: logger,
	}
}

// AsRESTMiddleware returns a bunrouter middleware handler for request logging.
func (m *Logging) AsRESTMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		err := next(rec, req)

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", req.RemoteAddr),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			m.logger.Warn("Request failed", fields...)
		default:
			m.logger.Debug("Request handled", fields...)
		}

		return err
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
