package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/logger"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const SessionHeader = "X-Session-ID"

type ctxKey int

const sessionIDKey ctxKey = iota

// SessionMiddleware reads the cart session id from X-Session-ID. A missing
// id gets a fresh one, echoed back so the client can keep it.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(SessionHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set(SessionHeader, sessionID)

		ctx := context.WithValue(r.Context(), sessionIDKey, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(sessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// AccessLog writes one line per request.
func AccessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.WithTrace(r.Context(), log).Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("session_id", getSessionID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
