package middleware

import (
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/storefront-api/internal/observability"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request and records its latency.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			observability.APILatency.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("duration", elapsed),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				zap.String("remote_ip", clientIP(r)),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request", fields...)
				return
			}
			log.Info("request", fields...)
		})
	}
}

// Recoverer turns panics into a 500 error envelope. The stack is included
// only when exposeStack is set.
func Recoverer(log *zap.Logger, exposeStack bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil || rec == http.ErrAbortHandler {
					if rec != nil {
						panic(rec)
					}
					return
				}
				stack := debug.Stack()
				log.Error("panic recovered",
					zap.Any("panic", rec),
					zap.ByteString("stack", stack),
					zap.String("request_id", chimiddleware.GetReqID(r.Context())),
				)
				body := errorBody{Message: "Internal server error"}
				if exposeStack {
					body.Stack = string(stack)
				}
				writeEnvelope(w, http.StatusInternalServerError, body)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
