// Package logger configures log/slog for the CLI and the sandbox and carries a request scoped
// logger in the context.
//
// In dev and test the output is coloured text (github.com/lmittmann/tint); in staging and
// prod it is JSON. Handlers log through ContextRequestLogger and add fields to the final
// request log line with ContextWithLogAttrs.
package logger

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"
)

// LevelNone disables logging.
const LevelNone = slog.Level(100)

// ParseLogLevel maps debug, info, warn, error and none to a level. Unknown values give info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelInfo
	}
}

// InitLogger creates the application logger and installs it as the slog default.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	var handler slog.Handler
	switch environment {
	case "prod", "staging":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type contextKey int

const (
	loggerKey contextKey = iota
	attrsKey
)

// logAttrs collects attributes for the request's final log line.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithLogger returns a context carrying l.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// ContextLogger returns the logger in ctx, or slog.Default().
func ContextLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextRequestLogger returns the context logger with the request id, when there is one.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	l := ContextLogger(ctx)
	if id := middleware.GetReqID(ctx); id != "" {
		l = l.With(slog.String("request_id", id))
	}
	return l
}

// ContextWithLogAttrs adds attributes to the final log line of the request.
//
// Inside RequestLogging the attributes are stored in place and ctx is returned unchanged,
// so the return value may be ignored. Elsewhere a new context is returned.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	if holder, ok := ctx.Value(attrsKey).(*logAttrs); ok {
		holder.mu.Lock()
		holder.attrs = append(holder.attrs, attrs...)
		holder.mu.Unlock()
		return ctx
	}
	return context.WithValue(ctx, attrsKey, &logAttrs{attrs: attrs})
}

// LogAttrs returns the attributes collected in ctx.
func LogAttrs(ctx context.Context) []slog.Attr {
	holder, ok := ctx.Value(attrsKey).(*logAttrs)
	if !ok {
		return nil
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return append([]slog.Attr(nil), holder.attrs...)
}

// RequestLogging puts l in the request context and writes one log line per request.
// Responses with status 500 and above are logged at error, 400 and above at warn.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := ContextWithLogger(r.Context(), l)
			ctx = context.WithValue(ctx, attrsKey, &logAttrs{})

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
			}
			attrs = append(attrs, LogAttrs(ctx)...)

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			ContextRequestLogger(ctx).LogAttrs(ctx, level, "request", attrs...)
		})
	}
}

// MaskSignature keeps the first 8 characters of a signature for correlation.
func MaskSignature(signature string) string {
	if len(signature) <= 8 {
		return "***masked***"
	}
	return signature[:8] + "***masked***"
}
