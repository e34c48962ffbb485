// Package audit provides structured audit logging for template resolution
// attempts: one record per Resolve call, success or failure, independent of
// whatever HTTP response the caller ultimately receives.
package audit

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/runerrors"
)

// Logger emits one structured slog record per resolution attempt. Grounded
// in the teacher's LogSecurityEvent/LogRiskProfile pattern: audit records are
// marked with a dedicated "audit" boolean attribute so a log pipeline can
// route them independently of ordinary application logs.
type Logger struct {
	logger *slog.Logger
}

// NewLogger wraps the process-wide default logger for audit emission.
func NewLogger() *Logger {
	return &Logger{logger: slog.Default()}
}

// NewLoggerWithCustom wraps a caller-supplied logger, used by tests to
// capture records against an in-memory handler.
func NewLoggerWithCustom(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

// requestIDContextKey is the context key under which WithRequestID stashes a
// caller-correlation ID, for inclusion in audit records when present.
type requestIDContextKey struct{}

// WithRequestID attaches a request ID to ctx so any audit record logged
// against it carries the ID for cross-referencing against request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// Outcome classifies a resolution attempt for statistics and log filtering.
type Outcome string

// The two attempt outcomes. A failed attempt also carries an error Kind.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// LogResolution records one resolve_command attempt. parameter is the name of
// the parameter that triggered a failure, if any; it is deliberately never
// written to the client-facing HTTP response (see the server package's error
// envelope), but it belongs in the audit trail, which is operator-only.
func (l *Logger) LogResolution(ctx context.Context, templateName string, outcome Outcome, resolveErr error) {
	attrs := []slog.Attr{
		slog.String("audit_type", "template_resolution"),
		slog.Bool("audit", true),
		slog.Int64("timestamp", time.Now().Unix()),
		slog.String("template_name", templateName),
		slog.String("outcome", string(outcome)),
		slog.Int("process_id", os.Getpid()),
	}
	if requestID, ok := ctx.Value(requestIDContextKey{}).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}

	if resolveErr == nil {
		l.logger.LogAttrs(ctx, slog.LevelInfo, "template resolved", attrs...)
		return
	}

	kind, parameter, message := classify(resolveErr)
	attrs = append(attrs,
		slog.String("error_kind", kind.String()),
		slog.String("error_message", message),
	)
	if parameter != "" {
		attrs = append(attrs, slog.String("parameter", parameter))
	}

	level := slog.LevelWarn
	if kind == runerrors.KindSecurityViolation {
		level = slog.LevelError
	}
	l.logger.LogAttrs(ctx, level, "template resolution failed", attrs...)
}

// LogReload records a registry reload, triggered by the admin endpoint or the
// template file watcher, successful or not.
func (l *Logger) LogReload(ctx context.Context, path string, templateCount int, reloadErr error) {
	attrs := []slog.Attr{
		slog.String("audit_type", "registry_reload"),
		slog.Bool("audit", true),
		slog.Int64("timestamp", time.Now().Unix()),
		slog.String("template_path", path),
		slog.Int("process_id", os.Getpid()),
	}

	if reloadErr == nil {
		attrs = append(attrs, slog.Int("template_count", templateCount))
		l.logger.LogAttrs(ctx, slog.LevelInfo, "registry reloaded", attrs...)
		return
	}

	attrs = append(attrs, slog.String("error_message", reloadErr.Error()))
	l.logger.LogAttrs(ctx, slog.LevelError, "registry reload failed", attrs...)
}

// classify extracts the error kind, offending parameter, and message from a
// resolver error for audit logging. Errors that aren't *runerrors.Error
// (shouldn't happen, but Resolve's contract doesn't forbid a caller from
// passing one through) are reported with KindConfiguration and no parameter.
func classify(err error) (runerrors.Kind, string, string) {
	var re *runerrors.Error
	if e, ok := err.(*runerrors.Error); ok {
		re = e
	}
	if re == nil {
		return runerrors.KindConfiguration, "", err.Error()
	}
	return re.Kind, re.Parameter, re.Message
}
