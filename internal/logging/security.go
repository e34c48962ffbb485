// Package logging provides security-relevant logging functionality
package logging

import (
	"log/slog"
)

// SecurityLogger logs security-relevant aspects of a template's declared
// execution policy as it is loaded, independent of whether any request ever
// resolves that template. A template granting network access or file write
// is a standing risk the moment it enters the registry, not just at
// resolve time.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new security logger
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: slog.Default(),
	}
}

// NewSecurityLoggerWithLogger creates a new security logger with a custom logger
func NewSecurityLoggerWithLogger(logger *slog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger,
	}
}

// LogNetworkAccessGranted logs a template that declares allow_network.
func (s *SecurityLogger) LogNetworkAccessGranted(templateName string) {
	s.logger.Warn("template grants network access",
		"template", templateName,
		"security_event", "network_access_granted")
}

// LogFileWriteGranted logs a template that declares allow_file_write.
func (s *SecurityLogger) LogFileWriteGranted(templateName string) {
	s.logger.Warn("template grants file write access",
		"template", templateName,
		"security_event", "file_write_granted")
}

// LogUnboundedPathParameter logs a path parameter with neither allowed_paths
// nor forbidden_paths set: the six-step policy still rejects "..", but
// without a prefix restriction the parameter can reference anywhere on the
// filesystem the process can see.
func (s *SecurityLogger) LogUnboundedPathParameter(templateName, parameterName string) {
	s.logger.Warn("path parameter has no allowed_paths or forbidden_paths restriction",
		"template", templateName,
		"parameter", parameterName,
		"security_event", "unbounded_path_parameter")
}

// LogTimeoutConfiguration logs the effective timeout a template resolved to,
// at debug level; the loader already rejects non-positive timeouts, so this
// is purely an audit trail of what each template was configured with.
func (s *SecurityLogger) LogTimeoutConfiguration(templateName string, timeoutSeconds int, source string) {
	s.logger.Debug("template timeout configured",
		"template", templateName,
		"timeout_seconds", timeoutSeconds,
		"source", source)
}
