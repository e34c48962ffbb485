package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecurityLogger(t *testing.T) {
	logger := NewSecurityLogger()
	require.NotNil(t, logger, "NewSecurityLogger returned nil")
	assert.NotNil(t, logger.logger, "logger not initialized")
}

func TestNewSecurityLoggerWithLogger(t *testing.T) {
	var buf bytes.Buffer
	customLogger := slog.New(slog.NewTextHandler(&buf, nil))

	logger := NewSecurityLoggerWithLogger(customLogger)
	require.NotNil(t, logger, "NewSecurityLoggerWithLogger returned nil")
	assert.Equal(t, customLogger, logger.logger, "custom logger not set correctly")
}

func TestSecurityLogger_LogMethods(t *testing.T) {
	tests := []struct {
		name           string
		logFunc        func(*SecurityLogger)
		expectedLevel  string
		expectedFields map[string]any
	}{
		{
			name: "LogNetworkAccessGranted",
			logFunc: func(sl *SecurityLogger) {
				sl.LogNetworkAccessGranted("fetch_url")
			},
			expectedLevel: "WARN",
			expectedFields: map[string]any{
				"template":       "fetch_url",
				"security_event": "network_access_granted",
			},
		},
		{
			name: "LogFileWriteGranted",
			logFunc: func(sl *SecurityLogger) {
				sl.LogFileWriteGranted("write_log")
			},
			expectedLevel: "WARN",
			expectedFields: map[string]any{
				"template":       "write_log",
				"security_event": "file_write_granted",
			},
		},
		{
			name: "LogUnboundedPathParameter",
			logFunc: func(sl *SecurityLogger) {
				sl.LogUnboundedPathParameter("list_dir", "path")
			},
			expectedLevel: "WARN",
			expectedFields: map[string]any{
				"template":       "list_dir",
				"parameter":      "path",
				"security_event": "unbounded_path_parameter",
			},
		},
		{
			name: "LogTimeoutConfiguration",
			logFunc: func(sl *SecurityLogger) {
				sl.LogTimeoutConfiguration("greet", 30, "template")
			},
			expectedLevel: "DEBUG",
			expectedFields: map[string]any{
				"template":        "greet",
				"timeout_seconds": float64(30),
				"source":          "template",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			opts := &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}
			customLogger := slog.New(slog.NewJSONHandler(&buf, opts))
			logger := NewSecurityLoggerWithLogger(customLogger)

			tt.logFunc(logger)

			var logEntry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "Failed to parse JSON log output: %s", buf.String())

			level, ok := logEntry["level"].(string)
			assert.True(t, ok, "log level field is not a string")
			assert.Equal(t, tt.expectedLevel, level)

			for key, expectedValue := range tt.expectedFields {
				actualValue, ok := logEntry[key]
				assert.True(t, ok, "Missing expected field %q in log output", key)
				assert.Equal(t, expectedValue, actualValue, "Field %q mismatch", key)
			}
		})
	}
}
