// Package logger provides structured logging with automatic redaction.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Backend API call logging (requests, responses, errors)
//   - Automatic auth token and signed URL redaction
//   - Contextual logging with request tracing
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger which can be configured
// for different output formats and log levels.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var (
	// DefaultLogger is the global structured logger instance.
	// It is safe for concurrent use and initialized with slog.LevelInfo by default.
	DefaultLogger *slog.Logger
)

func init() {
	// Check LOG_LEVEL environment variable
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// Initialize with text handler writing to stderr
	handler := slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(logOutput, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise sets info-level.
// This is a convenience wrapper around SetLevel for command-line verbose flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
// The context can be used for request tracing and cancellation.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
// Debug messages are only output when the log level is set to LevelDebug or lower.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
// Use for errors that affect operation but don't cause complete failure.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

var (
	// sensitivePatterns contains compiled regular expressions for detecting
	// credentials and signed URLs that must not land in logs.
	sensitivePatterns = []*regexp.Regexp{
		regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`),                         // Bearer tokens
		regexp.MustCompile(`(?i)(signature|sig|token|x-amz-signature)=[^&\s"]+`), // signed URL query params
		regexp.MustCompile(`ck_[a-zA-Z0-9]{32,}`),                              // CaptureKit API keys
	}
)

// RedactSensitiveData removes auth tokens and signed URL parameters from
// strings before they are logged. Playback URLs returned by the backend are
// time-limited signed links; leaking the signature in logs extends access
// beyond the intended audience.
//
// Supported patterns:
//   - Bearer tokens: replaced with "Bearer [REDACTED]"
//   - Signed URL query parameters (signature, sig, token, X-Amz-Signature)
//   - API keys (ck_...): shows first 4 chars
//
// This function is safe for concurrent use as it only reads from the compiled patterns.
func RedactSensitiveData(input string) string {
	result := input

	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if i := strings.IndexByte(match, '='); i >= 0 {
				return match[:i+1] + "[REDACTED]"
			}
			// Show first 4 characters for debugging context
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}

	return result
}

// APIRequest logs HTTP API request details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled for performance.
//
// Sensitive data in URL, headers, and body are automatically redacted.
func APIRequest(service, method, url string, headers map[string]string, body interface{}) {
	// Early return if debug logging is disabled for performance
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := make([]any, 0, 8)
	attrs = append(attrs,
		"service", service,
		"method", method,
		"url", RedactSensitiveData(url),
	)

	// Redact sensitive data in headers
	if len(headers) > 0 {
		redactedHeaders := make(map[string]string, len(headers))
		for key, value := range headers {
			redactedHeaders[key] = RedactSensitiveData(value)
		}
		attrs = append(attrs, "headers", redactedHeaders)
	}

	// Marshal and redact request body
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			attrs = append(attrs, "body_error", err.Error())
		} else {
			redactedBody := RedactSensitiveData(string(bodyJSON))
			attrs = append(attrs, "body", redactedBody)
		}
	}

	Debug("API Request", attrs...)
}

// APIResponse logs HTTP API response details at debug level with automatic redaction.
// This function is a no-op when debug logging is disabled for performance,
// except for errors which always log at error level.
//
// Response bodies are attempted to be parsed as JSON for pretty formatting.
func APIResponse(service string, statusCode int, body string, err error) {
	attrs := make([]any, 0, 6)
	attrs = append(attrs,
		"service", service,
		"status_code", statusCode,
	)

	// Log errors at error level
	if err != nil {
		attrs = append(attrs, "error", err.Error())
		Error("API Response Error", attrs...)
		return
	}

	// Early return if debug logging is disabled for performance
	if !DefaultLogger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	// Pretty-format JSON responses when possible
	if body != "" {
		var jsonObj interface{}
		if json.Unmarshal([]byte(body), &jsonObj) == nil {
			prettyJSON, _ := json.MarshalIndent(jsonObj, "", "  ")
			redactedBody := RedactSensitiveData(string(prettyJSON))
			attrs = append(attrs, "body", redactedBody)
		} else {
			// Not JSON, log as-is with redaction
			redactedBody := RedactSensitiveData(body)
			attrs = append(attrs, "body", redactedBody)
		}
	}

	Debug("API Response", attrs...)
}
