package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	*logrus.Logger
	verbose bool
}

var (
	defaultLogger *Logger
	mu            sync.RWMutex
)

// Categories for consistent logging
const (
	CategoryNetwork  = "NETWORK"
	CategoryProvider = "PROVIDER"
	CategoryFiles    = "FILES"
	CategoryConfig   = "CONFIG"
	CategoryUpload   = "UPLOAD"
	CategoryCLI      = "CLI"
	CategoryError    = "ERROR"
)

// Init initializes the logging system with verbose flag and output destination
func Init(verbose bool, output io.Writer) {
	logger := logrus.New()

	if output != nil {
		logger.SetOutput(output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	if isTTY(logger.Out) && verbose {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
			ForceColors:     true,
		})
	} else if isTTY(logger.Out) {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: false,
			ForceColors:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		// Only show errors and above in non-verbose mode
		logger.SetLevel(logrus.ErrorLevel)
	}
	logger.SetReportCaller(false)

	mu.Lock()
	defaultLogger = &Logger{
		Logger:  logger,
		verbose: verbose,
	}
	mu.Unlock()
}

// current returns the active logger, initializing a quiet stderr logger
// when Init has not been called yet.
func current() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(false, os.Stderr)
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// isTTY checks if the output is a terminal
func isTTY(output io.Writer) bool {
	file, ok := output.(*os.File)
	return ok && (file.Fd() == 1 || file.Fd() == 2)
}

// IsVerbose returns whether verbose logging is enabled
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	if defaultLogger == nil {
		return false
	}
	return defaultLogger.verbose
}

func (l *Logger) logWithCategory(level logrus.Level, category string, message string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["category"] = category

	l.WithFields(fields).Log(level, message)
}

// Network Operations Logging Functions
func HTTPRequest(method, url string, headers map[string]string) {
	if !IsVerbose() {
		return
	}
	fields := logrus.Fields{
		"method": method,
		"url":    url,
	}
	if len(headers) > 0 {
		fields["headers"] = headers
	}
	current().logWithCategory(logrus.DebugLevel, CategoryNetwork, "HTTP request", fields)
}

func HTTPResponse(statusCode int, body string, duration time.Duration) {
	if !IsVerbose() {
		return
	}
	fields := logrus.Fields{
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}
	if body != "" {
		// Limit body length for readability
		if len(body) > 200 {
			body = body[:200] + "..."
		}
		fields["body"] = body
	}
	current().logWithCategory(logrus.DebugLevel, CategoryNetwork, "HTTP response", fields)
}

func RetryAttempt(url string, attempt int, delay time.Duration, err error) {
	current().logWithCategory(logrus.WarnLevel, CategoryNetwork, "Retrying request", logrus.Fields{
		"url":      url,
		"attempt":  attempt,
		"delay_ms": delay.Milliseconds(),
		"error":    err,
	})
}

func ProviderConfig(providerName string, config map[string]interface{}) {
	if !IsVerbose() || len(config) == 0 {
		return
	}
	current().logWithCategory(logrus.DebugLevel, CategoryProvider, "Provider configuration", logrus.Fields{
		"provider": providerName,
		"config":   config,
	})
}

// File Operations Logging Functions
func FileFound(path string, size int64, isDir bool) {
	if !IsVerbose() {
		return
	}
	fileType := "file"
	if isDir {
		fileType = "dir"
	}
	current().logWithCategory(logrus.DebugLevel, CategoryFiles, "File found", logrus.Fields{
		"path": path,
		"size": size,
		"type": fileType,
	})
}

func FileValidation(path string, validationType string, err error) {
	if !IsVerbose() {
		return
	}
	level := logrus.DebugLevel
	message := "File validation passed"
	if err != nil {
		level = logrus.WarnLevel
		message = "File validation failed"
	}
	current().logWithCategory(level, CategoryFiles, message, logrus.Fields{
		"path":            path,
		"validation_type": validationType,
		"error":           err,
	})
}

// Configuration Logging Functions
func ConfigLoad(source string, values interface{}) {
	current().logWithCategory(logrus.DebugLevel, CategoryConfig, "Loading configuration", logrus.Fields{
		"source": source,
		"values": values,
	})
}

func ProviderSelection(jobID string, providers []string) {
	if !IsVerbose() {
		return
	}
	fields := logrus.Fields{
		"job": jobID,
	}
	if len(providers) > 0 {
		fields["providers"] = providers
	}
	current().logWithCategory(logrus.DebugLevel, CategoryConfig, "Provider selection", fields)
}

// Upload Process Logging Functions
func UploadStart(jobID, path string, size int64) {
	current().logWithCategory(logrus.InfoLevel, CategoryUpload, "Starting upload", logrus.Fields{
		"job":  jobID,
		"path": path,
		"size": size,
	})
}

func ProviderAttempt(jobID, provider, engine string) {
	current().logWithCategory(logrus.InfoLevel, CategoryUpload, "Trying provider", logrus.Fields{
		"job":      jobID,
		"provider": provider,
		"engine":   engine,
	})
}

func UploadProgress(filename string, bytesRead int64, total int64) {
	if !IsVerbose() {
		return
	}
	var percentage float64
	if total > 0 {
		percentage = float64(bytesRead) / float64(total) * 100
	}
	current().logWithCategory(logrus.DebugLevel, CategoryUpload, "Upload progress", logrus.Fields{
		"filename":   filename,
		"bytes_read": bytesRead,
		"total":      total,
		"percentage": percentage,
	})
}

func UploadComplete(filename string, url string, duration time.Duration) {
	current().logWithCategory(logrus.InfoLevel, CategoryUpload, "Upload completed", logrus.Fields{
		"filename":    filename,
		"url":         url,
		"duration_ms": duration.Milliseconds(),
	})
}

func UploadError(filename string, provider string, err error) {
	current().logWithCategory(logrus.ErrorLevel, CategoryUpload, "Upload failed", logrus.Fields{
		"filename": filename,
		"provider": provider,
		"error":    err,
	})
}

func UploadCancelled(jobID, name string) {
	current().logWithCategory(logrus.WarnLevel, CategoryUpload, "Upload cancelled", logrus.Fields{
		"job":  jobID,
		"name": name,
	})
}

// Concurrency Logging Functions
func ConcurrencySettings(workers int, jobs int) {
	current().logWithCategory(logrus.DebugLevel, CategoryUpload, "Concurrency settings", logrus.Fields{
		"workers": workers,
		"jobs":    jobs,
	})
}

// CLI and Flag Processing Logging Functions
func FlagProcessing(flag string, value interface{}) {
	current().logWithCategory(logrus.DebugLevel, CategoryCLI, "Flag processing", logrus.Fields{
		"flag":  flag,
		"value": value,
	})
}

// Error Context Logging Functions
func ErrorContext(context string, err error, details map[string]interface{}) {
	if !IsVerbose() || err == nil {
		return
	}
	fields := logrus.Fields{
		"context": context,
		"error":   err,
	}
	for k, v := range details {
		fields[k] = v
	}
	current().logWithCategory(logrus.ErrorLevel, CategoryError, "Error occurred", fields)
}

// General logging methods for direct access
func Info(message string, fields logrus.Fields) {
	current().logWithCategory(logrus.InfoLevel, "GENERAL", message, fields)
}

func Debug(message string, fields logrus.Fields) {
	current().logWithCategory(logrus.DebugLevel, "GENERAL", message, fields)
}

func Error(message string, fields logrus.Fields) {
	current().logWithCategory(logrus.ErrorLevel, "GENERAL", message, fields)
}

func Warn(message string, fields logrus.Fields) {
	current().logWithCategory(logrus.WarnLevel, "GENERAL", message, fields)
}
