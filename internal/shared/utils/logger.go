package utils

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	logDirEnvVar     = "REPVERSE_LOG_DIR"
	serverModeEnvVar = "REPVERSE_SERVER_MODE"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

type LogCategory string

const (
	LogCategoryService LogCategory = "service"
	LogCategoryLLM     LogCategory = "llm"
)

var (
	categoryMu      sync.Mutex
	categoryLoggers = make(map[LogCategory]*Logger)
	defaultLevel    = INFO
)

// Logger writes formatted lines to repverse-<category>.log.
type Logger struct {
	file      *os.File
	logger    *log.Logger
	level     LogLevel
	mu        *sync.Mutex
	component string
	category  LogCategory
	logID     string
	stdout    bool
}

// ParseLevel maps a config string to a LogLevel. Unknown values map to INFO.
func ParseLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// SetDefaultLevel changes the level used by every category logger, including
// the ones already created.
func SetDefaultLevel(level LogLevel) {
	categoryMu.Lock()
	defer categoryMu.Unlock()
	defaultLevel = level
	for _, l := range categoryLoggers {
		l.mu.Lock()
		l.level = level
		l.mu.Unlock()
	}
}

// NewComponentLogger creates a service logger for a specific component
func NewComponentLogger(component string) *Logger {
	return NewCategorizedLogger(LogCategoryService, component)
}

// NewCategorizedLogger creates a logger for a specific category and component.
func NewCategorizedLogger(category LogCategory, component string) *Logger {
	base := getOrCreateCategoryLogger(category)
	return &Logger{
		file:      base.file,
		logger:    base.logger,
		level:     base.level,
		mu:        base.mu,
		component: component,
		category:  category,
		stdout:    base.stdout,
	}
}

func getOrCreateCategoryLogger(category LogCategory) *Logger {
	categoryMu.Lock()
	defer categoryMu.Unlock()

	if logger, ok := categoryLoggers[category]; ok {
		return logger
	}

	logger := newLogger(defaultLevel, category)
	categoryLoggers[category] = logger
	return logger
}

func newLogger(level LogLevel, category LogCategory) *Logger {
	l := &Logger{
		level:    level,
		mu:       &sync.Mutex{},
		category: category,
		stdout:   os.Getenv(serverModeEnvVar) == "deploy",
	}

	file, err := OpenLogFile(category)
	if err != nil {
		log.Printf("Failed to open log file: %v", err)
		return l
	}
	l.file = file
	l.logger = log.New(file, "", 0)
	return l
}

func resolveLogDirectory() (string, error) {
	if override := strings.TrimSpace(os.Getenv(logDirEnvVar)); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".repverse", "logs"), nil
}

func logFileName(category LogCategory) string {
	switch category {
	case LogCategoryLLM:
		return "repverse-llm.log"
	default:
		return "repverse-service.log"
	}
}

// OpenLogFile opens (or creates) the log file for the given category.
func OpenLogFile(category LogCategory) (*os.File, error) {
	logDir, err := resolveLogDirectory()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, logFileName(category))
	return os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// WithLogID returns a shallow copy of the logger that tags log lines with a log id.
func (l *Logger) WithLogID(logID string) *Logger {
	if l == nil {
		return nil
	}
	if strings.TrimSpace(logID) == "" {
		return l
	}
	clone := *l
	clone.logID = logID
	return &clone
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil || level < l.level {
		return
	}
	if l.logger == nil && !l.stdout {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [SERVICE] [component] file.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "REPVERSE"
	}
	category := strings.ToUpper(string(l.category))
	if category == "" {
		category = "SERVICE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] [%s] [%s] ", timestamp, levelToString(level), category, component)
	if logID := strings.TrimSpace(l.logID); logID != "" {
		fmt.Fprintf(&b, "[log_id=%s] ", logID)
	}
	fmt.Fprintf(&b, "%s:%d - %s\n", file, line, fmt.Sprintf(format, args...))
	logLine := b.String()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger != nil {
		l.logger.Print(logLine)
	}
	if l.stdout {
		fmt.Print(logLine)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
