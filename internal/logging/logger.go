// Package logging provides categorized file-based logging for the assistant.
// Each category writes to its own file under <config dir>/logs/. Debug-level
// output is controlled by debug_mode in the user config; when logging is not
// initialized every helper is a no-op, so library code can log freely.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup and configuration
	CategorySession  Category = "session"  // Conversation persistence, repair
	CategoryChat     Category = "chat"     // Orchestrator turn loop
	CategoryTools    Category = "tools"    // Tool dispatch and results
	CategoryDelegate Category = "delegate" // Sub-agent batch processing
	CategoryContext  Category = "context"  // Compaction and token accounting
	CategoryAnki     Category = "anki"     // AnkiConnect traffic
	CategoryAPI      Category = "api"      // LLM API calls
)

var (
	mu        sync.RWMutex
	loggers   = make(map[Category]*zap.SugaredLogger)
	logsDir   string
	debugMode bool
	enabled   bool
)

// Initialize sets up per-category log files under dir/logs. Must be called
// once at startup; until then all helpers are no-ops.
func Initialize(dir string, debug bool) error {
	if dir == "" {
		return fmt.Errorf("log directory required")
	}
	path := filepath.Join(dir, "logs")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	logsDir = path
	debugMode = debug
	enabled = true
	return nil
}

// IsDebugMode reports whether debug-level logging is active.
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugMode
}

// Close flushes and releases all category loggers.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	for _, l := range loggers {
		_ = l.Sync()
	}
	loggers = make(map[Category]*zap.SugaredLogger)
	enabled = false
}

// get returns the logger for a category, creating it on first use.
// Returns nil when logging is not initialized.
func get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if !enabled {
		mu.RUnlock()
		return nil
	}
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	file, err := os.OpenFile(
		filepath.Join(logsDir, string(category)+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
	)
	if err != nil {
		return nil
	}

	level := zapcore.InfoLevel
	if debugMode {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(file),
		level,
	)
	l := zap.New(core).Sugar()
	loggers[category] = l
	return l
}

func logf(category Category, format string, args ...interface{}) {
	if l := get(category); l != nil {
		l.Infof(format, args...)
	}
}

func debugf(category Category, format string, args ...interface{}) {
	if l := get(category); l != nil {
		l.Debugf(format, args...)
	}
}

func errorf(category Category, format string, args ...interface{}) {
	if l := get(category); l != nil {
		l.Errorf(format, args...)
	}
}

// Category helpers, one Info/Debug pair per subsystem plus Error where
// callers report failures.

func Boot(format string, args ...interface{})      { logf(CategoryBoot, format, args...) }
func BootDebug(format string, args ...interface{}) { debugf(CategoryBoot, format, args...) }

func Session(format string, args ...interface{})      { logf(CategorySession, format, args...) }
func SessionDebug(format string, args ...interface{}) { debugf(CategorySession, format, args...) }
func SessionError(format string, args ...interface{}) { errorf(CategorySession, format, args...) }

func Chat(format string, args ...interface{})      { logf(CategoryChat, format, args...) }
func ChatDebug(format string, args ...interface{}) { debugf(CategoryChat, format, args...) }
func ChatError(format string, args ...interface{}) { errorf(CategoryChat, format, args...) }

func Tools(format string, args ...interface{})      { logf(CategoryTools, format, args...) }
func ToolsDebug(format string, args ...interface{}) { debugf(CategoryTools, format, args...) }
func ToolsError(format string, args ...interface{}) { errorf(CategoryTools, format, args...) }

func Delegate(format string, args ...interface{})      { logf(CategoryDelegate, format, args...) }
func DelegateDebug(format string, args ...interface{}) { debugf(CategoryDelegate, format, args...) }
func DelegateError(format string, args ...interface{}) { errorf(CategoryDelegate, format, args...) }

func Context(format string, args ...interface{})      { logf(CategoryContext, format, args...) }
func ContextDebug(format string, args ...interface{}) { debugf(CategoryContext, format, args...) }

func Anki(format string, args ...interface{})      { logf(CategoryAnki, format, args...) }
func AnkiDebug(format string, args ...interface{}) { debugf(CategoryAnki, format, args...) }
func AnkiError(format string, args ...interface{}) { errorf(CategoryAnki, format, args...) }

func API(format string, args ...interface{})      { logf(CategoryAPI, format, args...) }
func APIDebug(format string, args ...interface{}) { debugf(CategoryAPI, format, args...) }
func APIError(format string, args ...interface{}) { errorf(CategoryAPI, format, args...) }
