// Package logging provides config-driven categorized file-based logging for
// the Cognitive Sensor. Logs are written to <dir>/logs/, where <dir> is the
// directory passed to Initialize (the CLI passes its --workspace directory,
// default the current directory), with separate files per category. Logging is controlled by debug_mode in the
// loaded config - when false, no logs are written.
package logging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/component.
type Category string

const (
	CategoryBoot         Category = "boot"         // Refresh entry point, CLI bootstrap
	CategoryCorpus       Category = "corpus"       // Message Store reads
	CategoryEmbedding    Category = "embedding"    // Embedding Index / engines
	CategoryLexicon      Category = "lexicon"      // Lexicon loading, vocabulary
	CategoryScoring      Category = "scoring"      // Keyword + Semantic Scorers
	CategoryLoopDetector Category = "loopdetector" // Loop Detector
	CategoryClosure      Category = "closure"      // Closure Statistics
	CategoryRouter       Category = "router"       // Router / Directive
	CategoryCluster      Category = "cluster"      // Topic Clusterer
	CategoryContract     Category = "contract"     // Contract validation / writes
	CategoryRefresh      Category = "refresh"      // Refresh pipeline orchestration
	CategoryStore        Category = "store"        // SQLite store internals
)

// loggingConfig mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type loggingConfig struct {
	DebugMode  bool            `json:"debug_mode"`
	Categories map[string]bool `json:"categories"`
	Level      string          `json:"level"`
	JSONFormat bool            `json:"json_format"`
}

type configFile struct {
	Logging loggingConfig `json:"logging"`
}

// StructuredLogEntry represents a JSON log entry.
type StructuredLogEntry struct {
	Timestamp int64                  `json:"ts"`
	Category  string                 `json:"cat"`
	Level     string                 `json:"lvl"`
	Message   string                 `json:"msg"`
	RequestID string                 `json:"req,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers      = make(map[Category]*Logger)
	loggersMu    sync.RWMutex
	logsDir      string
	workspace    string
	config       loggingConfig
	configLoaded bool
	configMu     sync.RWMutex
	logLevel     int
)

const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Initialize sets up the logging directory and loads config.
// Should be called once at startup with the directory that holds
// logging.json and the logs/ folder (the CLI passes its workspace directory).
func Initialize(artifactsDir string) error {
	if artifactsDir == "" {
		return fmt.Errorf("artifacts directory required")
	}

	workspace = artifactsDir
	logsDir = filepath.Join(workspace, "logs")

	if err := loadConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not load config: %v\n", err)
		config.DebugMode = false
	}

	if !config.DebugMode {
		return nil
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	bootLogger := Get(CategoryBoot)
	bootLogger.Info("=== Cognitive Sensor logging initialized ===")
	bootLogger.Info("Artifacts dir: %s", workspace)
	bootLogger.Info("Debug mode: %v", config.DebugMode)
	bootLogger.Info("Log level: %s", config.Level)

	return nil
}

// loadConfig reads the logging config from logging.json in the directory
// passed to Initialize.
func loadConfig() error {
	configMu.Lock()
	defer configMu.Unlock()

	configPath := filepath.Join(workspace, "logging.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			config.DebugMode = false
			configLoaded = true
			return nil
		}
		return err
	}

	var cf configFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	config = cf.Logging
	configLoaded = true

	switch config.Level {
	case "debug":
		logLevel = LevelDebug
	case "info":
		logLevel = LevelInfo
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}

	return nil
}

// ReloadConfig reloads the config from disk.
func ReloadConfig() error {
	return loadConfig()
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	configMu.RLock()
	defer configMu.RUnlock()
	return config.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	configMu.RLock()
	defer configMu.RUnlock()

	if !config.DebugMode {
		return false
	}
	if config.Categories == nil {
		return true
	}
	enabled, exists := config.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}
	if logsDir == "" {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	logPath := filepath.Join(logsDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

func (l *Logger) logJSON(level, msg string) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("debug", msg)
	} else {
		l.logger.Printf("[DEBUG] %s", msg)
	}
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("info", msg)
	} else {
		l.logger.Printf("[INFO] %s", msg)
	}
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("warn", msg)
	} else {
		l.logger.Printf("[WARN] %s", msg)
	}
}

// Error logs an error message (always logged if a logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if config.JSONFormat {
		l.logJSON("error", msg)
	} else {
		l.logger.Printf("[ERROR] %s", msg)
	}
}

// CloseAll closes every open category log file. Call at process exit.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			_ = l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// Category convenience wrappers, mirroring the teacher's per-category
// Info/Debug helper pattern.

func Corpus(format string, args ...interface{})      { Get(CategoryCorpus).Info(format, args...) }
func CorpusDebug(format string, args ...interface{}) { Get(CategoryCorpus).Debug(format, args...) }

func Embedding(format string, args ...interface{})      { Get(CategoryEmbedding).Info(format, args...) }
func EmbeddingDebug(format string, args ...interface{}) { Get(CategoryEmbedding).Debug(format, args...) }

func Lexicon(format string, args ...interface{})      { Get(CategoryLexicon).Info(format, args...) }
func LexiconDebug(format string, args ...interface{}) { Get(CategoryLexicon).Debug(format, args...) }

func Scoring(format string, args ...interface{})      { Get(CategoryScoring).Info(format, args...) }
func ScoringDebug(format string, args ...interface{}) { Get(CategoryScoring).Debug(format, args...) }

func LoopDetector(format string, args ...interface{}) { Get(CategoryLoopDetector).Info(format, args...) }
func LoopDetectorDebug(format string, args ...interface{}) {
	Get(CategoryLoopDetector).Debug(format, args...)
}

func Closure(format string, args ...interface{})      { Get(CategoryClosure).Info(format, args...) }
func ClosureDebug(format string, args ...interface{}) { Get(CategoryClosure).Debug(format, args...) }

func Router(format string, args ...interface{})      { Get(CategoryRouter).Info(format, args...) }
func RouterDebug(format string, args ...interface{}) { Get(CategoryRouter).Debug(format, args...) }

func Cluster(format string, args ...interface{})      { Get(CategoryCluster).Info(format, args...) }
func ClusterDebug(format string, args ...interface{}) { Get(CategoryCluster).Debug(format, args...) }

func Contract(format string, args ...interface{})      { Get(CategoryContract).Info(format, args...) }
func ContractDebug(format string, args ...interface{}) { Get(CategoryContract).Debug(format, args...) }

func Refresh(format string, args ...interface{})      { Get(CategoryRefresh).Info(format, args...) }
func RefreshDebug(format string, args ...interface{}) { Get(CategoryRefresh).Debug(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// Timer measures and logs the duration of an operation.
type Timer struct {
	category  Category
	operation string
	start     time.Time
	stopped   bool
}

// StartTimer begins timing an operation within a category.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop records the elapsed duration at debug level and returns it.
func (t *Timer) Stop() time.Duration {
	if t.stopped {
		return 0
	}
	t.stopped = true
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	return elapsed
}

// StopWithThreshold logs at warn level if elapsed exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	if t.stopped {
		return 0
	}
	t.stopped = true
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold=%v)", t.operation, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.operation, elapsed)
	}
	return elapsed
}
