// Package logging provides categorized logging for bargo on top of zap.
// Every subsystem logs through a named category so that noisy areas can be
// switched off from .bargo.yaml without touching the others.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, flag and config resolution
	CategoryConfig   Category = "config"   // .bargo.yaml, dotenv secrets
	CategoryBuild    Category = "build"    // nargo, staleness checks, artifact moves
	CategoryRunner   Category = "runner"   // External process execution
	CategoryBackend  Category = "backend"  // Backend selection and configuration
	CategoryWorkflow Category = "workflow" // Stage sequencing and validation
	CategoryStore    Category = "store"    // Breadcrumb reads and writes
	CategoryWatch    Category = "watch"    // File watching
)

// Options mirrors the relevant parts of config.LoggingConfig
// to avoid circular imports.
type Options struct {
	Level      string
	Categories map[string]bool
}

// Logger wraps a sugared zap logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	base    = zap.NewNop()
	opts    Options
	loggers = make(map[Category]*Logger)
)

// Initialize installs the process logger. Passing nil resets to a no-op logger.
func Initialize(l *zap.Logger, o Options) {
	mu.Lock()
	defer mu.Unlock()

	if l == nil {
		l = zap.NewNop()
	}
	if lvl, err := zapcore.ParseLevel(o.Level); err == nil && o.Level != "" {
		l = l.WithOptions(zap.IncreaseLevel(lvl))
	}
	base = l
	opts = o
	loggers = make(map[Category]*Logger)
}

// Base returns the underlying zap logger.
func Base() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// IsCategoryEnabled reports whether a category is enabled. Categories not
// mentioned in the options are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	return categoryEnabledLocked(category)
}

func categoryEnabledLocked(category Category) bool {
	if opts.Categories == nil {
		return true
	}
	enabled, ok := opts.Categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) the logger for a category.
func Get(category Category) *Logger {
	mu.RLock()
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

	zl := zap.NewNop()
	if categoryEnabledLocked(category) {
		zl = base.Named(string(category))
	}
	l := &Logger{category: category, sugar: zl.Sugar()}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a logger carrying structured key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes the base logger.
func Sync() {
	_ = Base().Sync()
}

// Timer measures a single operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing an operation.
func StartTimer(category Category, op string) *Timer {
	return &Timer{category: category, op: op, start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := t.Elapsed()
	Get(t.category).Debug("%s took %s", t.op, d)
	return d
}

// Convenience functions per category

func Boot(format string, args ...interface{})          { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{})     { Get(CategoryBoot).Debug(format, args...) }
func Config(format string, args ...interface{})        { Get(CategoryConfig).Info(format, args...) }
func ConfigDebug(format string, args ...interface{})   { Get(CategoryConfig).Debug(format, args...) }
func Build(format string, args ...interface{})         { Get(CategoryBuild).Info(format, args...) }
func BuildDebug(format string, args ...interface{})    { Get(CategoryBuild).Debug(format, args...) }
func BuildWarn(format string, args ...interface{})     { Get(CategoryBuild).Warn(format, args...) }
func Runner(format string, args ...interface{})        { Get(CategoryRunner).Info(format, args...) }
func RunnerDebug(format string, args ...interface{})   { Get(CategoryRunner).Debug(format, args...) }
func RunnerError(format string, args ...interface{})   { Get(CategoryRunner).Error(format, args...) }
func Backend(format string, args ...interface{})       { Get(CategoryBackend).Info(format, args...) }
func BackendDebug(format string, args ...interface{})  { Get(CategoryBackend).Debug(format, args...) }
func WorkflowDebug(format string, args ...interface{}) { Get(CategoryWorkflow).Debug(format, args...) }
func Store(format string, args ...interface{})         { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})    { Get(CategoryStore).Debug(format, args...) }
func Watch(format string, args ...interface{})         { Get(CategoryWatch).Info(format, args...) }
func WatchDebug(format string, args ...interface{})    { Get(CategoryWatch).Debug(format, args...) }
func WatchError(format string, args ...interface{})    { Get(CategoryWatch).Error(format, args...) }
