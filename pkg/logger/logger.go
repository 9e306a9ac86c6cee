package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger.
type Options struct {
	Level string // debug, info, warn, error
	File  string // optional log file path, rotated
}

var (
	mu   sync.RWMutex
	base = newLogger(Options{Level: "info"})
)

// Init replaces the process logger. Safe to call more than once.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(opts)
}

func newLogger(opts Options) *zap.Logger {
	level := zapcore.InfoLevel
	switch strings.ToLower(strings.TrimSpace(opts.Level)) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}
	if strings.TrimSpace(opts.File) != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    20, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotated), level))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}

func toFields(component string, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	out = append(out, zap.String("component", component))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// DebugC logs a debug message scoped to a component.
func DebugC(component, msg string) {
	current().Debug(msg, zap.String("component", component))
}

// DebugCF logs a debug message with structured fields.
func DebugCF(component, msg string, fields map[string]interface{}) {
	current().Debug(msg, toFields(component, fields)...)
}

// InfoC logs an info message scoped to a component.
func InfoC(component, msg string) {
	current().Info(msg, zap.String("component", component))
}

// InfoCF logs an info message with structured fields.
func InfoCF(component, msg string, fields map[string]interface{}) {
	current().Info(msg, toFields(component, fields)...)
}

// WarnC logs a warning scoped to a component.
func WarnC(component, msg string) {
	current().Warn(msg, zap.String("component", component))
}

// WarnCF logs a warning with structured fields.
func WarnCF(component, msg string, fields map[string]interface{}) {
	current().Warn(msg, toFields(component, fields)...)
}

// ErrorC logs an error scoped to a component.
func ErrorC(component, msg string) {
	current().Error(msg, zap.String("component", component))
}

// ErrorCF logs an error with structured fields.
func ErrorCF(component, msg string, fields map[string]interface{}) {
	current().Error(msg, toFields(component, fields)...)
}
