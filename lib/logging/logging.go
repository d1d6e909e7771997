// Package logging provides logging utilities for the application
package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	mu      sync.Mutex
	level   = hclog.Info
	loggers = map[string]hclog.Logger{}
)

// GetLogger returns the named logger, creating it on first use. All loggers
// share the level configured via SetLevel.
func GetLogger(name string) hclog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  level,
		Output: os.Stderr,
	})
	loggers[name] = l
	return l
}

// SetLevel configures the level of all loggers, existing and future ones.
// The level string must be one of debug, info, warn, error.
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()

	level = parseLogLevel(levelStr)
	for _, l := range loggers {
		l.SetLevel(level)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// parseLogLevel converts a string level to hclog.Level
func parseLogLevel(level string) hclog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return hclog.Debug
	case "info":
		return hclog.Info
	case "warning", "warn":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		panic(fmt.Sprintf("invalid log level: %s. must be one of debug, info, warn, error", level))
	}
}
