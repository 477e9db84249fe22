// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package logger is the process-wide logger of the identity provider.
//
// It wraps toolhive-core/logging. Package-level functions log through the
// current logger; components that take an *slog.Logger are given one from
// [Component] so their records carry a component attribute.
package logger

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"
	"github.com/stacklok/toolhive-core/logging"
)

// Environment variables read by Initialize.
const (
	// FormatEnv selects "text" (default) or "json" output.
	FormatEnv = "THV_IDP_LOG_FORMAT"
	// LevelEnv selects debug, info, warn or error. The --debug flag wins.
	LevelEnv = "THV_IDP_LOG_LEVEL"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(logging.New())
}

// Get returns the current logger.
func Get() *slog.Logger {
	return current.Load()
}

// Set replaces the current logger. Tests use it to capture output.
func Set(l *slog.Logger) {
	current.Store(l)
}

// Component returns the current logger tagged with a component name.
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}

// Debug logs msg at debug level.
func Debug(msg string) {
	Get().Debug(msg)
}

// Debugw logs msg at debug level with key-value pairs.
func Debugw(msg string, keysAndValues ...any) {
	Get().Debug(msg, keysAndValues...)
}

// Info logs msg at info level.
func Info(msg string) {
	Get().Info(msg)
}

// Infof formats and logs a message at info level.
func Infof(format string, args ...any) {
	Get().Info(fmt.Sprintf(format, args...))
}

// Infow logs msg at info level with key-value pairs.
func Infow(msg string, keysAndValues ...any) {
	Get().Info(msg, keysAndValues...)
}

// Warnf formats and logs a message at warning level.
func Warnf(format string, args ...any) {
	Get().Warn(fmt.Sprintf(format, args...))
}

// Warnw logs msg at warning level with key-value pairs.
func Warnw(msg string, keysAndValues ...any) {
	Get().Warn(msg, keysAndValues...)
}

// Errorf formats and logs a message at error level.
func Errorf(format string, args ...any) {
	Get().Error(fmt.Sprintf(format, args...))
}

// Errorw logs msg at error level with key-value pairs.
func Errorw(msg string, keysAndValues ...any) {
	Get().Error(msg, keysAndValues...)
}

// Initialize configures the logger from the environment and the --debug flag.
func Initialize() {
	InitializeWithEnv(&env.OSReader{})
}

// InitializeWithEnv is Initialize with an injectable environment.
func InitializeWithEnv(envReader env.Reader) {
	current.Store(logging.New(options(envReader, viper.GetBool("debug"))...))
}

func options(envReader env.Reader, debug bool) []logging.Option {
	var opts []logging.Option
	if !strings.EqualFold(strings.TrimSpace(envReader.Getenv(FormatEnv)), "json") {
		opts = append(opts, logging.WithFormat(logging.FormatText))
	}

	level, ok := parseLevel(envReader.Getenv(LevelEnv))
	if debug {
		level, ok = slog.LevelDebug, true
	}
	if ok {
		opts = append(opts, logging.WithLevel(level))
	}
	return opts
}

// parseLevel accepts slog level names, case-insensitively.
func parseLevel(s string) (slog.Level, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, false
	}
	return level, true
}
