// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-core/env/mocks"
	"github.com/stacklok/toolhive-core/logging"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{in: "", wantOK: false},
		{in: "debug", want: slog.LevelDebug, wantOK: true},
		{in: "INFO", want: slog.LevelInfo, wantOK: true},
		{in: " warn ", want: slog.LevelWarn, wantOK: true},
		{in: "error", want: slog.LevelError, wantOK: true},
		{in: "verbose", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := parseLevel(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		format  string
		level   string
		debug   bool
		wantLen int
	}{
		{name: "defaults to text", wantLen: 1},
		{name: "json", format: "JSON", wantLen: 0},
		{name: "json with level", format: "json", level: "warn", wantLen: 1},
		{name: "debug flag", format: "json", debug: true, wantLen: 1},
		{name: "invalid level ignored", level: "loud", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockEnv := mocks.NewMockReader(ctrl)
			mockEnv.EXPECT().Getenv(FormatEnv).Return(tt.format)
			mockEnv.EXPECT().Getenv(LevelEnv).Return(tt.level)

			assert.Len(t, options(mockEnv, tt.debug), tt.wantLen)
		})
	}
}

// setForTest replaces the current logger until the test completes.
func setForTest(t *testing.T, l *slog.Logger) {
	t.Helper()
	prev := current.Load()
	Set(l)
	t.Cleanup(func() { current.Store(prev) })
}

func TestLogFunctions(t *testing.T) { //nolint:paralleltest // mutates the current logger
	tests := []struct {
		name     string
		logFn    func()
		contains string
	}{
		{"Debug", func() { Debug("debug msg") }, "debug msg"},
		{"Debugw", func() { Debugw("debug kv", "key", "val") }, "debug kv"},
		{"Info", func() { Info("info msg") }, "info msg"},
		{"Infof", func() { Infof("info %s", "formatted") }, "info formatted"},
		{"Infow", func() { Infow("info kv", "key", "val") }, "info kv"},
		{"Warnf", func() { Warnf("warn %s", "formatted") }, "warn formatted"},
		{"Warnw", func() { Warnw("warn kv", "key", "val") }, "warn kv"},
		{"Errorf", func() { Errorf("error %s", "formatted") }, "error formatted"},
		{"Errorw", func() { Errorw("error kv", "key", "val") }, "error kv"},
	}

	for _, tc := range tests { //nolint:paralleltest // mutates the current logger
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			setForTest(t, logging.New(logging.WithOutput(&buf), logging.WithLevel(slog.LevelDebug)))

			tc.logFn()

			assert.Contains(t, buf.String(), tc.contains)
		})
	}
}

func TestComponent(t *testing.T) { //nolint:paralleltest // mutates the current logger
	var buf bytes.Buffer
	setForTest(t, logging.New(logging.WithOutput(&buf)))

	Component("consent").Info("decided")

	out := buf.String()
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "consent")
	assert.Contains(t, out, "decided")
}

func TestInitializeWithEnv(t *testing.T) { //nolint:paralleltest // mutates the current logger
	prev := current.Load()
	t.Cleanup(func() { current.Store(prev) })

	ctrl := gomock.NewController(t)
	mockEnv := mocks.NewMockReader(ctrl)
	mockEnv.EXPECT().Getenv(FormatEnv).Return("json")
	mockEnv.EXPECT().Getenv(LevelEnv).Return("error")

	InitializeWithEnv(mockEnv)

	got := Get()
	require.NotNil(t, got)
	assert.NotSame(t, prev, got)
	assert.False(t, got.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, got.Enabled(t.Context(), slog.LevelError))
}
