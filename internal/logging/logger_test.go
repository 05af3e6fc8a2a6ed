// RescueNet - Disaster Relief Location Sharing and Emergency Broadcast
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rescuenet

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// captureLogs points the global logger at a buffer for the duration of t.
func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, Output: &buf})
	t.Cleanup(func() { Init(Config{}) })
	return &buf
}

func TestInit_JSONOutput(t *testing.T) {
	buf := captureLogs(t, "debug")

	Info().Str("session_id", "s-1").Msg("sharing started")

	out := buf.String()
	for _, want := range []string{`"message":"sharing started"`, `"session_id":"s-1"`, `"level":"info"`, `"time":`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestInit_LevelFilters(t *testing.T) {
	buf := captureLogs(t, "warn")

	Debug().Msg("hidden")
	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-threshold entries written: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn entry missing: %s", out)
	}
}

func TestInit_NoTimestamp(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf, NoTimestamp: true})
	t.Cleanup(func() { Init(Config{}) })

	Error().Msg("x")
	if strings.Contains(buf.String(), `"time"`) {
		t.Errorf("unexpected time field: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{" DEBUG ", zerolog.DebugLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCtx_AddsContextFields(t *testing.T) {
	buf := captureLogs(t, "info")

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithNewCorrelationID(ctx)
	ctx = ContextWithConnID(ctx, 42)

	Ctx(ctx).Info().Msg("frame handled")

	out := buf.String()
	corr := CorrelationIDFromContext(ctx)
	if len(corr) != 8 {
		t.Fatalf("correlation id = %q, want 8 chars", corr)
	}
	for _, want := range []string{`"request_id":"req-123"`, `"correlation_id":"` + corr + `"`, `"conn_id":42`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}

func TestCtx_EmptyContext(t *testing.T) {
	buf := captureLogs(t, "info")

	Ctx(context.Background()).Info().Msg("bare")

	out := buf.String()
	for _, field := range []string{"request_id", "correlation_id", "conn_id"} {
		if strings.Contains(out, field) {
			t.Errorf("unexpected %s in %s", field, out)
		}
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}

func TestSlogLogger_WritesThroughZerolog(t *testing.T) {
	buf := captureLogs(t, "info")

	logger := NewSlogLogger()
	logger.With("component", "supervisor").
		WithGroup("svc").
		Info("service restarted", "name", "websocket-hub", "attempt", 2, slog.Group("backoff", "sec", 15))
	logger.Debug("filtered")
	logger.Error("terminated", "err", errors.New("boom"))

	out := buf.String()
	for _, want := range []string{
		`"message":"service restarted"`,
		`"component":"supervisor"`,
		`"svc.name":"websocket-hub"`,
		`"svc.attempt":2`,
		`"svc.backoff.sec":15`,
		`"err":"boom"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "filtered") {
		t.Errorf("debug entry written at info level: %s", out)
	}
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := zerologLevel(tt.in); got != tt.want {
			t.Errorf("zerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWatermillLogger(t *testing.T) {
	buf := captureLogs(t, "info")

	logger := NewWatermillLogger("eventbus").With(watermill.LogFields{"topic": "emergency.started"})
	logger.Info("published", watermill.LogFields{"uuid": "m-1"})
	logger.Error("publish failed", errors.New("nats: timeout"), nil)

	out := buf.String()
	for _, want := range []string{`"component":"eventbus"`, `"topic":"emergency.started"`, `"uuid":"m-1"`, `"error":"nats: timeout"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
}
