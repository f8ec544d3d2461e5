// Copyright 2025 3 Leaps, LLC
// Licensed under the Apache License, Version 2.0

package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"console debug", "debug", "console", false},
		{"default format", "warn", "", false},
		{"upper case level", "ERROR", "json", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_ = logger.Sync()
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" Debug ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lvl != zapcore.DebugLevel {
		t.Errorf("expected debug, got %s", lvl)
	}
}

func TestValidFormat(t *testing.T) {
	if !ValidFormat("JSON") || !ValidFormat("console") {
		t.Error("expected json and console to be valid")
	}
	if ValidFormat("text") {
		t.Error("expected text to be invalid")
	}
}
