// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the leveled printf-style logger used across the
// client. Messages follow the "TAG | key=value" convention, e.g.
//
//	log.Debug("STREAM | ignored line=%q", line)
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelOff
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelOff:
		return "off"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel converts a level name to a Level. The empty string maps to info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "off", "none", "silent":
		return LevelOff, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger is the logging surface components depend on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// =============================================================================
// STANDARD LOGGER
// =============================================================================

// StdLogger writes leveled lines through a standard library *log.Logger.
type StdLogger struct {
	mu    sync.RWMutex
	out   *log.Logger
	level Level
}

// New creates a logger writing to w at the given minimum level.
func New(w io.Writer, level Level) *StdLogger {
	return &StdLogger{
		out:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level: level,
	}
}

// SetLevel changes the minimum level.
func (l *StdLogger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// Level returns the current minimum level.
func (l *StdLogger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *StdLogger) logf(level Level, format string, args ...any) {
	if level < l.Level() {
		return
	}
	l.out.Printf("%-5s | %s", strings.ToUpper(level.String()), fmt.Sprintf(format, args...))
}

func (l *StdLogger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *StdLogger) Info(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *StdLogger) Warn(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *StdLogger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// =============================================================================
// NOP LOGGER
// =============================================================================

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

// OrNop returns l, or a Nop logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// OpenFile opens (creating if needed) an append-only log file. The caller
// closes the returned file.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
