// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log prints the per-file diagnostics of an update or upload batch.
// Every line is mirrored into the structured zerolog stream.
package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/updaterc/pkg/index"
)

const (
	fileIndent   = 4  // spaces to indent file entries
	nameWidth    = 35 // Base width for filename
	actionWidth  = 10 // Width for the action
	outcomeWidth = 15 // Width for outcome text
)

// 📝 FileEvent represents the outcome of one file in a batch
type FileEvent struct {
	Filename string       // File name relative to the install root
	Action   index.Action // Action that was executed
	Outcome  string       // What happened
	Failed   bool         // Whether the action failed
}

// 📦 BatchOperation represents an update or upload batch
type BatchOperation struct {
	Kind  string // update, upload or remove
	Site  string // Target update site, empty for updates
	Root  string // Install root
	Files int    // Number of files with an action
}

// 🎯 Logger handles diagnostic output for batches
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
	batch   *BatchOperation
	events  []FileEvent
}

// 🏭 New creates a logger printing to console and mirroring into zlog
func New(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
		mu:      sync.Mutex{},
	}
}

type contextKey struct{}

// 🔍 FromContext retrieves the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 📥 NewContext stores the logger in context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

func (l *Logger) formatFileEvent(ev FileEvent) string {
	var symbol rune
	var symbolColor color.Attribute
	switch {
	case ev.Failed:
		symbol = '✗'
		symbolColor = color.FgRed
	case ev.Action == index.ActionInstall || ev.Action == index.ActionUpload:
		symbol = '✓'
		symbolColor = color.FgGreen
	case ev.Action == index.ActionUpdate:
		symbol = '⟳'
		symbolColor = color.FgBlue
	case ev.Action == index.ActionUninstall || ev.Action == index.ActionRemove:
		symbol = '-'
		symbolColor = color.FgYellow
	default:
		symbol = '•'
		symbolColor = color.FgCyan
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, ev.Filename),
		color.New(color.Faint).Sprint(fmt.Sprintf("%-*s", actionWidth, ev.Action)),
		fmt.Sprintf("%-*s", outcomeWidth, ev.Outcome))
}

// 📝 LogFileEvent prints one file outcome
func (l *Logger) LogFileEvent(ctx context.Context, ev FileEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)

	fmt.Fprintln(l.console, l.formatFileEvent(ev))

	e := l.zlog.Info()
	if ev.Failed {
		e = l.zlog.Warn()
	}
	e.Str("file", ev.Filename).
		Str("action", ev.Action.String()).
		Str("outcome", ev.Outcome).
		Bool("failed", ev.Failed).
		Msg("file event")
}

// 🚀 StartBatch prints the batch header
func (l *Logger) StartBatch(ctx context.Context, op BatchOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.batch = &op
	l.events = nil

	target := op.Root
	if op.Site != "" {
		target = op.Site
	}
	fmt.Fprintf(l.console, "[%s %s]\n",
		op.Kind,
		color.New(color.FgCyan).Sprint(target))

	l.zlog.Info().
		Str("kind", op.Kind).
		Str("site", op.Site).
		Str("root", op.Root).
		Int("files", op.Files).
		Msg("starting batch")
}

// 🏁 EndBatch logs the batch summary and returns the number of failed files
func (l *Logger) EndBatch(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.batch == nil {
		return 0
	}

	failed := 0
	for _, ev := range l.events {
		if ev.Failed {
			failed++
		}
	}

	l.zlog.Info().
		Str("kind", l.batch.Kind).
		Int("files", len(l.events)).
		Int("failed", failed).
		Msg("batch complete")

	l.batch = nil
	l.events = nil
	return failed
}

// LogNewline prints an empty line
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// Header prints a section header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("updaterc")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// Success prints a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// Warning prints a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// Error prints an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// Info prints an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// Infof prints a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// Errorf prints a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// Successf prints a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
