// Package logging builds the application's JSON slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	Level slog.Level
	// Stdout receives every record. Nil means os.Stdout.
	Stdout io.Writer
	// File, when set, also receives every record through a rotating writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New returns a JSON logger writing to stdout and, when configured, to a
// rotating log file. The returned closer releases the file.
func New(opts Options) (*slog.Logger, io.Closer) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	stdout := slog.NewJSONHandler(out, hopts)
	if opts.File == "" {
		return slog.New(stdout), nopCloser{}
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	handler := slogmulti.Fanout(stdout, slog.NewJSONHandler(file, hopts))
	return slog.New(handler), file
}
