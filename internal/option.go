package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	// logOutput overrides where console logs go. Run defaults to stdout and
	// RunMCP to stderr.
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sends console logs to w.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

func (a *application) logWriter(fallback io.Writer) io.Writer {
	if a.logOutput != nil {
		return a.logOutput
	}
	return fallback
}
