package internal

import "os"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput *os.File
}

func newApplication(opts []Option) *application {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sends logs to f instead of stdout. The MCP command needs
// stdout for the protocol.
func WithLogOutput(f *os.File) Option {
	return func(a *application) {
		if f != nil {
			a.logOutput = f
		}
	}
}
