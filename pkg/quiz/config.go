package quiz

import "time"

const (
	// DefaultMaxIterations caps the sessions in one run.
	DefaultMaxIterations = 10
)

// Config controls a Driver.
type Config struct {
	MaxIterations int

	// MaxIncorrectRetries is how many times a question is re-reasoned after an
	// incorrect verdict. Zero disables retries.
	MaxIncorrectRetries int

	// RunTimeout bounds a whole run. Zero means no deadline.
	RunTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxIncorrectRetries < 0 {
		c.MaxIncorrectRetries = 0
	}
}
