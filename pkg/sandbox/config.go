package sandbox

import "time"

const (
	// DefaultTimeout is the wall-clock bound for one execution.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxOutputBytes caps each of stdout and stderr.
	DefaultMaxOutputBytes = 1 << 20

	// DefaultInterpreter runs the snippet file.
	DefaultInterpreter = "python3"
)

// Config is the process executor configuration.
type Config struct {
	// Interpreter is invoked as `<Interpreter> <script>` (e.g., "python3").
	Interpreter string

	// Extension of the script file written to the work directory (e.g., ".py").
	Extension string

	// Timeout is the hard wall-clock limit. Zero uses DefaultTimeout.
	Timeout time.Duration

	// CPUSeconds, when positive, caps CPU time via `ulimit -t`.
	CPUSeconds int

	// MemoryMB, when positive, caps the address space via `ulimit -v`.
	MemoryMB int

	// MaxOutputBytes caps each captured stream. Zero uses DefaultMaxOutputBytes.
	MaxOutputBytes int

	// Env lists variables passed through from the host environment
	// in addition to PATH and LANG.
	Env []string

	// TempDir is the parent for per-execution work directories. Empty uses os.TempDir.
	TempDir string
}

func (c *Config) applyDefaults() {
	if c.Interpreter == "" {
		c.Interpreter = DefaultInterpreter
	}
	if c.Extension == "" {
		c.Extension = ".py"
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
}
