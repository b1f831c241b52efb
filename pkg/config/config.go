// Package config loads quizagent settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables that override file values.
const (
	EnvAPIKey       = "OPENAI_API_KEY"
	EnvBaseURL      = "OPENAI_BASE_URL"
	EnvModel        = "QUIZAGENT_MODEL"
	EnvSecret       = "QUIZAGENT_SECRET"
	EnvSecretLegacy = "MY_SECRET"
)

// Browser kinds.
const (
	BrowserChrome = "chrome"
	BrowserHTTP   = "http"
)

// Config is the complete quizagent configuration.
type Config struct {
	Model      ModelConfig      `toml:"model"`
	Agent      AgentConfig      `toml:"agent"`
	Sandbox    SandboxConfig    `toml:"sandbox"`
	Quiz       QuizConfig       `toml:"quiz"`
	Browser    BrowserConfig    `toml:"browser"`
	Server     ServerConfig     `toml:"server"`
	Transcript TranscriptConfig `toml:"transcript"`
}

type ModelConfig struct {
	BaseURL        string        `toml:"base_url"`
	Name           string        `toml:"name"`
	APIKey         string        `toml:"api_key"`
	MaxRetries     int           `toml:"max_retries"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

type AgentConfig struct {
	TurnBudget  int `toml:"turn_budget"`
	TextLimit   int `toml:"text_limit"`
	MarkupLimit int `toml:"markup_limit"`
}

type SandboxConfig struct {
	Interpreter string `toml:"interpreter"`

	// Extension of the snippet file. Empty derives it from Interpreter.
	Extension string `toml:"extension"`

	// TempDir is the parent of per-execution work directories. Empty uses the
	// system temp directory.
	TempDir string `toml:"temp_dir"`

	Timeout        time.Duration `toml:"timeout"`
	CPUSeconds     int           `toml:"cpu_seconds"`
	MemoryMB       int           `toml:"memory_mb"`
	MaxOutputBytes int           `toml:"max_output_bytes"`
	Env            []string      `toml:"env"`
}

// interpreterExtensions maps interpreter base names, minus version suffixes,
// to snippet extensions.
var interpreterExtensions = map[string]string{
	"python":  ".py",
	"node":    ".js",
	"bun":     ".js",
	"deno":    ".ts",
	"ruby":    ".rb",
	"perl":    ".pl",
	"bash":    ".sh",
	"sh":      ".sh",
	"Rscript": ".R",
}

// SnippetExtension returns Extension, or the extension implied by
// Interpreter. Unknown interpreters get ".py".
func (c SandboxConfig) SnippetExtension() string {
	if c.Extension != "" {
		if !strings.HasPrefix(c.Extension, ".") {
			return "." + c.Extension
		}
		return c.Extension
	}
	name := filepath.Base(c.Interpreter)
	name = strings.TrimRight(name, "0123456789.")
	if ext, ok := interpreterExtensions[name]; ok {
		return ext
	}
	return ".py"
}

type QuizConfig struct {
	MaxIterations       int           `toml:"max_iterations"`
	MaxIncorrectRetries int           `toml:"max_incorrect_retries"`
	SubmitTimeout       time.Duration `toml:"submit_timeout"`
	RunTimeout          time.Duration `toml:"run_timeout"`
}

type BrowserConfig struct {
	Kind        string        `toml:"kind"`
	Headless    bool          `toml:"headless"`
	ExecPath    string        `toml:"exec_path"`
	PageTimeout time.Duration `toml:"page_timeout"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`

	// Secret is the expected request secret. Empty disables the check.
	Secret string `toml:"secret"`

	// MCP also serves the code executor at /mcp. It needs Secret.
	MCP bool `toml:"mcp"`
}

type TranscriptConfig struct {
	// DBPath names a SQLite file. Empty keeps transcripts in memory.
	DBPath string `toml:"db_path"`

	// MemoryLimit bounds the in-memory store, in turns. Oldest transcripts
	// are evicted first. Zero keeps everything.
	MemoryLimit int `toml:"memory_limit"`
}

// DefaultMemoryLimit is the in-memory transcript bound, in turns.
const DefaultMemoryLimit = 10000

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			BaseURL:        "https://aipipe.org/openai/v1",
			Name:           "gpt-4o-mini",
			MaxRetries:     2,
			RequestTimeout: 2 * time.Minute,
		},
		Agent: AgentConfig{
			TurnBudget:  5,
			TextLimit:   5000,
			MarkupLimit: 5000,
		},
		Sandbox: SandboxConfig{
			Interpreter:    "python3",
			Timeout:        30 * time.Second,
			MaxOutputBytes: 1 << 20,
		},
		Quiz: QuizConfig{
			MaxIterations: 10,
			SubmitTimeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Kind:        BrowserChrome,
			Headless:    true,
			PageTimeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
		Transcript: TranscriptConfig{
			MemoryLimit: DefaultMemoryLimit,
		},
	}
}

var envLookup = os.LookupEnv

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, envLookup)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, key := range undecoded {
				keys = append(keys, key.String())
			}
			return nil, fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	cfg.applyEnv(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, names ...string) {
		for _, name := range names {
			if v, ok := lookup(name); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	set(&c.Model.APIKey, EnvAPIKey)
	set(&c.Model.BaseURL, EnvBaseURL)
	set(&c.Model.Name, EnvModel)
	set(&c.Server.Secret, EnvSecret, EnvSecretLegacy)
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Model.BaseURL != "", "model.base_url is required")
	check(c.Model.Name != "", "model.name is required")
	check(c.Model.MaxRetries >= 0, "model.max_retries must not be negative, got %d", c.Model.MaxRetries)
	check(c.Model.RequestTimeout >= 0, "model.request_timeout must not be negative, got %s", c.Model.RequestTimeout)

	check(c.Agent.TurnBudget > 0, "agent.turn_budget must be positive, got %d", c.Agent.TurnBudget)
	check(c.Agent.TextLimit > 0, "agent.text_limit must be positive, got %d", c.Agent.TextLimit)
	check(c.Agent.MarkupLimit > 0, "agent.markup_limit must be positive, got %d", c.Agent.MarkupLimit)

	check(c.Sandbox.Interpreter != "", "sandbox.interpreter is required")
	check(c.Sandbox.Timeout > 0, "sandbox.timeout must be positive, got %s", c.Sandbox.Timeout)
	check(c.Sandbox.CPUSeconds >= 0, "sandbox.cpu_seconds must not be negative, got %d", c.Sandbox.CPUSeconds)
	check(c.Sandbox.MemoryMB >= 0, "sandbox.memory_mb must not be negative, got %d", c.Sandbox.MemoryMB)
	check(c.Sandbox.MaxOutputBytes > 0, "sandbox.max_output_bytes must be positive, got %d", c.Sandbox.MaxOutputBytes)

	check(c.Quiz.MaxIterations > 0, "quiz.max_iterations must be positive, got %d", c.Quiz.MaxIterations)
	check(c.Quiz.MaxIncorrectRetries >= 0, "quiz.max_incorrect_retries must not be negative, got %d", c.Quiz.MaxIncorrectRetries)
	check(c.Quiz.SubmitTimeout > 0, "quiz.submit_timeout must be positive, got %s", c.Quiz.SubmitTimeout)
	check(c.Quiz.RunTimeout >= 0, "quiz.run_timeout must not be negative, got %s", c.Quiz.RunTimeout)

	check(c.Browser.Kind == BrowserChrome || c.Browser.Kind == BrowserHTTP,
		"browser.kind must be %q or %q, got %q", BrowserChrome, BrowserHTTP, c.Browser.Kind)
	check(c.Browser.PageTimeout > 0, "browser.page_timeout must be positive, got %s", c.Browser.PageTimeout)

	check(c.Server.Listen != "", "server.listen is required")
	check(!c.Server.MCP || c.Server.Secret != "", "server.mcp requires server.secret")

	check(c.Transcript.MemoryLimit >= 0, "transcript.memory_limit must not be negative, got %d", c.Transcript.MemoryLimit)

	return errors.Join(errs...)
}
