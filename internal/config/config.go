package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML
// and ENV. It is constructed once at process start and passed by reference
// into the components that need it; there is no ambient global state.
type Config struct {
	Version   string                    `mapstructure:"version"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Models    map[string]ModelConfig    `mapstructure:"models"`
	Chat      ChatConfig                `mapstructure:"chat"`
	Verifier  VerifierConfig            `mapstructure:"verifier"`
	Repair    RepairConfig              `mapstructure:"repair"`
	Logging   LoggingConfig             `mapstructure:"logging"`
	Metrics   MetricsConfig             `mapstructure:"metrics"`
}

// ProviderConfig represents LLM provider configuration such as OpenAI, Ollama,
// or OpenAI-compatible gateways.
type ProviderConfig struct {
	Type    string        `mapstructure:"type"`     // openai, openrouter, vllm, lmstudio, custom, ollama
	BaseURL string        `mapstructure:"base_url"` // API base URL
	APIKey  string        `mapstructure:"api_key"`  // optional API key
	Timeout time.Duration `mapstructure:"timeout"`  // request timeout
}

// ModelConfig binds a logical model name to a provider entry and model parameters.
type ModelConfig struct {
	Provider      string  `mapstructure:"provider"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	ContextWindow int     `mapstructure:"context_window"`
	Default       bool    `mapstructure:"default"`
}

// ChatConfig controls the chat session pacing and retry behaviour.
type ChatConfig struct {
	// Cooldown is the minimum interval between consecutive model requests.
	Cooldown time.Duration `mapstructure:"cooldown"`
	// MaxRetries bounds retries of transient model errors per send.
	MaxRetries int `mapstructure:"max_retries"`
}

// VerifierConfig selects and configures the verification backend.
type VerifierConfig struct {
	Backend    string        `mapstructure:"backend"` // esbmc or oracle
	Timeout    time.Duration `mapstructure:"timeout"`
	ScratchDir string        `mapstructure:"scratch_dir"`
	ESBMC      ESBMCConfig   `mapstructure:"esbmc"`
	Oracle     OracleConfig  `mapstructure:"oracle"`
}

// ESBMCConfig configures the ESBMC backend.
type ESBMCConfig struct {
	Path          string   `mapstructure:"path"`
	Params        []string `mapstructure:"params"`
	EntryFunction string   `mapstructure:"entry_function"`
}

// OracleConfig configures the command-oracle backend.
type OracleConfig struct {
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
}

// RepairConfig describes the fix-code loop parameters.
type RepairConfig struct {
	MaxAttempts        int    `mapstructure:"max_attempts"`
	VerifierOutputType string `mapstructure:"verifier_output_type"` // full, ce, vp
	OutputDir          string `mapstructure:"output_dir"`
	GeneratePatches    bool   `mapstructure:"generate_patches"`
	SystemPrompt       string `mapstructure:"system_prompt"`
	InitialPrompt      string `mapstructure:"initial_prompt"`
	RetryPrompt        string `mapstructure:"retry_prompt"`
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// DefaultSystemPrompt mirrors the stock repair-tool instruction.
const DefaultSystemPrompt = "From now on, act as an Automated Code Repair " +
	"Tool that repairs C code. You will be shown C code along with error " +
	"information from a formal verification tool. Pay close attention to the " +
	"error type, error line, and verifier output provided. Use this " +
	"information to identify and fix the bug. Provide the repaired C code as " +
	"output, inside a single fenced code block. Aside from the corrected " +
	"source code, do not output any other text."

// DefaultInitialPrompt is the first user turn; DefaultRetryPrompt is used for
// every attempt after it. Both use $name template variables.
const DefaultInitialPrompt = "The verifier found an error in the code:\n\n" +
	"Error type: $error_type\nError line: $error_line\n\n" +
	"Verifier output:\n$verifier_output\n\n" +
	"The source code is:\n\n```c\n$source_code\n```\n\n" +
	"Using the error information above, show the fixed source code."

const DefaultRetryPrompt = "The previous attempt failed. The verifier found " +
	"an error:\n\nError type: $error_type\nError line: $error_line\n\n" +
	"Verifier output:\n$verifier_output\n\n" +
	"The source code is:\n\n```c\n$source_code\n```\n\n" +
	"Review the conversation history to see what was tried before. Using the " +
	"error information above and learning from previous failed attempts, " +
	"show the fixed source code."

// Load reads configuration from the provided path or defaults to
// configs/config.yaml. A .env file next to the working directory is applied
// first so file values can reference API keys; environment variables override
// file values (prefix: ESBMCAI_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	// Best effort: a missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ESBMCAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("chat.cooldown", "20s")
	v.SetDefault("chat.max_retries", 3)

	v.SetDefault("verifier.backend", "esbmc")
	v.SetDefault("verifier.timeout", "60s")
	v.SetDefault("verifier.scratch_dir", "")
	v.SetDefault("verifier.esbmc.path", "esbmc")
	v.SetDefault("verifier.esbmc.params", []string{
		"--interval-analysis", "--goto-unwind", "--unlimited-goto-unwind",
		"--k-induction", "--state-hashing", "--add-symex-value-sets",
		"--k-step", "2", "--floatbv", "--unlimited-k-steps",
	})
	v.SetDefault("verifier.esbmc.entry_function", "main")

	v.SetDefault("repair.max_attempts", 5)
	v.SetDefault("repair.verifier_output_type", "full")
	v.SetDefault("repair.generate_patches", false)
	v.SetDefault("repair.system_prompt", DefaultSystemPrompt)
	v.SetDefault("repair.initial_prompt", DefaultInitialPrompt)
	v.SetDefault("repair.retry_prompt", DefaultRetryPrompt)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9091")
}

// Validate performs basic sanity checks on configuration values.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	if len(c.Models) == 0 {
		return errors.New("at least one model must be defined")
	}

	for name, p := range c.Providers {
		if p.Type == "" {
			return fmt.Errorf("provider %q must define type", name)
		}
	}

	var defaultFound bool
	for name, m := range c.Models {
		if m.Provider == "" {
			return fmt.Errorf("model %q must reference provider", name)
		}

		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("model %q references unknown provider %q", name, m.Provider)
		}

		if m.Temperature < 0 || m.Temperature > 2 {
			return fmt.Errorf("model %q temperature must be within [0,2]", name)
		}

		if m.MaxTokens < 0 {
			return fmt.Errorf("model %q max_tokens cannot be negative", name)
		}

		if m.ContextWindow < 0 {
			return fmt.Errorf("model %q context_window cannot be negative", name)
		}

		if m.Default {
			defaultFound = true
		}
	}

	if !defaultFound {
		return errors.New("at least one model should be marked as default")
	}

	if c.Chat.Cooldown < 0 {
		return errors.New("chat.cooldown must be >= 0")
	}
	if c.Chat.MaxRetries < 0 {
		return errors.New("chat.max_retries must be >= 0")
	}

	switch c.Verifier.Backend {
	case "esbmc":
		if strings.TrimSpace(c.Verifier.ESBMC.Path) == "" {
			return errors.New("verifier.esbmc.path must be set")
		}
	case "oracle":
		if strings.TrimSpace(c.Verifier.Oracle.Command) == "" {
			return errors.New("verifier.oracle.command must be set")
		}
	default:
		return fmt.Errorf("verifier.backend must be one of esbmc or oracle, got %q", c.Verifier.Backend)
	}

	if c.Verifier.Timeout <= 0 {
		return errors.New("verifier.timeout must be > 0")
	}

	for _, p := range c.Verifier.ESBMC.Params {
		if p == "--timeout" || p == "--function" {
			return fmt.Errorf("do not pass %s in verifier.esbmc.params, use the dedicated field", p)
		}
	}

	if c.Repair.MaxAttempts <= 0 {
		return errors.New("repair.max_attempts must be > 0")
	}

	switch c.Repair.VerifierOutputType {
	case "full", "ce", "vp":
	default:
		return fmt.Errorf("repair.verifier_output_type must be one of full, ce, vp, got %q", c.Repair.VerifierOutputType)
	}

	return nil
}
