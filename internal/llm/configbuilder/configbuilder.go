package configbuilder

import (
	"fmt"
	"os"

	"github.com/esbmc/esbmc-ai/internal/config"
	"github.com/esbmc/esbmc-ai/internal/llm"
	llmollama "github.com/esbmc/esbmc-ai/internal/llm/providers/ollama"
	llmopenai "github.com/esbmc/esbmc-ai/internal/llm/providers/openai"
)

// BuildRegistryFromConfig constructs a registry and providers from config.
func BuildRegistryFromConfig(cfg *config.Config) (*llm.Registry, error) {
	reg := llm.NewRegistry()

	for name, pCfg := range cfg.Providers {
		p, err := buildProvider(name, pCfg)
		if err != nil {
			return nil, err
		}
		reg.RegisterProvider(name, p)
	}

	for name, mCfg := range cfg.Models {
		reg.RegisterModel(name, llm.ModelRoute{
			Provider:      mCfg.Provider,
			Model:         mCfg.Model,
			Temperature:   mCfg.Temperature,
			MaxTokens:     mCfg.MaxTokens,
			ContextWindow: mCfg.ContextWindow,
		}, mCfg.Default)
	}

	if _, _, err := reg.Resolve(""); err != nil {
		return nil, err
	}

	return reg, nil
}

func buildProvider(name string, cfg config.ProviderConfig) (llm.Provider, error) {
	// ${VAR} references in credentials resolve against the environment,
	// which godotenv has already seeded from .env.
	apiKey := os.ExpandEnv(cfg.APIKey)

	switch cfg.Type {
	case "openai", "openrouter", "vllm", "lmstudio", "custom":
		return llmopenai.NewProvider(name, cfg.BaseURL, apiKey, cfg.Timeout), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}
