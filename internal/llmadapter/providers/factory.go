package providers

import (
	"fmt"

	"github.com/stpasec/engine/internal/config"
	"github.com/stpasec/engine/internal/llmadapter"
)

// New builds the concrete Provider named by cfg.Provider (spec.md §6.1).
func New(cfg config.ModelConfig) (llmadapter.Provider, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.Name, cfg.BaseURL), nil
	case config.ProviderGroq:
		return NewGroq(cfg.APIKey, cfg.Name, cfg.BaseURL), nil
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.APIKey, cfg.Name, cfg.BaseURL), nil
	case config.ProviderOllama:
		return NewOllama(cfg.Name, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", cfg.Provider)
	}
}
