package main

import (
	"errors"

	"github.com/stpasec/engine/internal/config"
	"github.com/stpasec/engine/internal/llmadapter"
)

func isConfigError(err error) bool {
	var ce *config.ConfigError
	return errors.As(err, &ce)
}

func isProviderAuthError(err error) bool {
	var pe *llmadapter.ProviderAuthError
	return errors.As(err, &pe)
}
