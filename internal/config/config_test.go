package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validYAML = `
analysis:
  name: payments-step1
  output_dir: /tmp/out
model:
  provider: anthropic
  api_key_env: TEST_STPASEC_API_KEY
  name: claude-test
input:
  type: file
  path: ./description.txt
execution:
  mode: enhanced
`

func TestParse_ResolvesAPIKeyEnv(t *testing.T) {
	t.Setenv("TEST_STPASEC_API_KEY", "sk-test-123")
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.Model.APIKey)
	require.Equal(t, ModeEnhanced, cfg.Execution.Mode)
}

func TestParse_MissingEnvVarIsConfigError(t *testing.T) {
	_, err := Parse([]byte(validYAML))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParse_DefaultsExecutionModeToStandard(t *testing.T) {
	t.Setenv("TEST_STPASEC_API_KEY", "sk-test-123")
	yamlNoMode := `
analysis:
  name: x
  output_dir: /tmp/out
model:
  provider: openai
  api_key_env: TEST_STPASEC_API_KEY
  name: gpt-test
input:
  type: directory
  path: ./inputs
`
	cfg, err := Parse([]byte(yamlNoMode))
	require.NoError(t, err)
	require.Equal(t, ModeStandard, cfg.Execution.Mode)
}

func TestParse_InvalidProviderFails(t *testing.T) {
	t.Setenv("TEST_STPASEC_API_KEY", "sk-test-123")
	bad := `
analysis:
  name: x
  output_dir: /tmp/out
model:
  provider: watson
  api_key_env: TEST_STPASEC_API_KEY
  name: foo
input:
  type: file
  path: ./x.txt
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
}

func TestConfig_StripRemovesAPIKey(t *testing.T) {
	t.Setenv("TEST_STPASEC_API_KEY", "sk-test-123")
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	stripped := cfg.Strip()
	require.Empty(t, stripped.Model.APIKey)
	require.NotEmpty(t, cfg.Model.APIKey, "original must be unaffected")
}
