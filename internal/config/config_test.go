package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
api:
  type: openapi
  spec: ./specs/petstore.json
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "stdio", cfg.Server.Mode)
	assert.Equal(t, 30*time.Second, cfg.Global.Timeout)
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 127.0.0.1
  mode: sse
global:
  timeout: 10s
  default_headers:
    X-Source: mcp2api
api:
  type: postman
  spec: ./collections/users.json
  environment: ./collections/staging.json
  base_url: https://staging.test
  auth:
    type: bearer
    token: tok123
  transform:
    type: jq
    expression: ".data"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sse", cfg.Server.Mode)
	assert.Equal(t, 10*time.Second, cfg.Global.Timeout)
	assert.Equal(t, "mcp2api", cfg.Global.DefaultHeaders["X-Source"])
	assert.Equal(t, APITypePostman, cfg.API.Type)
	assert.Equal(t, "./collections/staging.json", cfg.API.Environment)
	assert.Equal(t, "https://staging.test", cfg.API.BaseURL)
	require.NotNil(t, cfg.API.Auth)
	assert.Equal(t, "tok123", cfg.API.Auth.Token)
	require.NotNil(t, cfg.API.Transform)
	assert.Equal(t, ".data", cfg.API.Transform.Expression)
}

func TestLoadConfig_AuthEnvIndirection(t *testing.T) {
	t.Setenv("TEST_MCP2API_TOKEN", "env-token")

	path := writeConfig(t, `
api:
  type: openapi
  spec: ./specs/petstore.json
  auth:
    type: bearer
    token_env: TEST_MCP2API_TOKEN
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.API.Auth.Token)
}

func TestLoadConfig_LiteralWinsOverEnv(t *testing.T) {
	t.Setenv("TEST_MCP2API_TOKEN", "env-token")

	path := writeConfig(t, `
api:
  type: openapi
  spec: ./specs/petstore.json
  auth:
    type: bearer
    token: literal-token
    token_env: TEST_MCP2API_TOKEN
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "literal-token", cfg.API.Auth.Token)
}

func TestLoadConfig_APIKeyDefaultsToHeader(t *testing.T) {
	path := writeConfig(t, `
api:
  type: openapi
  spec: ./specs/petstore.json
  auth:
    type: apiKey
    api_key: k123
    api_key_name: X-API-Key
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "header", cfg.API.Auth.APIKeyIn)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing type", "api:\n  spec: ./x.json\n"},
		{"bad type", "api:\n  type: graphql\n  spec: ./x.json\n"},
		{"missing spec", "api:\n  type: openapi\n"},
		{"bad mode", "server:\n  mode: grpc\napi:\n  type: openapi\n  spec: ./x.json\n"},
		{"bad auth type", "api:\n  type: openapi\n  spec: ./x.json\n  auth:\n    type: digest\n"},
		{"bad api_key_in", "api:\n  type: openapi\n  spec: ./x.json\n  auth:\n    type: apiKey\n    api_key_in: cookie\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
