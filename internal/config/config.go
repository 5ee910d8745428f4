package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a GitHub tool session.
type Config struct {
	// Server settings
	Port int

	// Explicit token. When set it short-circuits the credential
	// resolution chain.
	Token string

	// Credential chain toggles
	UseCLIAuth      bool
	PromptIfMissing bool

	// BaseURL points at the GitHub REST API; override for GitHub
	// Enterprise.
	BaseURL string

	// Repositories restricts the session to an allow-list. URLs and
	// owner/repo shorthand are both accepted. Empty means
	// unrestricted.
	Repositories []string

	// GitHub App settings (optional credential source)
	GitHubAppID      string
	GitHubPrivateKey string

	// RequestsPerHour caps client-side API throughput. Zero disables
	// the limiter.
	RequestsPerHour int
}

// fileConfig is the YAML shape. The chain toggles are pointers so
// "absent" and "explicitly false" can be told apart: both default to
// enabled.
type fileConfig struct {
	Token           string   `yaml:"token"`
	UseCLIAuth      *bool    `yaml:"use_cli_auth"`
	PromptIfMissing *bool    `yaml:"prompt_if_missing"`
	BaseURL         string   `yaml:"base_url"`
	Repositories    []string `yaml:"repositories"`
	GitHubApp       struct {
		AppID      string `yaml:"app_id"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"github_app"`
	RequestsPerHour int `yaml:"requests_per_hour"`
}

// Load builds configuration from the optional YAML file named by
// GHTOOLS_CONFIG plus environment variables. Environment values win
// over the file for the settings both can carry.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnvInt("PORT", 8000),
		UseCLIAuth:      true,
		PromptIfMissing: true,
		BaseURL:         "https://api.github.com",
	}

	if path := os.Getenv("GHTOOLS_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if appID := os.Getenv("GITHUB_APP_ID"); appID != "" {
		cfg.GitHubAppID = appID
	}
	if key := normalizePrivateKey(os.Getenv("GITHUB_APP_PRIVATE_KEY")); key != "" {
		cfg.GitHubPrivateKey = key
	}
	if base := os.Getenv("GITHUB_BASE_URL"); base != "" {
		cfg.BaseURL = base
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile merges a YAML config file into cfg.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.Token = strings.TrimSpace(fc.Token)
	if fc.UseCLIAuth != nil {
		c.UseCLIAuth = *fc.UseCLIAuth
	}
	if fc.PromptIfMissing != nil {
		c.PromptIfMissing = *fc.PromptIfMissing
	}
	if fc.BaseURL != "" {
		c.BaseURL = fc.BaseURL
	}
	c.Repositories = fc.Repositories
	c.GitHubAppID = fc.GitHubApp.AppID
	c.GitHubPrivateKey = normalizePrivateKey(fc.GitHubApp.PrivateKey)
	c.RequestsPerHour = fc.RequestsPerHour

	return nil
}

// normalizePrivateKey unescapes PEM material that arrives through
// quoting layers (env files, YAML single-line values).
func normalizePrivateKey(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "\"") && strings.HasSuffix(trimmed, "\"") {
		trimmed = strings.TrimPrefix(trimmed, "\"")
		trimmed = strings.TrimSuffix(trimmed, "\"")
	}
	if strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'") {
		trimmed = strings.TrimPrefix(trimmed, "'")
		trimmed = strings.TrimSuffix(trimmed, "'")
	}

	trimmed = strings.ReplaceAll(trimmed, "\r\n", "\n")
	trimmed = strings.ReplaceAll(trimmed, "\r", "\n")
	if strings.Contains(trimmed, "\\n") {
		trimmed = strings.ReplaceAll(trimmed, "\\r", "")
		trimmed = strings.ReplaceAll(trimmed, "\\n", "\n")
	}

	return trimmed
}

// validate checks configuration consistency.
func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}
	if (c.GitHubAppID == "") != (c.GitHubPrivateKey == "") {
		return fmt.Errorf("github_app requires both app_id and private_key")
	}
	if c.RequestsPerHour < 0 {
		return fmt.Errorf("requests_per_hour must not be negative")
	}
	return nil
}

// getEnvInt gets environment variable as int with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
