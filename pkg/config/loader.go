package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration file named by the environment, resolves
// file-backed secrets and applies environment overrides
func LoadConfig() (*Config, error) {
	env := LoadFromEnv()

	cfg, err := parse(env.ConfigFile)
	if err != nil {
		return nil, err
	}

	secrets, err := LoadSecretsFromFiles(env.SecretsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}
	if err := InjectSecretsIntoConfig(cfg, secrets); err != nil {
		return nil, fmt.Errorf("failed to inject secrets: %w", err)
	}

	env.Apply(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Load reads and parses the YAML configuration file
func Load(filename string) (*Config, error) {
	cfg, err := parse(filename)
	if err != nil {
		return nil, err
	}

	// Apply defaults
	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parse(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the config, leaving ${FILE:...} for secret injection
	expanded := os.Expand(string(data), func(key string) string {
		if strings.HasPrefix(key, "FILE:") {
			return "${" + key + "}"
		}
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 59008
	}
	if c.Server.Path == "" {
		c.Server.Path = "/github-webhook"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "30s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "30s"
	}
	if c.Server.MaxRequestSize == 0 {
		c.Server.MaxRequestSize = 25 * 1024 * 1024 // GitHub caps payloads at 25MB
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "30s"
	}

	// Delivery defaults
	if c.Delivery.Type == "" {
		c.Delivery.Type = "onebot"
	}
	if c.Delivery.Timeout == "" {
		c.Delivery.Timeout = "10s"
	}

	// Render defaults
	if c.Render.Type == "" {
		c.Render.Type = RenderTypeHTTP
	}
	if c.Render.Namespace == "" {
		c.Render.Namespace = "github"
	}
	if c.Render.ResourcesDir == "" {
		c.Render.ResourcesDir = "./resources"
	}
	if c.Render.DataDir == "" {
		c.Render.DataDir = "./data"
	}
	if c.Render.Timeout == "" {
		c.Render.Timeout = "60s"
	}
	if c.Render.CLIPath == "" {
		c.Render.CLIPath = "/usr/local/bin/wkhtmltoimage"
	}

	// Queue defaults
	if c.Queue.Mode == "" {
		c.Queue.Mode = QueueModeAsync
	}
	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.JobTimeout == "" {
		c.Queue.JobTimeout = "2m"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks the configuration for required fields and valid values
func (c *Config) Validate() error {
	// An empty secret would accept any signature computed with an empty key
	if c.GitHub.Secret == "" {
		return fmt.Errorf("github.secret is required")
	}

	if len(c.GitHub.Repos) == 0 {
		return fmt.Errorf("at least one repository must be configured in github.repos")
	}

	repoNames := make(map[string]bool)
	for i, repo := range c.GitHub.Repos {
		if repo == "" {
			return fmt.Errorf("github.repos[%d]: name is required", i)
		}
		if !strings.Contains(repo, "/") {
			return fmt.Errorf("github.repos[%d]: %q is not an owner/name full name", i, repo)
		}
		if repoNames[repo] {
			return fmt.Errorf("duplicate repository: %s", repo)
		}
		repoNames[repo] = true
	}

	if c.NotifyOperator() && c.Notify.OperatorID == "" {
		return fmt.Errorf("notify.operator_id is required when notify.operator is enabled")
	}

	for i, group := range c.Notify.Groups {
		if group == "" {
			return fmt.Errorf("notify.groups[%d]: group id is required", i)
		}
	}

	if err := c.validateDelivery(); err != nil {
		return err
	}

	if err := c.validateRender(); err != nil {
		return err
	}

	if c.Queue.Mode != QueueModeAsync && c.Queue.Mode != QueueModeInline {
		return fmt.Errorf("queue.mode must be 'async' or 'inline', got: %s", c.Queue.Mode)
	}
	if c.Queue.Mode == QueueModeAsync && (c.Queue.Workers < 1 || c.Queue.BufferSize < 1) {
		return fmt.Errorf("queue.workers and queue.buffer_size must be positive in async mode")
	}

	// Validate duration strings
	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"delivery.timeout":        c.Delivery.Timeout,
		"render.timeout":          c.Render.Timeout,
		"queue.job_timeout":       c.Queue.JobTimeout,
	}

	for name, value := range durations {
		if _, err := c.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	return nil
}

func (c *Config) validateDelivery() error {
	if c.Delivery.Type != "onebot" {
		return fmt.Errorf("invalid delivery type '%s', must be: onebot", c.Delivery.Type)
	}

	if c.Destinations().Count() > 0 && c.Delivery.URL == "" {
		return fmt.Errorf("delivery.url is required when destinations are configured")
	}

	return nil
}

func (c *Config) validateRender() error {
	switch c.Render.Type {
	case RenderTypeHTTP:
		if c.Render.ServiceURL == "" {
			return fmt.Errorf("render.service_url is required when render.type is 'http'")
		}
	case RenderTypeCLI:
		if c.Render.CLIPath == "" {
			return fmt.Errorf("render.cli_path is required when render.type is 'cli'")
		}
	default:
		return fmt.Errorf("render.type must be 'http' or 'cli', got: %s", c.Render.Type)
	}

	if c.RenderRetryMax() < 0 {
		return fmt.Errorf("render.retry_max must not be negative")
	}

	return nil
}
