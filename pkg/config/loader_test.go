package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
github:
  secret: test-secret
  repos:
    - octo/hello

notify:
  operator_id: "10001"
  groups: ["20001", "20002"]

delivery:
  url: http://127.0.0.1:5700

render:
  service_url: http://127.0.0.1:3000
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Verify defaults were applied
	if cfg.Server.Port != 59008 {
		t.Errorf("Server.Port = %d, want 59008", cfg.Server.Port)
	}
	if cfg.Server.Path != "/github-webhook" {
		t.Errorf("Server.Path = %s, want /github-webhook", cfg.Server.Path)
	}
	if cfg.Render.Type != RenderTypeHTTP {
		t.Errorf("Render.Type = %s, want http", cfg.Render.Type)
	}
	if cfg.Render.Namespace != "github" {
		t.Errorf("Render.Namespace = %s, want github", cfg.Render.Namespace)
	}
	if cfg.Queue.Mode != QueueModeAsync {
		t.Errorf("Queue.Mode = %s, want async", cfg.Queue.Mode)
	}

	if !cfg.NotifyOperator() {
		t.Error("NotifyOperator() = false, want true by default")
	}
	if cfg.RenderRetryMax() != 2 {
		t.Errorf("RenderRetryMax() = %d, want 2 by default", cfg.RenderRetryMax())
	}

	dest := cfg.Destinations()
	if dest.Operator != "10001" {
		t.Errorf("Destinations().Operator = %s, want 10001", dest.Operator)
	}
	if len(dest.Groups) != 2 || dest.Groups[0] != "20001" || dest.Groups[1] != "20002" {
		t.Errorf("Destinations().Groups = %v, want [20001 20002]", dest.Groups)
	}

	if _, ok := cfg.RepoFilter()["octo/hello"]; !ok {
		t.Error("RepoFilter() missing octo/hello")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_SECRET", "my-webhook-secret")

	configPath := writeConfig(t, `
github:
  secret: ${TEST_WEBHOOK_SECRET}
  repos: [octo/hello]
notify:
  operator: false
render:
  type: cli
delivery:
  access_token: ${FILE:onebot_token}
`)

	cfg, err := parse(configPath)
	if err != nil {
		t.Fatalf("parse() failed: %v", err)
	}

	if cfg.GitHub.Secret != "my-webhook-secret" {
		t.Errorf("GitHub.Secret = %s, want my-webhook-secret", cfg.GitHub.Secret)
	}

	// File placeholders must survive env expansion for secret injection
	if cfg.Delivery.AccessToken != "${FILE:onebot_token}" {
		t.Errorf("Delivery.AccessToken = %s, want ${FILE:onebot_token}", cfg.Delivery.AccessToken)
	}
}

func TestLoad_RetriesDisabled(t *testing.T) {
	configPath := writeConfig(t, `
github:
  secret: test-secret
  repos: [octo/hello]
notify:
  operator: false
render:
  service_url: http://127.0.0.1:3000
  retry_max: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.RenderRetryMax() != 0 {
		t.Errorf("RenderRetryMax() = %d, want 0", cfg.RenderRetryMax())
	}
}

func TestInjectSecretsIntoConfig(t *testing.T) {
	secretsDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(secretsDir, "webhook_secret"), []byte("from-file\n"), 0600); err != nil {
		t.Fatalf("Failed to write secret: %v", err)
	}

	secrets, err := LoadSecretsFromFiles(secretsDir)
	if err != nil {
		t.Fatalf("LoadSecretsFromFiles() failed: %v", err)
	}

	cfg := &Config{
		GitHub:   GitHubConfig{Secret: "${FILE:webhook_secret}"},
		Delivery: DeliveryConfig{AccessToken: "plain-token"},
	}
	if err := InjectSecretsIntoConfig(cfg, secrets); err != nil {
		t.Fatalf("InjectSecretsIntoConfig() failed: %v", err)
	}

	if cfg.GitHub.Secret != "from-file" {
		t.Errorf("GitHub.Secret = %q, want from-file", cfg.GitHub.Secret)
	}
	if cfg.Delivery.AccessToken != "plain-token" {
		t.Errorf("Delivery.AccessToken = %q, want plain-token", cfg.Delivery.AccessToken)
	}

	missing := &Config{GitHub: GitHubConfig{Secret: "${FILE:nope}"}}
	if err := InjectSecretsIntoConfig(missing, secrets); err == nil {
		t.Error("InjectSecretsIntoConfig() with missing secret file should fail")
	}
}

func TestLoadSecretsFromFiles_MissingDir(t *testing.T) {
	secrets, err := LoadSecretsFromFiles(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("LoadSecretsFromFiles() error = %v, want nil", err)
	}
	if len(secrets) != 0 {
		t.Errorf("len(secrets) = %d, want 0", len(secrets))
	}
}

func TestEnvConfig_Apply(t *testing.T) {
	cfg := &Config{}
	env := &EnvConfig{Port: 9000, LogLevel: "debug", WebDebug: true}

	env.Apply(cfg)

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if !cfg.Render.Debug {
		t.Error("Render.Debug = false, want true")
	}
}

func TestValidate(t *testing.T) {
	disabled := false

	valid := func() *Config {
		return &Config{
			GitHub:   GitHubConfig{Secret: "secret", Repos: []string{"octo/hello"}},
			Notify:   NotifyConfig{OperatorID: "10001", Groups: []string{"20001"}},
			Delivery: DeliveryConfig{URL: "http://127.0.0.1:5700"},
			Render:   RenderConfig{ServiceURL: "http://127.0.0.1:3000"},
		}
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:        "missing secret",
			mutate:      func(c *Config) { c.GitHub.Secret = "" },
			wantErr:     true,
			errContains: "github.secret is required",
		},
		{
			name:        "no repositories",
			mutate:      func(c *Config) { c.GitHub.Repos = nil },
			wantErr:     true,
			errContains: "at least one repository",
		},
		{
			name:        "repository without owner",
			mutate:      func(c *Config) { c.GitHub.Repos = []string{"hello"} },
			wantErr:     true,
			errContains: "not an owner/name",
		},
		{
			name:        "duplicate repositories",
			mutate:      func(c *Config) { c.GitHub.Repos = []string{"octo/hello", "octo/hello"} },
			wantErr:     true,
			errContains: "duplicate repository",
		},
		{
			name:        "operator enabled without id",
			mutate:      func(c *Config) { c.Notify.OperatorID = "" },
			wantErr:     true,
			errContains: "notify.operator_id is required",
		},
		{
			name: "operator disabled without id",
			mutate: func(c *Config) {
				c.Notify.Operator = &disabled
				c.Notify.OperatorID = ""
			},
			wantErr: false,
		},
		{
			name:        "destinations without delivery url",
			mutate:      func(c *Config) { c.Delivery.URL = "" },
			wantErr:     true,
			errContains: "delivery.url is required",
		},
		{
			name: "no destinations and no delivery url",
			mutate: func(c *Config) {
				c.Notify = NotifyConfig{Operator: &disabled}
				c.Delivery.URL = ""
			},
			wantErr: false,
		},
		{
			name:        "http render without service url",
			mutate:      func(c *Config) { c.Render.ServiceURL = "" },
			wantErr:     true,
			errContains: "render.service_url is required",
		},
		{
			name: "negative render retries",
			mutate: func(c *Config) {
				n := -1
				c.Render.RetryMax = &n
			},
			wantErr:     true,
			errContains: "render.retry_max must not be negative",
		},
		{
			name:        "invalid render type",
			mutate:      func(c *Config) { c.Render.Type = RenderType("pdf") },
			wantErr:     true,
			errContains: "render.type must be",
		},
		{
			name:        "invalid queue mode",
			mutate:      func(c *Config) { c.Queue.Mode = QueueMode("later") },
			wantErr:     true,
			errContains: "queue.mode must be",
		},
		{
			name:        "invalid render timeout",
			mutate:      func(c *Config) { c.Render.Timeout = "soon" },
			wantErr:     true,
			errContains: "invalid render.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			cfg.applyDefaults()

			err := cfg.Validate()

			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if err != nil && tt.errContains != "" {
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Validate() error = %v, want error containing %v", err, tt.errContains)
				}
			}
		})
	}
}
