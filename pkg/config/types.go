package config

import (
	"time"

	"github.com/ghnotify/github-render-webhook/internal/models"
)

// RenderType defines the render engine to use
type RenderType string

const (
	RenderTypeHTTP RenderType = "http"
	RenderTypeCLI  RenderType = "cli"
)

// QueueMode defines how verified webhooks reach the dispatcher
type QueueMode string

const (
	QueueModeAsync  QueueMode = "async"
	QueueModeInline QueueMode = "inline"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	GitHub   GitHubConfig   `yaml:"github"`
	Notify   NotifyConfig   `yaml:"notify"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Render   RenderConfig   `yaml:"render"`
	Queue    QueueConfig    `yaml:"queue"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP intake settings
type ServerConfig struct {
	Port            int    `yaml:"port"`
	Path            string `yaml:"path"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	MaxRequestSize  int64  `yaml:"max_request_size"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// AdminConfig holds the health/metrics listener. Port 0 disables it.
type AdminConfig struct {
	Port int `yaml:"port"`
}

// GitHubConfig holds webhook authentication and the repository filter
type GitHubConfig struct {
	Secret string   `yaml:"secret"`
	Repos  []string `yaml:"repos"`
}

// NotifyConfig lists who receives rendered notifications
type NotifyConfig struct {
	Operator   *bool    `yaml:"operator"`
	OperatorID string   `yaml:"operator_id"`
	Groups     []string `yaml:"groups"`
}

// DeliveryConfig holds chat backend settings
type DeliveryConfig struct {
	Type        string `yaml:"type"` // onebot
	URL         string `yaml:"url"`
	AccessToken string `yaml:"access_token"`
	Timeout     string `yaml:"timeout"`
}

// RenderConfig holds render engine settings
type RenderConfig struct {
	Type         RenderType `yaml:"type"`
	Namespace    string     `yaml:"namespace"`
	ResourcesDir string     `yaml:"resources_dir"`
	DataDir      string     `yaml:"data_dir"`
	Timeout      string     `yaml:"timeout"`
	Debug        bool       `yaml:"debug"`
	ServiceURL   string     `yaml:"service_url"`
	RetryMax     *int       `yaml:"retry_max"`
	CLIPath      string     `yaml:"cli_path"`
	CLIArgs      []string   `yaml:"cli_args"`
}

// QueueConfig holds dispatch queue settings
type QueueConfig struct {
	Mode       QueueMode `yaml:"mode"`
	BufferSize int       `yaml:"buffer_size"`
	Workers    int       `yaml:"workers"`
	JobTimeout string    `yaml:"job_timeout"`
}

// ParseDuration converts string duration to time.Duration
func (c *Config) ParseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// NotifyOperator reports whether the operator receives notifications
func (c *Config) NotifyOperator() bool {
	return c.Notify.Operator == nil || *c.Notify.Operator
}

// RenderRetryMax returns how often the render service is retried; 2 when unset
func (c *Config) RenderRetryMax() int {
	if c.Render.RetryMax == nil {
		return 2
	}
	return *c.Render.RetryMax
}

// Destinations returns the static recipient set
func (c *Config) Destinations() models.Destinations {
	d := models.Destinations{
		Groups: append([]string(nil), c.Notify.Groups...),
	}
	if c.NotifyOperator() {
		d.Operator = c.Notify.OperatorID
	}
	return d
}

// RepoFilter returns the set of repositories to act on
func (c *Config) RepoFilter() map[string]struct{} {
	filter := make(map[string]struct{}, len(c.GitHub.Repos))
	for _, repo := range c.GitHub.Repos {
		filter[repo] = struct{}{}
	}
	return filter
}
