package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	filePrefix = "${FILE:"
	fileSuffix = "}"
)

// LoadSecretsFromFiles loads secrets from a mounted directory, one file per secret
// (<dir>/<secret-name>), and returns them keyed by file name
func LoadSecretsFromFiles(secretsDir string) (map[string]string, error) {
	secrets := make(map[string]string)

	entries, err := os.ReadDir(secretsDir)
	if os.IsNotExist(err) {
		return secrets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets directory: %w", err)
	}

	for _, entry := range entries {
		// Kubernetes projects secrets through hidden ..data symlinks
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(secretsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read secret file %s: %w", entry.Name(), err)
		}

		secrets[entry.Name()] = strings.TrimSpace(string(content))
	}

	return secrets, nil
}

// InjectSecretsIntoConfig replaces ${FILE:<secret-name>} placeholders with secret values.
// A placeholder without a matching file is an error: the literal would otherwise
// become the webhook secret.
func InjectSecretsIntoConfig(cfg *Config, secrets map[string]string) error {
	fields := map[string]*string{
		"github.secret":         &cfg.GitHub.Secret,
		"notify.operator_id":    &cfg.Notify.OperatorID,
		"delivery.access_token": &cfg.Delivery.AccessToken,
	}

	for name, field := range fields {
		resolved, err := resolveSecret(*field, secrets)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*field = resolved
	}

	return nil
}

// resolveSecret replaces ${FILE:<secret-name>} with the secret value
// If not a file reference, returns the original value
func resolveSecret(value string, secrets map[string]string) (string, error) {
	if !strings.HasPrefix(value, filePrefix) || !strings.HasSuffix(value, fileSuffix) {
		return value, nil
	}

	secretName := strings.TrimSuffix(strings.TrimPrefix(value, filePrefix), fileSuffix)
	secretValue, ok := secrets[secretName]
	if !ok {
		return "", fmt.Errorf("secret file %q not found", secretName)
	}

	return secretValue, nil
}
