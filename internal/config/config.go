// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds everything the service needs to run. It is built once at
// startup and passed into constructors; request-handling code never reads
// the environment directly.
type Config struct {
	AppID          string // GitHub App ID, the JWT issuer
	PrivateKey     string // PEM-encoded RSA private key of the App
	InstallationID string // installation the access tokens are scoped to
	ProjectNumber  int    // Projects V2 board number within the organization
	OrgName        string // organization that owns the project
	WebhookSecret  string // shared secret for X-Hub-Signature-256; empty disables verification
	ReprocessDays  int    // how far back the delivery sweeper looks
	LogLevel       string
	Port           string
	APIBaseURL     string // GitHub API base, overridable for tests
}

// GetEnvDefault is a convenience function for handling env vars
func GetEnvDefault(key, defVal string) string {
	val, ex := os.LookupEnv(key)
	if !ex {
		return defVal
	}
	return val
}

// Load reads and validates the configuration. Missing required variables
// are reported together so operators fix them in one pass.
func Load() (Config, error) {
	cfg := Config{
		AppID:          os.Getenv("GITHUB_APP_ID"),
		PrivateKey:     os.Getenv("GITHUB_APP_PRIVATE_KEY"),
		InstallationID: os.Getenv("GITHUB_APP_INSTALLATION_ID"),
		OrgName:        GetEnvDefault("GITHUB_ORG_NAME", "GlueOps"),
		WebhookSecret:  os.Getenv("GITHUB_WEBHOOK_SECRET"),
		LogLevel:       GetEnvDefault("LOG_LEVEL", "info"),
		Port:           GetEnvDefault("MS_PORT", "3000"),
		APIBaseURL:     GetEnvDefault("GITHUB_API_URL", "https://api.github.com"),
	}

	var missing []string
	for _, v := range []struct{ name, value string }{
		{"GITHUB_APP_ID", cfg.AppID},
		{"GITHUB_APP_PRIVATE_KEY", cfg.PrivateKey},
		{"GITHUB_APP_INSTALLATION_ID", cfg.InstallationID},
		{"GITHUB_PROJECT_ID", os.Getenv("GITHUB_PROJECT_ID")},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	projectNumber, err := strconv.Atoi(os.Getenv("GITHUB_PROJECT_ID"))
	if err != nil {
		return Config{}, fmt.Errorf("GITHUB_PROJECT_ID must be a project number: %w", err)
	}
	cfg.ProjectNumber = projectNumber

	days := GetEnvDefault("NUM_OF_DAYS_TO_REPROCESS_WEBHOOKS", "3")
	cfg.ReprocessDays, err = strconv.Atoi(days)
	if err != nil {
		return Config{}, fmt.Errorf("NUM_OF_DAYS_TO_REPROCESS_WEBHOOKS must be an integer: %w", err)
	}

	return cfg, nil
}
