package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string

	OktaStartURL string
	OktaEmail    string
	OktaPassword string
	Headless     bool

	InterDeviceDelay time.Duration
	SeedFile         string

	GithubToken    string
	GithubRepo     string
	GithubWorkflow string

	APIPort string
}

func New() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	cfg := &Config{
		DatabaseURL:      databaseURL,
		OktaStartURL:     os.Getenv("OKTA_START_URL"),
		OktaEmail:        os.Getenv("OKTA_EMAIL"),
		OktaPassword:     os.Getenv("OKTA_PASSWORD"),
		Headless:         true,
		InterDeviceDelay: 5 * time.Second,
		SeedFile:         os.Getenv("DEVICE_SEED_FILE"),
		GithubToken:      os.Getenv("GITHUB_TOKEN"),
		GithubRepo:       os.Getenv("GITHUB_REPO"),
		GithubWorkflow:   os.Getenv("GITHUB_WORKFLOW"),
		APIPort:          "8080",
	}

	var err error
	cfg.Headless, err = getEnvAsBool("HEADLESS", cfg.Headless)
	if err != nil {
		return nil, err
	}

	delaySeconds, err := getEnvAsInt("INTER_DEVICE_DELAY_SECONDS", int(cfg.InterDeviceDelay/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.InterDeviceDelay = time.Duration(delaySeconds) * time.Second

	if port := os.Getenv("API_PORT"); port != "" {
		cfg.APIPort = port
	}

	return cfg, nil
}

// ValidateScrape checks the settings the browser automation cannot run
// without. The query API does not need them, so New does not.
func (c *Config) ValidateScrape() error {
	if c.OktaStartURL == "" {
		return fmt.Errorf("OKTA_START_URL environment variable is not set")
	}
	if c.OktaEmail == "" {
		return fmt.Errorf("OKTA_EMAIL environment variable is not set")
	}
	if c.OktaPassword == "" {
		return fmt.Errorf("OKTA_PASSWORD environment variable is not set")
	}
	return nil
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: expected an integer, got '%s'", key, valueStr)
	}

	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: expected a boolean, got '%s'", key, valueStr)
	}

	return value, nil
}
