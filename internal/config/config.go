package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Audit   AuditConfig   `yaml:"audit"`
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Logging LoggingConfig `yaml:"logging"`
}

// AuditConfig controls classification and the output workbook.
type AuditConfig struct {
	StatusColumn string   `yaml:"status_column"`
	OutputColumn string   `yaml:"output_column"`
	SheetName    string   `yaml:"sheet_name"`
	ExtraDomains []string `yaml:"extra_domains"`
	Encoding     string   `yaml:"encoding"` // Empty string detects the encoding
}

// StorageConfig holds settings for s3:// inputs and outputs.
type StorageConfig struct {
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
}

// GetAWSProfile returns the AWS profile, with environment variable override
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	// On ECS/Lambda, don't use a profile - use IAM role
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// HasStaticCredentials reports whether both halves of an access key are set.
func (c StorageConfig) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// HistoryConfig enables the Postgres run log.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	DatabaseURL string `yaml:"database_url"`
	Table       string `yaml:"table"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact returns the redaction setting, defaulting to on.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Audit.StatusColumn == "" {
		cfg.Audit.StatusColumn = "recipient_status"
	}
	if cfg.Audit.OutputColumn == "" {
		cfg.Audit.OutputColumn = "sent_to_personal_acc"
	}
	if cfg.Audit.SheetName == "" {
		cfg.Audit.SheetName = "Sheet1"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.History.Table == "" {
		cfg.History.Table = "audit_run_log"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars. A missing
// config file is not an error when path is empty or the file does not
// exist; defaults are used instead.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, err
		}
	}

	if v := os.Getenv("AUDIT_SHEET_NAME"); v != "" {
		cfg.Audit.SheetName = v
	}
	if v := os.Getenv("AUDIT_EXTRA_DOMAINS"); v != "" {
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				cfg.Audit.ExtraDomains = append(cfg.Audit.ExtraDomains, d)
			}
		}
	}
	if v := os.Getenv("AUDIT_ENCODING"); v != "" {
		cfg.Audit.Encoding = v
	}
	if v := os.Getenv("AUDIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AUDIT_REDACT_PII"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.RedactPII = &b
		}
	}
	// Storage overrides
	if v := os.Getenv("AUDIT_S3_REGION"); v != "" {
		cfg.Storage.AWSRegion = v
	}
	if v := os.Getenv("AUDIT_S3_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("AUDIT_S3_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	// History overrides
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.History.DatabaseURL = v
	}
	if v := os.Getenv("AUDIT_HISTORY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.History.Enabled = b
		}
	}

	return cfg, nil
}
