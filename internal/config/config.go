package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	env "github.com/caarlos0/env/v11"

	"accounting/internal/log"
)

type Config struct {
	// Ledger file
	LedgerFile         string `env:"LEDGER_FILE" envDefault:"data/AccountingAutomation.xlsx"`
	LedgerStrictHeader bool   `env:"LEDGER_STRICT_HEADER" envDefault:"false"`
	LedgerHeaderBackup bool   `env:"LEDGER_HEADER_BACKUP" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Audit journal; empty disables it
	AuditDBPath string `env:"AUDIT_DB_PATH"`

	// AMQP; empty URL disables publishing
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"ledger"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_changes"`

	// Google Sheets export
	GoogleSpreadsheetID      string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `env:"GOOGLE_SHEET_NAME" envDefault:"Ledger"`
	GoogleServiceAccountJSON string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.LedgerFile) == "" {
		errors = append(errors, "ledger file path cannot be empty")
	} else if info, err := os.Stat(c.LedgerFile); err == nil && info.IsDir() {
		errors = append(errors, fmt.Sprintf("ledger file '%s' is a directory", c.LedgerFile))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.AuditDBPath != "" {
		dir := filepath.Dir(c.AuditDBPath)
		if info, err := os.Stat(dir); err == nil && !info.IsDir() {
			errors = append(errors, fmt.Sprintf("audit database directory '%s' is not a directory", dir))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if strings.TrimSpace(c.GoogleSheetName) == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// AuditEnabled reports whether change events are journaled.
func (c *Config) AuditEnabled() bool { return c.AuditDBPath != "" }

// AMQPEnabled reports whether change events are published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

// LoggerConfig builds the logger configuration. Validate must have passed.
func (c *Config) LoggerConfig() log.Config {
	lc := log.DefaultConfig()
	if level, err := log.ParseLevel(c.LogLevel); err == nil {
		lc.Level = level
	}
	lc.Format = strings.ToLower(c.LogFormat)
	return lc
}
