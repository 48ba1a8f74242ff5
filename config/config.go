// Package config loads the transfer settings from a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bassamadnan/mailsheet/retry"
	"github.com/bassamadnan/mailsheet/state"
)

const (
	envPrefix = "MAILSHEET"

	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type RetryConfig struct {
	MaxAttempts  int     `mapstructure:"max_attempts"`
	DelaySeconds float64 `mapstructure:"delay_seconds"`
}

// Policy converts the settings into a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		Delay:       time.Duration(r.DelaySeconds * float64(time.Second)),
	}
}

type IMAPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Folder   string `mapstructure:"folder"`
	TLS      bool   `mapstructure:"tls"`
}

type MailboxConfig struct {
	Provider   string     `mapstructure:"provider"`
	Query      string     `mapstructure:"query"`
	MaxResults int64      `mapstructure:"max_results"`
	IMAP       IMAPConfig `mapstructure:"imap"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

type WatchConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// AuthConfig holds secret locations. It is read from the environment only,
// never from the settings file.
type AuthConfig struct {
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envDefault:"credentials/credentials.json"`
	TokenFile       string `env:"GOOGLE_TOKEN_FILE" envDefault:"credentials/token.json"`
	IMAPPassword    string `env:"IMAP_PASSWORD"`
}

type Config struct {
	SpreadsheetID string        `mapstructure:"spreadsheet_id"`
	SheetName     string        `mapstructure:"sheet_name"`
	SubjectFilter string        `mapstructure:"subject_filter"`
	State         StateConfig   `mapstructure:"state"`
	Retry         RetryConfig   `mapstructure:"retry"`
	Mailbox       MailboxConfig `mapstructure:"mailbox"`
	Log           LogConfig     `mapstructure:"log"`
	Watch         WatchConfig   `mapstructure:"watch"`
	Auth          AuthConfig    `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spreadsheet_id", "")
	v.SetDefault("sheet_name", "Emails")
	v.SetDefault("subject_filter", "")
	v.SetDefault("state.backend", state.BackendJSON)
	v.SetDefault("state.path", "state/processed_emails.json")
	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.delay_seconds", retry.DefaultDelay.Seconds())
	v.SetDefault("mailbox.provider", ProviderGmail)
	v.SetDefault("mailbox.query", "is:unread")
	v.SetDefault("mailbox.max_results", 100)
	v.SetDefault("mailbox.imap.host", "")
	v.SetDefault("mailbox.imap.port", 993)
	v.SetDefault("mailbox.imap.username", "")
	v.SetDefault("mailbox.imap.folder", "INBOX")
	v.SetDefault("mailbox.imap.tls", true)
	v.SetDefault("log.file", "logs/mailsheet.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
	v.SetDefault("watch.schedule", "@every 5m")
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"spreadsheet-id": "spreadsheet_id",
	"sheet-name":     "sheet_name",
	"subject-filter": "subject_filter",
	"state-path":     "state.path",
	"log-level":      "log.level",
	"log-file":       "log.file",
}

// Load reads the settings file at path (a missing file means defaults), a
// .env file in the working directory if present, MAILSHEET_* variables, and
// any of flags that were set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "loading .env")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", name)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, errors.Wrapf(err, "reading config %s", path)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	if err := env.Parse(&cfg.Auth); err != nil {
		return nil, errors.Wrap(err, "parsing auth environment")
	}
	return cfg, nil
}

// Validate reports the first setting that would stop a run.
func (c *Config) Validate() error {
	if c.SpreadsheetID == "" {
		return errors.New("spreadsheet_id is required")
	}
	if c.SheetName == "" {
		return errors.New("sheet_name must not be empty")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.DelaySeconds < 0 {
		return errors.Errorf("retry.delay_seconds must not be negative, got %v", c.Retry.DelaySeconds)
	}
	switch c.State.Backend {
	case state.BackendJSON, state.BackendSQLite:
	default:
		return errors.Errorf("unknown state.backend %q", c.State.Backend)
	}
	switch c.Mailbox.Provider {
	case ProviderGmail:
	case ProviderIMAP:
		if c.Mailbox.IMAP.Host == "" || c.Mailbox.IMAP.Username == "" {
			return errors.New("mailbox.imap.host and mailbox.imap.username are required for the imap provider")
		}
	default:
		return errors.Errorf("unknown mailbox.provider %q", c.Mailbox.Provider)
	}
	return nil
}
