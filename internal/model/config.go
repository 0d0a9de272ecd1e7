package model

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// IMAPConfig holds the mailbox connection settings.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`

	// Security is "ssl" (implicit TLS) or "starttls".
	Security string `mapstructure:"security" yaml:"security"`

	Username string `mapstructure:"username" yaml:"username"`

	// Password may be empty, in which case it is looked up in the OS
	// keyring under the username.
	Password string `mapstructure:"password" yaml:"password"`

	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`
}

// ScanConfig holds the scan-cycle settings.
type ScanConfig struct {
	// WindowDays bounds the search to mails received in the last N days.
	WindowDays int `mapstructure:"window_days" yaml:"window_days"`

	// UnseenOnly restricts the search to messages without a \Seen flag.
	UnseenOnly bool `mapstructure:"unseen_only" yaml:"unseen_only"`

	// IntervalMinutes is the periodic scan interval.
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"`

	// MaxMatches caps the recent-match cache.
	MaxMatches int `mapstructure:"max_matches" yaml:"max_matches"`
}

// ForwardConfig holds the outbound webhook settings. An empty URL disables
// forwarding.
type ForwardConfig struct {
	URL string `mapstructure:"url" yaml:"url"`

	// Data is merged verbatim into every forwarded payload.
	Data map[string]string `mapstructure:"data" yaml:"data"`
}

// AppConfig is the top-level configuration.
type AppConfig struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Scan    ScanConfig    `mapstructure:"scan" yaml:"scan"`
	Forward ForwardConfig `mapstructure:"forward" yaml:"forward"`

	// StateDB is the path of the SQLite state database.
	StateDB string `mapstructure:"state_db" yaml:"state_db"`

	// RulesFile optionally points at a separate YAML file with a top-level
	// "vendors" list. When set it takes precedence over inline Vendors.
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`

	// Vendors is the inline vendor rule list.
	Vendors []VendorRule `mapstructure:"vendors" yaml:"vendors"`
}

// Interval returns the scan interval as a duration.
func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.Scan.IntervalMinutes) * time.Minute
}

// AccountID identifies this mailbox configuration for state keying, so
// multiple configured mailboxes do not collide in the state database.
func (c *AppConfig) AccountID() string {
	return fmt.Sprintf("%s@%s/%s", c.IMAP.Username, c.IMAP.Host, c.IMAP.Mailbox)
}

// Validate checks the fields that have no usable default.
func (c *AppConfig) Validate() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	switch c.IMAP.Security {
	case "ssl", "starttls":
	default:
		return fmt.Errorf("imap.security must be \"ssl\" or \"starttls\", got %q", c.IMAP.Security)
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/trackit/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "trackit", "config.yaml")
}

// defaultStateDBPath returns ~/.config/trackit/trackit.db.
func defaultStateDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "trackit.db")
	}
	return filepath.Join(home, ".config", "trackit", "trackit.db")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.security", "ssl")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("scan.window_days", 14)
	v.SetDefault("scan.unseen_only", true)
	v.SetDefault("scan.interval_minutes", 10)
	v.SetDefault("scan.max_matches", 20)
	v.SetDefault("state_db", defaultStateDBPath())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(configDecodeHook())); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// LoadVendorRules returns the compiled vendor rules for a configuration,
// reading the rules file when one is configured and falling back to the
// inline vendor list. Rules with no regex can never match and are dropped;
// droppedNames reports them so the caller can log loudly.
func LoadVendorRules(cfg *AppConfig) (rules []VendorRule, droppedNames []string, err error) {
	raw := cfg.Vendors
	if cfg.RulesFile != "" {
		raw, err = readRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, r := range raw {
		if len(r.Regex) == 0 {
			droppedNames = append(droppedNames, r.Name)
			continue
		}
		if err := r.Compile(); err != nil {
			return nil, nil, err
		}
		rules = append(rules, r)
	}

	return rules, droppedNames, nil
}

// readRulesFile loads a standalone vendor rules file with a top-level
// "vendors" list.
func readRulesFile(path string) ([]VendorRule, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}

	var out struct {
		Vendors []VendorRule `mapstructure:"vendors"`
	}
	if err := v.Unmarshal(&out, viper.DecodeHook(configDecodeHook())); err != nil {
		return nil, fmt.Errorf("parsing rules file %s: %w", path, err)
	}

	return out.Vendors, nil
}

// configDecodeHook lets scalar values stand in for one-element string
// lists, so "from_filter: @dhl.de" and "regex: JJD\\d+" both work without
// YAML list syntax.
func configDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		if to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
			return data, nil
		}
		return []string{data.(string)}, nil
	}
}
