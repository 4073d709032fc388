package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/Kellerman81/go_business_admin/logger"
	"github.com/pelletier/go-toml/v2"
)

var (
	Configfile = "./config/config.toml"
	current    atomic.Pointer[MainConfig]
)

// MainConfig is the root of config.toml.
type MainConfig struct {
	General GeneralConfig `toml:"general"`
	Tables  []TableConfig `toml:"tables"`
}

// GeneralConfig holds process wide settings.
type GeneralConfig struct {
	// WebPort is the port the admin web server listens on.
	WebPort string `toml:"webport" comment:"Port of the admin web interface"`
	// CanonicalHost, when set, redirects every request on another host to it.
	CanonicalHost string `toml:"canonical_host" comment:"Redirect requests on other hosts to this one (empty disables)"`
	// APIURL is the base URL of the REST backend.
	APIURL string `toml:"api_url" comment:"Base URL of the REST backend"`
	// APIUserAgent is sent with every backend request.
	APIUserAgent string `toml:"api_user_agent"`

	LogLevel      string `toml:"log_level" comment:"debug, info or warning"`
	LogFileSize   int    `toml:"log_file_size"`
	LogFileCount  uint8  `toml:"log_file_count"`
	LogCompress   bool   `toml:"log_compress"`
	LogColorize   bool   `toml:"log_colorize"`
	LogToFileOnly bool   `toml:"log_to_file_only"`
	LogZeroValues bool   `toml:"log_zero_values"`
	TimeFormat    string `toml:"time_format"`
	TimeZone      string `toml:"time_zone"`

	// DefaultLanguage is used when neither the session nor the browser selects one.
	DefaultLanguage string `toml:"default_language"`
	// SessionHours is the lifetime of a login session.
	SessionHours int `toml:"session_hours"`
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool `toml:"secure_cookies"`
	// PageTTLMinutes is how long an idle page view keeps its server state.
	PageTTLMinutes int `toml:"page_ttl_minutes"`
	// SweepCron schedules removal of expired sessions and page views.
	SweepCron string `toml:"sweep_cron" comment:"Cron expression with seconds field"`
	// LoginRatePerMinute limits login attempts per client address.
	LoginRatePerMinute int `toml:"login_rate_per_minute"`
	LoginBurst         int `toml:"login_burst"`
	// OptionWorkers bounds the concurrent option loaders of form modals.
	OptionWorkers int `toml:"option_workers"`
	// EnableFileWatcher reloads the file when it changes on disk. Table page
	// sizes apply to the next page view, the other settings need a restart.
	EnableFileWatcher bool `toml:"enable_file_watcher"`
}

// TableConfig overrides the page size of one management table.
type TableConfig struct {
	Name     string `toml:"name"`
	PageSize int    `toml:"page_size"`
}

// ConfigurationError reports an invalid setting.
type ConfigurationError struct {
	Type    string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Type, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Default returns the settings written for a fresh installation.
func Default() MainConfig {
	return MainConfig{
		General: GeneralConfig{
			WebPort:            "8080",
			APIURL:             "http://localhost:8000/api",
			APIUserAgent:       "go_business_admin",
			LogLevel:           "info",
			LogFileSize:        10,
			LogFileCount:       5,
			TimeFormat:         "rfc3339",
			TimeZone:           "local",
			DefaultLanguage:    "en",
			SessionHours:       12,
			PageTTLMinutes:     60,
			SweepCron:          "0 */5 * * * *",
			LoginRatePerMinute: 10,
			LoginBurst:         5,
			OptionWorkers:      4,
		},
		Tables: []TableConfig{
			{Name: "users", PageSize: 5},
			{Name: "items", PageSize: 5},
			{Name: "orders", PageSize: 5},
			{Name: "companies", PageSize: 10},
		},
	}
}

// LoadCfg loads the configuration file, writing a default one first if it is missing.
func LoadCfg() error {
	if _, err := os.Stat(Configfile); errors.Is(err, os.ErrNotExist) {
		fmt.Println("Config file not found. Creating new config file.")
		if err := WriteCfg(Default()); err != nil {
			return err
		}
	}

	return Reload()
}

// Readconfigtoml decodes the configuration file.
func Readconfigtoml() (*MainConfig, error) {
	content, err := os.Open(Configfile)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s': %w", Configfile, err)
	}
	defer content.Close()

	decoder := toml.NewDecoder(content)

	var config MainConfig
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode TOML config: %w", err)
	}

	return &config, nil
}

// WriteCfg writes cfg to Configfile.
func WriteCfg(cfg MainConfig) error {
	cnt, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(Configfile), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(Configfile, cnt, 0o644); err != nil {
		logger.Logtype(logger.StatusError, 1).
			Str("file", Configfile).
			Err(err).
			Msg("Failed to write config file")
		return err
	}
	return nil
}

// SetCfg replaces the active configuration. Mainly for tests.
func SetCfg(cfg MainConfig) {
	applyDefaults(&cfg)
	current.Store(&cfg)
}

func applyDefaults(cfg *MainConfig) {
	def := Default().General
	g := &cfg.General
	if g.WebPort == "" {
		g.WebPort = def.WebPort
	}
	if g.APIUserAgent == "" {
		g.APIUserAgent = def.APIUserAgent
	}
	if g.LogLevel == "" {
		g.LogLevel = def.LogLevel
	}
	if g.DefaultLanguage == "" {
		g.DefaultLanguage = def.DefaultLanguage
	}
	if g.SessionHours <= 0 {
		g.SessionHours = def.SessionHours
	}
	if g.PageTTLMinutes <= 0 {
		g.PageTTLMinutes = def.PageTTLMinutes
	}
	if g.SweepCron == "" {
		g.SweepCron = def.SweepCron
	}
	if g.LoginRatePerMinute <= 0 {
		g.LoginRatePerMinute = def.LoginRatePerMinute
	}
	if g.LoginBurst <= 0 {
		g.LoginBurst = def.LoginBurst
	}
	if g.OptionWorkers <= 0 {
		g.OptionWorkers = def.OptionWorkers
	}
}

// Validate checks settings that have no usable default.
func Validate(cfg *MainConfig) error {
	if cfg.General.APIURL == "" {
		return &ConfigurationError{Type: "general", Message: "api_url is required"}
	}
	for _, t := range cfg.Tables {
		if t.Name == "" {
			return &ConfigurationError{Type: "tables", Message: "table entry without name"}
		}
		if t.PageSize < 0 {
			return &ConfigurationError{Type: "tables", Message: "negative page_size for " + t.Name}
		}
	}
	return nil
}

// GetSettingsGeneral returns the active general settings.
// Before LoadCfg the defaults are returned.
func GetSettingsGeneral() *GeneralConfig {
	if cfg := current.Load(); cfg != nil {
		return &cfg.General
	}
	def := Default()
	return &def.General
}

// PageSize returns the configured page size of a table or fallback.
func PageSize(table string, fallback int) int {
	cfg := current.Load()
	if cfg == nil {
		return fallback
	}
	for _, t := range cfg.Tables {
		if t.Name == table && t.PageSize > 0 {
			return t.PageSize
		}
	}
	return fallback
}

// LoggerConfig maps the general settings to the logger configuration.
func (g *GeneralConfig) LoggerConfig() logger.Config {
	return logger.Config{
		LogLevel:      g.LogLevel,
		LogFileSize:   g.LogFileSize,
		LogFileCount:  g.LogFileCount,
		LogCompress:   g.LogCompress,
		LogColorize:   g.LogColorize,
		TimeFormat:    g.TimeFormat,
		TimeZone:      g.TimeZone,
		LogToFileOnly: g.LogToFileOnly,
		LogZeroValues: g.LogZeroValues,
	}
}
