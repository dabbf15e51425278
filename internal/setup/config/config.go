// Package config loads the application configuration from TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrUnknownBackend        = errors.New("unknown storage backend")
)

// CurrentVersion of the config file.
const CurrentVersion = 1

// Storage backend names accepted in the config file.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version     int         `koanf:"version"`
	Debug       Debug       `koanf:"debug"`
	Retry       Retry       `koanf:"retry"`
	Storage     Storage     `koanf:"storage"`
	PostgreSQL  PostgreSQL  `koanf:"postgresql"`
	Redis       Redis       `koanf:"redis"`
	Punishments Punishments `koanf:"punishments"`
	Reports     Reports     `koanf:"reports"`
	Appeals     Appeals     `koanf:"appeals"`
	Sweeper     Sweeper     `koanf:"sweeper"`
	Messages    Messages    `koanf:"messages"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log files to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
}

// Retry contains database retry configuration.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// Storage selects and configures the record store backend.
type Storage struct {
	// Backend is either "file" or "postgres".
	Backend string `koanf:"backend"`
	// Directory for the flat-file backend's JSON files.
	DataDir string `koanf:"data_dir"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration. When disabled, cooldown
// tracking falls back to in-process memory.
type Redis struct {
	// Enable Redis-backed cooldown tracking.
	Enabled bool `koanf:"enabled"`
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Punishments configures the escalation engine.
type Punishments struct {
	// Highest escalation level with its own duration; repeat offenses
	// beyond it reuse the last configured duration.
	MaxLevel int `koanf:"max_level"`
	// Count revoked punishments when computing the next level.
	CountRevoked bool `koanf:"count_revoked"`
	// Fallback duration in minutes when no ladder entry matches.
	DefaultDurationMinutes int `koanf:"default_duration_minutes"`
	// Known reasons per punishment type, keyed by lowercase type name.
	Reasons map[string][]string `koanf:"reasons"`
	// Duration ladders in minutes, keyed by lowercase type name then
	// lowercase reason. Index i holds the duration for level i+1; -1
	// means permanent, 0 means instantaneous.
	Durations map[string]map[string][]int `koanf:"durations"`
}

// Reports configures player report handling.
type Reports struct {
	// Seconds a reporter must wait between reports.
	CooldownSeconds int `koanf:"cooldown_seconds"`
	// Days to keep processed reports before the sweeper purges them.
	// Negative disables the purge; zero applies the default.
	DaysToKeep int `koanf:"days_to_keep"`
}

// Appeals configures punishment appeal handling.
type Appeals struct {
	// Maximum appeals a player may submit per rolling 24 hours.
	MaxPerDay int `koanf:"max_per_day"`
}

// Sweeper configures the background expiry worker.
type Sweeper struct {
	// Seconds between sweep passes.
	IntervalSeconds int `koanf:"interval_seconds"`
}

// Messages holds player-facing notification templates. Placeholders of
// the form {reason}, {duration}, {issuer}, {id} are substituted at
// delivery time.
type Messages struct {
	Warned       string `koanf:"warned"`
	Muted        string `koanf:"muted"`
	Kicked       string `koanf:"kicked"`
	Banned       string `koanf:"banned"`
	MuteExpired  string `koanf:"mute_expired"`
	BanRevoked   string `koanf:"ban_revoked"`
	MuteRevoked  string `koanf:"mute_revoked"`
	ReportFiled  string `koanf:"report_filed"`
	AppealFiled  string `koanf:"appeal_filed"`
	AppealResult string `koanf:"appeal_result"`
}

// LoadConfig loads the configuration from tribunal.toml.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".tribunal",
		homeDir + "/.tribunal/config",
		"/etc/tribunal/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := fmt.Sprintf("%s/tribunal.toml", path)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: tribunal.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version); err != nil {
		return nil, "", err
	}

	config.applyDefaults()

	if config.Storage.Backend != BackendFile && config.Storage.Backend != BackendPostgres {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, config.Storage.Backend)
	}

	return &config, usedConfigPath, nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current int) error {
	if current == 0 {
		return fmt.Errorf("%w: tribunal.toml", ErrConfigVersionMissing)
	}

	if current != CurrentVersion {
		return fmt.Errorf("%w: tribunal.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, current, CurrentVersion)
	}

	return nil
}

// applyDefaults fills in unset fields so a minimal config file still
// yields a working system.
func (c *Config) applyDefaults() {
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}

	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}

	if c.Punishments.MaxLevel == 0 {
		c.Punishments.MaxLevel = 3
	}

	if c.Punishments.DefaultDurationMinutes == 0 {
		c.Punishments.DefaultDurationMinutes = 60
	}

	if c.Punishments.Reasons == nil {
		c.Punishments.Reasons = DefaultReasons()
	}

	if c.Punishments.Durations == nil {
		c.Punishments.Durations = DefaultDurations()
	}

	if c.Reports.CooldownSeconds == 0 {
		c.Reports.CooldownSeconds = 300
	}

	if c.Reports.DaysToKeep == 0 {
		c.Reports.DaysToKeep = 30
	}

	if c.Appeals.MaxPerDay == 0 {
		c.Appeals.MaxPerDay = 3
	}

	if c.Sweeper.IntervalSeconds == 0 {
		c.Sweeper.IntervalSeconds = 60
	}

	c.Messages.applyDefaults()
}

func (m *Messages) applyDefaults() {
	defaults := map[*string]string{
		&m.Warned:       "You have been warned for {reason} ({duration})",
		&m.Muted:        "You have been muted for {reason} ({duration})",
		&m.Kicked:       "You have been kicked for {reason}",
		&m.Banned:       "You have been banned for {reason} ({duration})",
		&m.MuteExpired:  "Your mute has expired",
		&m.BanRevoked:   "Your ban #{id} has been revoked",
		&m.MuteRevoked:  "Your mute #{id} has been revoked",
		&m.ReportFiled:  "Your report has been filed",
		&m.AppealFiled:  "Your appeal for punishment #{id} has been filed",
		&m.AppealResult: "Your appeal for punishment #{id} was {result}",
	}
	for field, value := range defaults {
		if *field == "" {
			*field = value
		}
	}
}

// DefaultReasons returns the built-in reason catalog per punishment type.
func DefaultReasons() map[string][]string {
	return map[string][]string{
		"warn": {"spam", "caps", "advertising"},
		"mute": {"toxicity", "harassment", "slurs"},
		"kick": {"afk abuse", "inappropriate name"},
		"ban":  {"cheating", "griefing", "ban evasion"},
	}
}

// DefaultDurations returns the built-in escalation ladders in minutes.
// Index i holds the duration for level i+1; -1 is permanent, 0 applies
// instantaneously with no lasting effect window.
func DefaultDurations() map[string]map[string][]int {
	return map[string]map[string][]int{
		"warn": {
			"spam":        {30, 60, 90},
			"caps":        {30, 60, 90},
			"advertising": {30, 60, 90},
		},
		"mute": {
			"toxicity":   {120, 240, 360},
			"harassment": {120, 240, 360},
			"slurs":      {240, 480, 720},
		},
		"kick": {
			"afk abuse":          {0, 0, 0},
			"inappropriate name": {0, 0, 0},
		},
		"ban": {
			"cheating":    {1440, 7200, -1},
			"griefing":    {1440, 7200, -1},
			"ban evasion": {-1, -1, -1},
		},
	}
}

// NormalizeKey lowercases a type or reason for catalog lookups.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
