// Package config provides Viper-based configuration loading for the bot.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// TICTACTOE_BOT_COMMAND_PREFIX.
const EnvPrefix = "TICTACTOE"

// BotConfig holds chat-facing behaviour.
type BotConfig struct {
	// Name is the display name of the AI player.
	Name string `mapstructure:"name"`
	// CommandPrefix starts every command, e.g. "!".
	CommandPrefix string `mapstructure:"command_prefix"`
	// ReplyPolicy is "edit" or "resend".
	ReplyPolicy string `mapstructure:"reply_policy"`
	// GameExpiry cancels a game after this much inactivity.
	GameExpiry time.Duration `mapstructure:"game_expiry"`
	// DuelExpiry withdraws an unanswered challenge.
	DuelExpiry time.Duration `mapstructure:"duel_expiry"`
}

// GatewayConfig holds the telnet chat gateway settings.
type GatewayConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
func (g GatewayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// DatabaseConfig holds PostgreSQL connection settings for game history.
type DatabaseConfig struct {
	// Enabled turns on result recording and the stats leaderboard.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (m MetricsConfig) Addr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

// HealthConfig holds the gRPC health service settings.
type HealthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
func (h HealthConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.GRPCHost, h.GRPCPort)
}

// AIConfig locates the AI opponent profiles and scripts.
type AIConfig struct {
	// ProfilesDir holds *.yaml profiles. Empty means the builtin AI only.
	ProfilesDir string `mapstructure:"profiles_dir"`
	// ScriptsDir holds the Lua scripts profiles refer to.
	ScriptsDir string `mapstructure:"scripts_dir"`
	// InstructionLimit is the default per-call Lua budget.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	AI       AIConfig       `mapstructure:"ai"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateBot(c.Bot),
		validateGateway(c.Gateway),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateMetrics(c.Metrics),
		validateHealth(c.Health),
		validateAI(c.AI),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBot(b BotConfig) error {
	var errs []string
	if strings.TrimSpace(b.CommandPrefix) == "" || strings.ContainsAny(b.CommandPrefix, " \t") {
		errs = append(errs, fmt.Sprintf("bot.command_prefix must be non-empty without whitespace, got %q", b.CommandPrefix))
	}
	if b.ReplyPolicy != "edit" && b.ReplyPolicy != "resend" {
		errs = append(errs, fmt.Sprintf("bot.reply_policy must be one of [edit, resend], got %q", b.ReplyPolicy))
	}
	if b.GameExpiry <= 0 {
		errs = append(errs, "bot.game_expiry must be positive")
	}
	if b.DuelExpiry <= 0 {
		errs = append(errs, "bot.duel_expiry must be positive")
	}
	if b.Name == "" {
		errs = append(errs, "bot.name must not be empty")
	}
	return joined(errs)
}

func validateGateway(g GatewayConfig) error {
	var errs []string
	if g.Port < 1 || g.Port > 65535 {
		errs = append(errs, fmt.Sprintf("gateway.port must be 1-65535, got %d", g.Port))
	}
	if g.ReadTimeout < 0 {
		errs = append(errs, "gateway.read_timeout must not be negative")
	}
	if g.WriteTimeout < 0 {
		errs = append(errs, "gateway.write_timeout must not be negative")
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		errs = append(errs, fmt.Sprintf("database.min_conns must be 0-%d, got %d", d.MaxConns, d.MinConns))
	}
	return joined(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateMetrics(m MetricsConfig) error {
	if m.Enabled && (m.Port < 1 || m.Port > 65535) {
		return fmt.Errorf("metrics.port must be 1-65535, got %d", m.Port)
	}
	return nil
}

func validateHealth(h HealthConfig) error {
	if !h.Enabled {
		return nil
	}
	var errs []string
	if h.GRPCHost == "" {
		errs = append(errs, "health.grpc_host must not be empty")
	}
	if h.GRPCPort < 1 || h.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("health.grpc_port must be 1-65535, got %d", h.GRPCPort))
	}
	return joined(errs)
}

func validateAI(a AIConfig) error {
	if a.InstructionLimit < 0 {
		return fmt.Errorf("ai.instruction_limit must be >= 0, got %d", a.InstructionLimit)
	}
	if a.ProfilesDir != "" && a.ScriptsDir == "" {
		return errors.New("ai.scripts_dir must be set when ai.profiles_dir is")
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadDefaults builds a Config from defaults and environment overrides only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func LoadDefaults() (Config, error) {
	v := viper.New()
	bindEnv(v)
	setDefaults(v)
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.name", "TicTacToe")
	v.SetDefault("bot.command_prefix", "!")
	v.SetDefault("bot.reply_policy", "edit")
	v.SetDefault("bot.game_expiry", "5m")
	v.SetDefault("bot.duel_expiry", "1m")

	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 4000)
	v.SetDefault("gateway.read_timeout", "30m")
	v.SetDefault("gateway.write_timeout", "30s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tictactoe")
	v.SetDefault("database.password", "tictactoe")
	v.SetDefault("database.name", "tictactoe")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.host", "0.0.0.0")
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.grpc_host", "0.0.0.0")
	v.SetDefault("health.grpc_port", 50051)

	v.SetDefault("ai.profiles_dir", "")
	v.SetDefault("ai.scripts_dir", "")
	v.SetDefault("ai.instruction_limit", 100000)
}
