package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	brunt "github.com/tj-smith47/brunt-go"
)

const (
	configDir  = ".config/brunt"
	configName = "config"
	configType = "toml"
	envPrefix  = "BRUNT"

	keyConfig      = "config"
	keyUsername    = "username"
	keyPassword    = "password"
	keySessionFile = "session-file"
	keyLogLevel    = "log-level"
	keyRate        = "rate"
	keyTimeout     = "timeout"
	keyAccountHost = "account-host"
	keyThingsHost  = "things-host"
)

// settings is the resolved configuration of one command run. Flags win over
// environment, environment over the config file.
type settings struct {
	Username    string
	Password    string
	SessionFile string
	LogLevel    string
	Rate        float64
	Timeout     time.Duration
	AccountHost string
	ThingsHost  string
}

func loadSettings(cmd *cobra.Command) (*settings, *viper.Viper, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg := viper.New()
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	cfg.SetDefault(keySessionFile, filepath.Join(homeDir, configDir, "session.toml"))
	cfg.SetDefault(keyLogLevel, "warn")

	if err := cfg.BindPFlags(cmd.Flags()); err != nil {
		return nil, nil, fmt.Errorf("bind flags: %w", err)
	}

	if path := cfg.GetString(keyConfig); path != "" {
		cfg.SetConfigFile(path)
	} else {
		cfg.SetConfigName(configName)
		cfg.SetConfigType(configType)
		cfg.AddConfigPath(filepath.Join(homeDir, configDir))
	}
	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, nil, fmt.Errorf("read config file: %w", err)
		}
	}

	s := &settings{
		Username:    cfg.GetString(keyUsername),
		Password:    cfg.GetString(keyPassword),
		SessionFile: cfg.GetString(keySessionFile),
		LogLevel:    cfg.GetString(keyLogLevel),
		Rate:        cfg.GetFloat64(keyRate),
		Timeout:     cfg.GetDuration(keyTimeout),
		AccountHost: cfg.GetString(keyAccountHost),
		ThingsHost:  cfg.GetString(keyThingsHost),
	}
	return s, cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func newLogger(cmd *cobra.Command, s *settings) (*slog.Logger, error) {
	level, err := parseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})), nil
}

// wireClient builds a Brunt client from the command's settings.
func wireClient(cmd *cobra.Command) (*brunt.Client, *viper.Viper, *slog.Logger, error) {
	s, cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cmd, s)
	if err != nil {
		return nil, nil, nil, err
	}
	if s.Username == "" || s.Password == "" {
		return nil, nil, nil, fmt.Errorf("%w: set --username/--password, BRUNT_USERNAME/BRUNT_PASSWORD or the config file", brunt.ErrCredentialsMissing)
	}

	opts := []brunt.Option{
		brunt.WithCredentials(s.Username, s.Password),
		brunt.WithLogger(logger),
	}
	if s.SessionFile != "" {
		opts = append(opts, brunt.WithSessionStore(brunt.NewFileSessionStore(s.SessionFile)))
	}
	if s.Rate > 0 {
		opts = append(opts, brunt.WithRateLimit(rate.Limit(s.Rate), 1))
	}
	if s.Timeout > 0 {
		opts = append(opts, brunt.WithTimeout(s.Timeout))
	}
	if s.AccountHost != "" {
		opts = append(opts, brunt.WithAccountHost(s.AccountHost))
	}
	if s.ThingsHost != "" {
		opts = append(opts, brunt.WithThingsHost(s.ThingsHost))
	}

	client, err := brunt.NewClient(opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create client: %w", err)
	}
	return client, cfg, logger, nil
}
