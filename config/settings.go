package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseSettings describes the backing store connection. For the sqlite
// driver Name is a file path; for postgres it is the database name.
type DatabaseSettings struct {
	Driver   string `mapstructure:"driver" json:"driver"`
	Host     string `mapstructure:"hostname" json:"hostname"`
	Port     int    `mapstructure:"port" json:"port"`
	User     string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"`
	Name     string `mapstructure:"database" json:"database"`
}

// APIKeys holds tokens for the auxiliary search services. Empty keys disable
// the corresponding service.
type APIKeys struct {
	Giphy   string `mapstructure:"key-giphy" json:"key-giphy"`
	OMDb    string `mapstructure:"key-omdb" json:"key-omdb"`
	Steam   string `mapstructure:"key-steam" json:"key-steam"`
	Weather string `mapstructure:"key-weather" json:"key-weather"`
	YouTube string `mapstructure:"key-youtube" json:"key-youtube"`
}

// Settings is the single process-wide configuration, loaded once at startup
// and passed by handle to every component that needs it.
type Settings struct {
	Token         string `mapstructure:"token" json:"token"`
	ShardCount    int    `mapstructure:"shard-count" json:"shard-count"`
	DefaultPrefix string `mapstructure:"prefix" json:"prefix"`

	Database DatabaseSettings `mapstructure:"db-config" json:"db-config"`
	Keys     APIKeys          `mapstructure:",squash" json:"-"`

	// Intervals are given in seconds in the config file.
	DatabaseSyncInterval int `mapstructure:"db_sync_interval" json:"db_sync_interval"`
	FeedCheckInterval    int `mapstructure:"feed_check_interval" json:"feed_check_interval"`
	FeedCheckStartDelay  int `mapstructure:"feed_check_start_delay" json:"feed_check_start_delay"`

	LogLevel  string `mapstructure:"log-level" json:"log-level"`
	LogPath   string `mapstructure:"log-path" json:"log-path"`
	LogToFile bool   `mapstructure:"log-to-file" json:"log-to-file"`
}

// Default returns the settings written out on first run, mirroring the
// values a fresh deployment starts from.
func Default() *Settings {
	return &Settings{
		Token:         "<bot token here>",
		ShardCount:    1,
		DefaultPrefix: "!",
		Database: DatabaseSettings{
			Driver: "sqlite",
			Host:   "localhost",
			Port:   5432,
			Name:   "kiosk.db",
		},
		DatabaseSyncInterval: 600,
		FeedCheckInterval:    300,
		FeedCheckStartDelay:  30,
		LogLevel:             "info",
		LogPath:              "logs/kiosk.log",
	}
}

// IsNotFound reports whether err is a missing-config-file error, so the
// caller can write out Default() and tell the operator to fill it in.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// WriteDefault writes a fresh config.json into dir for the operator to fill
// in, mirroring the first-run behavior of the original deployment.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, "config.json")
	b, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write default config: %w", err)
	}
	return path, nil
}

// Load reads config.json from dir, applies KIOSK_* environment overrides and
// validates the result. A missing file is reported so the caller can write
// out Default() and exit.
func Load(dir string) (*Settings, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)
	v.SetEnvPrefix("kiosk")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	s := Default()
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return s, nil
}

func (s *Settings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Token, validation.Required),
		validation.Field(&s.ShardCount, validation.Min(1)),
		validation.Field(&s.DefaultPrefix, validation.Required),
		validation.Field(&s.DatabaseSyncInterval, validation.Min(1)),
		validation.Field(&s.FeedCheckInterval, validation.Min(1)),
		validation.Field(&s.Database, validation.By(validateDatabase)),
	)
}

func validateDatabase(value interface{}) error {
	db, _ := value.(DatabaseSettings)
	switch db.Driver {
	case "sqlite", "":
		if strings.TrimSpace(db.Name) == "" {
			return fmt.Errorf("sqlite requires a database file path")
		}
	case "postgres":
		if db.Host == "" || db.Name == "" {
			return fmt.Errorf("postgres requires hostname and database")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", db.Driver)
	}
	return nil
}

// SyncInterval returns the database reconciliation interval as a duration.
func (s *Settings) SyncInterval() time.Duration {
	return time.Duration(s.DatabaseSyncInterval) * time.Second
}

// FeedInterval returns the periodic feed-check interval as a duration.
func (s *Settings) FeedInterval() time.Duration {
	return time.Duration(s.FeedCheckInterval) * time.Second
}

// FeedStartDelay returns the delay before the first feed check.
func (s *Settings) FeedStartDelay() time.Duration {
	return time.Duration(s.FeedCheckStartDelay) * time.Second
}
