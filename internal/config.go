package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/zennote/internal/persist"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Storage     StorageConfig     `yaml:"storage"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Auth        AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Persistence.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level    `yaml:"log_level"`
	LogFile  LogFileConfig `yaml:"log_file"`
	HTTP     HTTPConfig    `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.LogFile.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogFileConfig enables a rotating JSON log file next to stdout logging.
// An empty Path disables it.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Validate validates the log file configuration.
func (c *LogFileConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxSizeMB, validation.Min(0)),
		validation.Field(&c.MaxBackups, validation.Min(0)),
		validation.Field(&c.MaxAgeDays, validation.Min(0)),
	)
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects the durable key-value backend.
//
// Path is the data directory for "fs" and the database file for "sqlite".
// ImagesDir holds uploaded images; empty disables uploads.
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	ImagesDir string `yaml:"images_dir"`
	Watch     bool   `yaml:"watch"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverFS, DriverSQLite, DriverMemory)),
		validation.Field(&c.Path, validation.When(c.Driver != DriverMemory, validation.Required)),
	)
}

// PersistenceConfig controls debounced writes.
type PersistenceConfig struct {
	DebounceDelay time.Duration `yaml:"debounce_delay"`
	// FlushOnExit writes pending collections during shutdown instead of
	// dropping them.
	FlushOnExit bool `yaml:"flush_on_exit"`
	// TagsEventThrottle bounds how often tags.updated reaches SSE clients.
	TagsEventThrottle time.Duration `yaml:"tags_event_throttle"`
}

// Validate validates the persistence configuration.
func (c *PersistenceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DebounceDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.TagsEventThrottle, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			LogFile: LogFileConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				MaxAgeDays: 28,
			},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Driver:    DriverFS,
			Path:      "./data",
			ImagesDir: "./data/images",
			Watch:     true,
		},
		Persistence: PersistenceConfig{
			DebounceDelay:     persist.DefaultDelay,
			TagsEventThrottle: time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
