package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/launchgrid/internal/catalog"
	"github.com/starford/launchgrid/internal/launcher"
	"github.com/starford/launchgrid/internal/watcher"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Grid    GridConfig        `yaml:"grid"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Watcher WatcherConfig     `yaml:"watcher"`
	Persist PersistConfig     `yaml:"persist"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Backup  BackupConfig      `yaml:"backup"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []interface{ Validate() error }{
		&c.App, &c.Grid, &c.Catalog, &c.Watcher, &c.Persist, &c.SQLite, &c.Backup, &c.Auth,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
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

// GridConfig holds the launcher grid dimensions.
type GridConfig struct {
	Columns int `yaml:"columns"`
	Rows    int `yaml:"rows"`
}

// Validate validates the grid configuration.
func (c *GridConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Columns, validation.Required,
			validation.Min(launcher.MinColumns), validation.Max(launcher.MaxColumns)),
		validation.Field(&c.Rows, validation.Required,
			validation.Min(launcher.MinRows), validation.Max(launcher.MaxRows)),
	)
}

// CatalogConfig lists the application roots to scan.
type CatalogConfig struct {
	Roots        []string `yaml:"roots"`
	BundleSuffix string   `yaml:"bundle_suffix"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	if c.BundleSuffix == "" {
		c.BundleSuffix = catalog.DefaultBundleSuffix
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Roots, validation.Required, validation.Each(validation.Required)),
		validation.Field(&c.BundleSuffix, validation.By(func(any) error {
			if !strings.HasPrefix(c.BundleSuffix, ".") {
				return errors.New("must start with a dot")
			}
			return nil
		})),
	)
}

// ExpandedRoots returns the roots with a leading "~" replaced by the home directory.
func (c *CatalogConfig) ExpandedRoots() []string {
	home, _ := os.UserHomeDir()
	out := make([]string, 0, len(c.Roots))
	for _, r := range c.Roots {
		if home != "" && (r == "~" || strings.HasPrefix(r, "~/")) {
			r = filepath.Join(home, strings.TrimPrefix(r, "~"))
		}
		out = append(out, r)
	}
	return out
}

// WatcherConfig controls the change pipeline.
type WatcherConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Debounce            time.Duration `yaml:"debounce"`
	FullRescanThreshold int           `yaml:"full_rescan_threshold"`
}

// Validate validates the watcher configuration.
func (c *WatcherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.FullRescanThreshold, validation.Min(0)),
	)
}

// PersistConfig controls debounced saving and drag settling.
type PersistConfig struct {
	Debounce    time.Duration `yaml:"debounce"`
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// Validate validates the persistence configuration.
func (c *PersistConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.SettleDelay, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// BackupConfig holds the directory for exported layouts and settings.
type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
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
	// Normalise empty mode to "disabled".
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
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Grid: GridConfig{
			Columns: launcher.DefaultColumns,
			Rows:    launcher.DefaultRows,
		},
		Catalog: CatalogConfig{
			Roots: []string{
				"/Applications",
				"~/Applications",
				"/System/Applications",
				"/System/Cryptexes/App/System/Applications",
			},
			BundleSuffix: catalog.DefaultBundleSuffix,
		},
		Watcher: WatcherConfig{
			Enabled:             true,
			Debounce:            watcher.DefaultDebounce,
			FullRescanThreshold: watcher.DefaultThreshold,
		},
		Persist: PersistConfig{
			Debounce:    500 * time.Millisecond,
			SettleDelay: 500 * time.Millisecond,
		},
		SQLite: SQLiteConfig{
			Path: "./launchgrid.db",
		},
		Backup: BackupConfig{
			Dir: "./backups",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
