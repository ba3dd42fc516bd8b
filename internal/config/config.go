// Package config loads runtime settings from .explorer.yaml, EXPLORER_* env
// vars and command flags through viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"catalogexplorer/internal/blob"
	"catalogexplorer/internal/prefs"
)

// EnvPrefix prefixes every environment override, e.g. EXPLORER_PREFS_DRIVER.
const EnvPrefix = "EXPLORER"

// PrefsConfig selects the preference backend.
type PrefsConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// S3Config configures the s3 blob driver.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// BlobConfig selects the export artifact store.
type BlobConfig struct {
	Driver string   `mapstructure:"driver"`
	FSRoot string   `mapstructure:"fs_root"`
	S3     S3Config `mapstructure:"s3"`
}

// Config holds all runtime configuration.
type Config struct {
	Addr     string      `mapstructure:"addr"`
	Manifest string      `mapstructure:"manifest"`
	Verbose  bool        `mapstructure:"verbose"`
	Watch    bool        `mapstructure:"watch"`
	Prefs    PrefsConfig `mapstructure:"prefs"`
	Blob     BlobConfig  `mapstructure:"blob"`
}

// SetDefaults registers the built-in defaults on v. Nested keys must have a
// default for AutomaticEnv to reach them during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("manifest", "")
	v.SetDefault("verbose", false)
	v.SetDefault("watch", false)
	v.SetDefault("prefs.driver", string(prefs.DriverMemory))
	v.SetDefault("prefs.sqlite_path", "explorer.db")
	v.SetDefault("prefs.postgres_dsn", "")
	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "./exports")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
}

// BindEnv wires EXPLORER_* variables onto v, mapping "." in keys to "_".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load applies defaults and decodes v. A nil v uses the global viper.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects unknown drivers and an s3 store without a bucket.
func (c Config) Validate() error {
	switch prefs.Driver(c.Prefs.Driver) {
	case "", prefs.DriverMemory, prefs.DriverSQLite, prefs.DriverPostgres:
	default:
		return fmt.Errorf("prefs.driver: unknown driver %q", c.Prefs.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case "", blob.DriverFilesystem, blob.DriverMemory:
	case blob.DriverS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob.driver: unknown driver %q", c.Blob.Driver)
	}
	return nil
}

// PrefsOptions converts the prefs section for prefs.Open.
func (c Config) PrefsOptions() prefs.Config {
	return prefs.Config{Driver: c.Prefs.Driver, SQLitePath: c.Prefs.SQLitePath, PostgresDSN: c.Prefs.PostgresDSN}
}

// BlobOptions converts the blob section for blob.Open.
func (c Config) BlobOptions() blob.Config {
	s := c.Blob.S3
	return blob.Config{
		Driver: c.Blob.Driver,
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:          s.Bucket,
			Region:          s.Region,
			Endpoint:        s.Endpoint,
			PathStyle:       s.PathStyle,
			AccessKeyID:     s.AccessKeyID,
			SecretAccessKey: s.SecretAccessKey,
		},
	}
}
