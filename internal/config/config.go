// Package config loads blockcfg settings from an optional blockcfg.yaml,
// BLOCKCFG_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable. The dot in a key becomes
// an underscore: "icons.source_dir" is BLOCKCFG_ICONS_SOURCE_DIR.
const EnvPrefix = "BLOCKCFG"

// Config holds every setting.
type Config struct {
	DB                 string        `mapstructure:"db"`
	Namespace          string        `mapstructure:"namespace"`
	Icons              IconsConfig   `mapstructure:"icons"`
	AlwaysShowDropdown bool          `mapstructure:"always_show_dropdown"`
	ElementCacheTTL    time.Duration `mapstructure:"element_cache_ttl"`
}

// IconsConfig locates block type icons and where generated copies go.
type IconsConfig struct {
	SourceDir string `mapstructure:"source_dir"`
	OutputDir string `mapstructure:"output_dir"`
	BaseURL   string `mapstructure:"base_url"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		DB:        "blockcfg.db",
		Namespace: "neo",
		Icons: IconsConfig{
			SourceDir: "icons",
			OutputDir: "public",
			BaseURL:   "/",
		},
		ElementCacheTTL: 5 * time.Minute,
	}
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file. Empty means blockcfg.yaml in the
	// working directory, if present.
	File string
	// Flags are bound by key name. Only flags the user set override.
	Flags *pflag.FlagSet
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("blockcfg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindKeys(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.Flags != nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable zero value.
func (c *Config) Validate() error {
	if c.DB == "" {
		return errors.New("config: db is required")
	}
	if c.Namespace == "" || strings.Contains(c.Namespace, ".") {
		return fmt.Errorf("config: invalid namespace %q", c.Namespace)
	}
	if c.ElementCacheTTL < 0 {
		return fmt.Errorf("config: element_cache_ttl must not be negative")
	}
	return nil
}

// bindKeys registers every key of cfg with its current value as the
// default, so that environment variables are seen by Unmarshal even when no
// config file mentions the key and unset flags never override a default.
func bindKeys(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(append([]string(nil), parts...), tag)
		if f.Type.Kind() == reflect.Struct {
			bindKeys(v, val.Field(i).Interface(), key...)
			continue
		}
		name := strings.Join(key, ".")
		v.SetDefault(name, val.Field(i).Interface())
		_ = v.BindEnv(name)
	}
}
