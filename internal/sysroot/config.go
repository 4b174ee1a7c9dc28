package sysroot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// PublishSettings configures the optional bundle upload.
type PublishSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
}

// Settings holds the runtime knobs. Package lists are not settings; they
// live in the compiled-in target profiles.
// Values come from defaults, debsysroot.toml, DEBSYSROOT_* env vars and CLI flags.
type Settings struct {
	WorkDir    string          `mapstructure:"workdir"`
	Debug      bool            `mapstructure:"debug"`
	Downloader string          `mapstructure:"downloader"`
	Digest     bool            `mapstructure:"digest"`
	Publish    PublishSettings `mapstructure:"publish"`
}

// NewViper returns a viper instance with defaults and env binding applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("workdir", ".")
	v.SetDefault("debug", false)
	v.SetDefault("downloader", "http")
	v.SetDefault("digest", true)
	v.SetDefault("publish.enabled", false)
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.account_id", "")
	v.SetDefault("publish.access_key_id", "")
	v.SetDefault("publish.secret_access_key", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.region", "auto")
	v.SetDefault("publish.prefix", "")

	v.SetEnvPrefix("DEBSYSROOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads cfgFile when given, otherwise an optional debsysroot.toml
// from the current directory, and unmarshals the result.
func LoadSettings(v *viper.Viper, cfgFile string) (Settings, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("debsysroot")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if s.WorkDir == "" {
		s.WorkDir = "."
	}
	return s, nil
}
