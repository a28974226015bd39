// Package config loads settings shared by the server and the process tools.
//
// Values come from config.yaml (optional), then a local .env file, then the
// environment. Environment keys use the RELICLOG_ prefix with dots replaced
// by underscores (ocr.timeout -> RELICLOG_OCR_TIMEOUT); DB_DSN, JWT_SECRET,
// DB_AUTO_MIGRATE and UPLOAD_BASE are honoured without the prefix too.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

const envPrefix = "RELICLOG"

// devJWTSecret is used when no secret is configured.
const devJWTSecret = "dev-insecure-secret-change"

type OCR struct {
	Language      string        `mapstructure:"language"`
	SharpenPasses int           `mapstructure:"sharpen_passes"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Addr           string        `mapstructure:"addr"`
	DBDSN          string        `mapstructure:"db_dsn"`
	DBAutoMigrate  bool          `mapstructure:"db_auto_migrate"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
	UploadBase     string        `mapstructure:"upload_base"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	LogLevel       string        `mapstructure:"log_level"`
	LogPretty      bool          `mapstructure:"log_pretty"`
	Vocabulary     string        `mapstructure:"vocabulary"` // YAML path, empty for the built-in one
	Lookup         string        `mapstructure:"lookup"`     // relics.json or relicLookup.json, empty for the built-in one
	AdminUsername  string        `mapstructure:"admin_username"`
	AdminPassword  string        `mapstructure:"admin_password"`
	OCR            OCR           `mapstructure:"ocr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8081")
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_auto_migrate", true)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("access_ttl", 24*time.Hour)
	v.SetDefault("refresh_ttl", 30*24*time.Hour)
	v.SetDefault("upload_base", "public/screens")
	v.SetDefault("max_upload_bytes", 5*1024*1024)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("vocabulary", "")
	v.SetDefault("lookup", "")
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.sharpen_passes", 2)
	v.SetDefault("ocr.timeout", 30*time.Second)
}

// Load reads the configuration. path names a config file; when empty,
// ./config.yaml is used if present.
func Load(path string) (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"db_dsn":          "DB_DSN",
		"jwt_secret":      "JWT_SECRET",
		"db_auto_migrate": "DB_AUTO_MIGRATE",
		"upload_base":     "UPLOAD_BASE",
	} {
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(key), legacy); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

// RequireDB fails when no database DSN is configured.
func (c Config) RequireDB() error {
	if strings.TrimSpace(c.DBDSN) == "" {
		return errors.New("DB_DSN is not set; a Postgres DSN is required")
	}
	return nil
}

// UsesDevSecret reports whether tokens are signed with the built-in secret.
func (c Config) UsesDevSecret() bool { return c.JWTSecret == devJWTSecret }

// OCROptions converts the ocr section into pipeline options.
func (c Config) OCROptions() ocr.Options {
	return ocr.Options{
		Language:      c.OCR.Language,
		SharpenPasses: c.OCR.SharpenPasses,
		Timeout:       c.OCR.Timeout,
	}
}

// NewPipeline builds a Tesseract backed pipeline over the configured vocabulary.
func (c Config) NewPipeline() (*ocr.Pipeline, error) {
	vocab, err := refdata.LoadVocabulary(c.Vocabulary)
	if err != nil {
		return nil, err
	}
	return ocr.NewPipeline(ocr.NewTesseractRecognizer(), vocab, c.OCROptions())
}

// NewLookup loads the configured relic lookup.
func (c Config) NewLookup() (*refdata.Lookup, error) {
	return refdata.LoadLookup(c.Lookup)
}

// loadDotEnv copies KEY=value pairs from a .env file into the environment
// without overwriting variables that are already set.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable .env")
		return
	}
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); !exists {
			_ = os.Setenv(name, v.GetString(key))
		}
	}
}
