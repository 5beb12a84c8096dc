// Package config loads the data engine settings from an optional YAML file,
// PROYECTAR_* environment variables (a local .env is honoured) and command
// line flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "PROYECTAR"

type Config struct {
	DataDir string       `mapstructure:"data_dir" validate:"required"`
	REM     REMConfig    `mapstructure:"rem"`
	Market  MarketConfig `mapstructure:"market"`
	HTTP    HTTPConfig   `mapstructure:"http"`
	Output  OutputConfig `mapstructure:"output"`
	Server  ServerConfig `mapstructure:"server"`
	Log     LogConfig    `mapstructure:"log"`
	Sentry  SentryConfig `mapstructure:"sentry"`
}

type REMConfig struct {
	PageURL       string `mapstructure:"page_url" validate:"required,url"`
	BaseURL       string `mapstructure:"base_url" validate:"required,url"`
	LinkMarker    string `mapstructure:"link_marker" validate:"required"`
	RawPath       string `mapstructure:"raw_path" validate:"required"`
	ProcessedPath string `mapstructure:"processed_path" validate:"required"`
	Sheet         string `mapstructure:"sheet" validate:"required"`
	MaxRows       int    `mapstructure:"max_rows" validate:"min=0"`
	// InsecureTLS skips certificate checks against the BCRA site, whose chain
	// has been broken more than once.
	InsecureTLS bool `mapstructure:"insecure_tls"`
}

type MarketConfig struct {
	DolarURL string `mapstructure:"dolar_url" validate:"required,url"`
	UVAURL   string `mapstructure:"uva_url" validate:"required,url"`
	Path     string `mapstructure:"path" validate:"required"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" validate:"oneof=csv json yaml"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error fatal"`
}

type SentryConfig struct {
	DSN         string `mapstructure:"dsn" validate:"omitempty,url"`
	Environment string `mapstructure:"environment"`
}

// flagKeys maps command line flag names onto configuration keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"format":    "output.format",
	"addr":      "server.addr",
	"log-level": "log.level",
	"sheet":     "rem.sheet",
	"max-rows":  "rem.max_rows",
	"timeout":   "http.timeout",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "public")

	v.SetDefault("rem.page_url", "https://www.bcra.gob.ar/PublicacionesEstadisticas/Relevamiento_Expectativas_de_Mercado.asp")
	v.SetDefault("rem.base_url", "https://www.bcra.gob.ar")
	v.SetDefault("rem.link_marker", "tablas-relevamiento-expectativas-mercado")
	v.SetDefault("rem.raw_path", filepath.Join("REM", "raw", "REM.xlsx"))
	v.SetDefault("rem.processed_path", filepath.Join("REM", "processed", "proyeccion_inflacion.csv"))
	v.SetDefault("rem.sheet", "Cuadros de resultados")
	v.SetDefault("rem.max_rows", 13)
	v.SetDefault("rem.insecure_tls", true)

	v.SetDefault("market.dolar_url", "https://dolarapi.com/v1/dolares/oficial")
	v.SetDefault("market.uva_url", "https://api.argentinadatos.com/v1/finanzas/indices/uva")
	v.SetDefault("market.path", filepath.Join("market", "market_status.json"))

	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	v.SetDefault("output.format", "csv")
	v.SetDefault("server.addr", "0.0.0.0:3000")
	v.SetDefault("log.level", "info")
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "production")
}

// Build assembles the configuration. cfgFile may be empty, in which case a
// config.yaml in the working directory is used when present. flags may be nil.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Path resolves p against the data directory unless it is already absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

func (c *Config) RawPath() string       { return c.Path(c.REM.RawPath) }
func (c *Config) ProcessedPath() string { return c.Path(c.REM.ProcessedPath) }
func (c *Config) MarketPath() string    { return c.Path(c.Market.Path) }

// GoFlags adapts a parsed standard library flag set for Build. Only the flags
// given on the command line take part.
func GoFlags(fs *flag.FlagSet) *pflag.FlagSet {
	out := pflag.NewFlagSet(fs.Name(), pflag.ContinueOnError)
	fs.Visit(func(f *flag.Flag) {
		out.AddGoFlag(f)
		out.Lookup(f.Name).Changed = true
	})
	return out
}

// NewLogger returns a logger writing to w at the configured level.
func (l LogConfig) NewLogger(w io.Writer, prefix string) *log.Logger {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		ReportCaller:    level == log.DebugLevel,
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
}
