package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/notedeck/internal/progress"
	"github.com/conorfennell/notedeck/internal/quiz"
)

const (
	// DefaultFile is read from the working directory when --config is not set.
	DefaultFile = "notedeck.yaml"
	// EnvPrefix marks environment variables that override the config file.
	EnvPrefix = "NOTEDECK_"
)

// Config holds every setting of the notedeck command.
type Config struct {
	DB             string        `koanf:"db" validate:"required"`
	ReposDir       string        `koanf:"repos-dir" validate:"required"`
	Addr           string        `koanf:"addr" validate:"required"`
	AllowedOrigins []string      `koanf:"allowed-origins" validate:"dive,required"`
	Remote         string        `koanf:"remote" validate:"omitempty,http_url"`
	LogLevel       string        `koanf:"log-level" validate:"oneof=debug info warn error"`
	LogFormat      string        `koanf:"log-format" validate:"oneof=text json"`
	PersistTimeout time.Duration `koanf:"persist-timeout" validate:"gt=0"`
	Seed           int64         `koanf:"seed"`
	Weights        quiz.Weights  `koanf:"weights"`
}

// RegisterFlags defines the flags Load reads. Their defaults are the lowest
// configuration layer.
func RegisterFlags(flags *pflag.FlagSet) {
	w := quiz.DefaultWeights()
	flags.String("config", DefaultFile, "Path to a YAML config file")
	flags.String("db", "notedeck.db", "Path to the SQLite database file")
	flags.String("repos-dir", ".notedeck/repos", "Directory git sources are cloned into")
	flags.String("addr", ":8080", "Listen address of the API server")
	flags.StringSlice("allowed-origins", []string{"http://localhost:3000"}, "Origins allowed to call the API")
	flags.String("remote", "", "Base URL of a notedeck server to review against instead of the local database")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Duration("persist-timeout", progress.DefaultTimeout, "Timeout of a single progress save")
	flags.Int64("seed", 0, "Random seed for question selection, 0 for a time-based seed")
	flags.Int("weights.multiple-choice", w.MultipleChoice, "Percentage of multiple-choice questions")
	flags.Int("weights.true-false", w.TrueFalse, "Percentage of true/false questions")
	flags.Int("weights.written", w.Written, "Percentage of written questions")
}

// Load builds the configuration from flag defaults, the YAML config file,
// NOTEDECK_ environment variables (after loading .env) and explicitly set
// flags, in increasing order of precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		explicit := flags.Changed("config")
		if err != nil && (explicit || !errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps NOTEDECK_WEIGHTS__TRUE_FALSE to weights.true-false and
// splits comma separated lists.
func envValue(key, value string) (string, interface{}) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	parts := strings.Split(key, "__")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, "_", "-")
	}
	key = strings.Join(parts, ".")

	if key == "allowed-origins" {
		var origins []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return key, origins
	}
	return key, value
}

// Validate checks field constraints and the question weight split.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the slog logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(c.LogLevel)}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
