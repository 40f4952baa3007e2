package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the CLI reads,
// e.g. MEDIKEEP_DB or MEDIKEEP_LOG_LEVEL.
const EnvPrefix = "MEDIKEEP"

// Settings are the CLI values that may come from flags, the environment
// or a config file, in that order of precedence.
type Settings struct {
	Format   string `mapstructure:"format"`
	DB       string `mapstructure:"db"`
	Now      string `mapstructure:"now"`
	LogLevel string `mapstructure:"log_level"`
	Locale   string `mapstructure:"locale"`
}

// settingFlags maps setting keys to the flag names that override them.
var settingFlags = map[string]string{
	"format":    "format",
	"db":        "db",
	"now":       "now",
	"log_level": "log-level",
	"locale":    "locale",
}

// LoadSettings resolves Settings. configFile may be empty. Flags present in
// flags are bound to their keys; only flags the user actually set override
// the environment and the config file.
func LoadSettings(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("format", "text")
	v.SetDefault("db", "")
	v.SetDefault("now", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("locale", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	if flags != nil {
		for key, name := range settingFlags {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &s, nil
}

// NewLogger builds the CLI logger on w. Text output gets a console writer,
// anything else gets JSON lines. verbose lowers the level to at least debug.
func NewLogger(w io.Writer, format, level string, verbose bool) (zerolog.Logger, error) {
	lvl := zerolog.WarnLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	if verbose && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	out := w
	if format == "text" {
		out = zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
