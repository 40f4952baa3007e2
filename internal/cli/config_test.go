package cli

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("format", "text", "")
	fs.String("db", "", "")
	fs.String("log-level", "warn", "")
	return fs
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("", nil)
	require.NoError(t, err)
	assert.Equal(t, &Settings{Format: "text", LogLevel: "warn"}, s)
}

func TestLoadSettingsPrecedence(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "medikeep.yaml", `format: json
db: from-config.db
now: "2024-03-09T12:00:00Z"
locale: sv
log_level: info
`)

	s, err := LoadSettings(cfg, settingsFlagSet())
	require.NoError(t, err)
	assert.Equal(t, &Settings{
		Format:   "json",
		DB:       "from-config.db",
		Now:      "2024-03-09T12:00:00Z",
		LogLevel: "info",
		Locale:   "sv",
	}, s, "unset flags do not shadow the config file")

	t.Setenv("MEDIKEEP_DB", "from-env.db")
	t.Setenv("MEDIKEEP_LOG_LEVEL", "debug")
	s, err = LoadSettings(cfg, settingsFlagSet())
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", s.DB)
	assert.Equal(t, "debug", s.LogLevel)

	fs := settingsFlagSet()
	require.NoError(t, fs.Parse([]string{"--db", "from-flag.db", "--log-level", "error"}))
	s, err = LoadSettings(cfg, fs)
	require.NoError(t, err)
	assert.Equal(t, "from-flag.db", s.DB)
	assert.Equal(t, "error", s.LogLevel)
	assert.Equal(t, "json", s.Format)
}

func TestLoadSettingsBadConfig(t *testing.T) {
	_, err := LoadSettings("/nonexistent/medikeep.yaml", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "format: [\n")
	_, err = LoadSettings(bad, nil)
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		want    zerolog.Level
	}{
		{"default", "", false, zerolog.WarnLevel},
		{"explicit", "error", false, zerolog.ErrorLevel},
		{"upper_case", "INFO", false, zerolog.InfoLevel},
		{"verbose", "warn", true, zerolog.DebugLevel},
		{"verbose_keeps_trace", "trace", true, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(&bytes.Buffer{}, "json", tt.level, tt.verbose)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}

	_, err := NewLogger(&bytes.Buffer{}, "json", "loud", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log level "loud"`)
}

func TestNewLoggerFormats(t *testing.T) {
	var jsonOut bytes.Buffer
	logger, err := NewLogger(&jsonOut, "json", "info", false)
	require.NoError(t, err)
	logger.Info().Str("view", "medications").Msg("view evaluated")
	assert.Contains(t, jsonOut.String(), `"view":"medications"`)
	assert.Contains(t, jsonOut.String(), `"message":"view evaluated"`)

	var textOut bytes.Buffer
	logger, err = NewLogger(&textOut, "text", "info", false)
	require.NoError(t, err)
	logger.Info().Str("view", "medications").Msg("view evaluated")
	assert.Contains(t, textOut.String(), "view evaluated")
	assert.Contains(t, textOut.String(), "view=medications")
	assert.NotContains(t, textOut.String(), "{")
}
