package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Rules carries every threshold the decision engine and orchestrator consult.
// It is assembled once at startup and never mutated, so tests can build their
// own instance without touching package state.
type Rules struct {
	// OscillationWindow is the trailing window in which a repeated fault code
	// counts as oscillation.
	OscillationWindow time.Duration

	// Frequency thresholds: count of same-code events (current one included)
	// that triggers an escalation within the respective window.
	Freq24hThreshold int
	Freq24hWindow    time.Duration
	Freq7dThreshold  int
	Freq7dWindow     time.Duration

	// TempThresholdC is the strict lower bound above which a temperature
	// reading on a temp-critical code asks for a cool-down.
	TempThresholdC float64

	// TempCriticalCodes are fault codes whose temperature reading is honored.
	TempCriticalCodes []string

	// DeratedCodes keep the turbine operable at reduced output: a RESET on
	// one of these maps to Impacted instead of Online.
	DeratedCodes []string

	// SnoozeDuration is the default deferral applied to a SNOOZE action.
	SnoozeDuration time.Duration
}

// TempCritical reports whether code belongs to the temperature-sensitive set.
func (r Rules) TempCritical(code string) bool { return contains(r.TempCriticalCodes, code) }

// Derated reports whether code belongs to the derated set.
func (r Rules) Derated(code string) bool { return contains(r.DeratedCodes, code) }

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

// Config is the full application configuration.
type Config struct {
	Port     string
	LogLevel string
	DBPath   string

	Rules Rules

	// ReconcileTick is the interval between reconciliation sweeps over
	// expired deferrals.
	ReconcileTick time.Duration
}

const (
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultDBPath        = "windfault.db"
	defaultReconcileTick = 60 * time.Second

	defaultOscillationWindow = 10 * time.Minute
	defaultFreq24hThreshold  = 4
	defaultFreq7dThreshold   = 8
	defaultTempThresholdC    = 75.0
	defaultSnoozeDuration    = 20 * time.Minute
)

// Defaults mirrored from the fleet operations runbook.
var (
	defaultTempCriticalCodes = []string{"EM_83", "TEMP_HIGH", "GEARBOX_OVERHEAT", "GEARBOX_TEMP_HIGH"}
	defaultDeratedCodes      = []string{"YAW_ERROR", "LOW_WIND_SPEED"}
)

// Load reads configs/config.yml (optional) and environment overrides into a
// Config. A missing config file falls back to defaults; a malformed one is an
// error.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.SetConfigName("config")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("reconciler.tick", defaultReconcileTick)

	v.SetDefault("rules.oscillation_window", defaultOscillationWindow)
	v.SetDefault("rules.freq_24h_threshold", defaultFreq24hThreshold)
	v.SetDefault("rules.freq_24h_window", 24*time.Hour)
	v.SetDefault("rules.freq_7d_threshold", defaultFreq7dThreshold)
	v.SetDefault("rules.freq_7d_window", 7*24*time.Hour)
	v.SetDefault("rules.temp_threshold_c", defaultTempThresholdC)
	v.SetDefault("rules.temp_critical_codes", defaultTempCriticalCodes)
	v.SetDefault("rules.derated_codes", defaultDeratedCodes)
	v.SetDefault("rules.snooze_duration", defaultSnoozeDuration)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Port:          v.GetString("port"),
		LogLevel:      v.GetString("log_level"),
		DBPath:        v.GetString("db.path"),
		ReconcileTick: v.GetDuration("reconciler.tick"),
		Rules: Rules{
			OscillationWindow: v.GetDuration("rules.oscillation_window"),
			Freq24hThreshold:  v.GetInt("rules.freq_24h_threshold"),
			Freq24hWindow:     v.GetDuration("rules.freq_24h_window"),
			Freq7dThreshold:   v.GetInt("rules.freq_7d_threshold"),
			Freq7dWindow:      v.GetDuration("rules.freq_7d_window"),
			TempThresholdC:    v.GetFloat64("rules.temp_threshold_c"),
			TempCriticalCodes: v.GetStringSlice("rules.temp_critical_codes"),
			DeratedCodes:      v.GetStringSlice("rules.derated_codes"),
			SnoozeDuration:    v.GetDuration("rules.snooze_duration"),
		},
	}
}

// DefaultRules returns the built-in rule thresholds; used by tests and as the
// fallback when no config file is present.
func DefaultRules() Rules {
	return Rules{
		OscillationWindow: defaultOscillationWindow,
		Freq24hThreshold:  defaultFreq24hThreshold,
		Freq24hWindow:     24 * time.Hour,
		Freq7dThreshold:   defaultFreq7dThreshold,
		Freq7dWindow:      7 * 24 * time.Hour,
		TempThresholdC:    defaultTempThresholdC,
		TempCriticalCodes: append([]string(nil), defaultTempCriticalCodes...),
		DeratedCodes:      append([]string(nil), defaultDeratedCodes...),
		SnoozeDuration:    defaultSnoozeDuration,
	}
}
