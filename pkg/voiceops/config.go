// Package voiceops wires the voice operations console: configuration,
// provider selection, session factory, recorder and autodialer.
package voiceops

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

// ProviderConfig selects a pluggable backend by name with free-form
// settings decoded by the component itself.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type SessionConfig struct {
	ConnectTimeoutMS int    `mapstructure:"connect_timeout_ms"`
	SampleRate       int    `mapstructure:"sample_rate"`
	Tactic           string `mapstructure:"tactic"`
}

type DialerConfig struct {
	CooldownMS int            `mapstructure:"cooldown_ms"`
	Outbound   OutboundConfig `mapstructure:"outbound"`
}

type OutboundConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	PublicURL  string `mapstructure:"public_url"`
	VoicePath  string `mapstructure:"voice_path"`
	ServerAddr string `mapstructure:"server_addr"`
}

type CaptureConfig struct {
	Backend    string `mapstructure:"backend"`
	SampleRate int    `mapstructure:"sample_rate"`
	Channels   int    `mapstructure:"channels"`
	FrameMS    int    `mapstructure:"frame_ms"`
	Device     string `mapstructure:"device"`
	FFmpegPath string `mapstructure:"ffmpeg_path"`
}

type PlaybackConfig struct {
	Backend    string `mapstructure:"backend"`
	FFPlayPath string `mapstructure:"ffplay_path"`
}

type PersonaConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Traits   string `mapstructure:"traits"`
	Voice    string `mapstructure:"voice"`
	Language string `mapstructure:"language"`
}

type ArtifactsConfig struct {
	RecordsPath  string `mapstructure:"records_path"`
	ActivityPath string `mapstructure:"activity_path"`
}

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Dialogue    ProviderConfig  `mapstructure:"dialogue"`
	BackupSTT   ProviderConfig  `mapstructure:"backup_stt"`
	Session     SessionConfig   `mapstructure:"session"`
	Dialer      DialerConfig    `mapstructure:"dialer"`
	Capture     CaptureConfig   `mapstructure:"capture"`
	Playback    PlaybackConfig  `mapstructure:"playback"`
	Persona     PersonaConfig   `mapstructure:"persona"`
	Artifacts   ArtifactsConfig `mapstructure:"artifacts"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("session.connect_timeout_ms", 15000)
	v.SetDefault("session.sample_rate", 8000)
	v.SetDefault("session.tactic", "empathic")
	v.SetDefault("dialer.cooldown_ms", 3000)
	v.SetDefault("dialer.outbound.enabled", false)
	v.SetDefault("dialer.outbound.voice_path", "/voice")
	v.SetDefault("dialer.outbound.server_addr", ":8080")
	v.SetDefault("capture.backend", "ffmpeg")
	v.SetDefault("capture.sample_rate", 8000)
	v.SetDefault("capture.channels", 1)
	v.SetDefault("capture.frame_ms", 20)
	v.SetDefault("playback.backend", "ffplay")
	v.SetDefault("persona.name", "Amihan")
	v.SetDefault("persona.voice", "alto")
	v.SetDefault("persona.language", "Filipino")
	v.SetDefault("artifacts.records_path", "records.jsonl")
	v.SetDefault("artifacts.activity_path", "activity.jsonl")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Dialogue.Provider) == "" {
		return fmt.Errorf("dialogue.provider is required")
	}
	if strings.TrimSpace(c.Persona.Name) == "" {
		return fmt.Errorf("persona.name is required")
	}
	if c.Dialer.Outbound.Enabled {
		if strings.TrimSpace(c.Dialer.Outbound.AccountSID) == "" ||
			strings.TrimSpace(c.Dialer.Outbound.AuthToken) == "" {
			return fmt.Errorf("dialer.outbound credentials are required when enabled")
		}
		if strings.TrimSpace(c.Dialer.Outbound.From) == "" {
			return fmt.Errorf("dialer.outbound.from is required when enabled")
		}
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Dialogue.Settings = expandSettings(cfg.Dialogue.Settings)
	cfg.BackupSTT.Settings = expandSettings(cfg.BackupSTT.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
