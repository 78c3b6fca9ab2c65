package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/d1nch8g/lingolive/live/gemini"
	"github.com/d1nch8g/lingolive/pcm"
	"github.com/d1nch8g/lingolive/tutor"
)

// Live drivers
const (
	DriverWebsocket = "websocket"
	DriverSDK       = "sdk"
)

var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is not set")

// Config represents the complete client configuration
type Config struct {
	Live    LiveConfig    `yaml:"live"`
	Audio   AudioConfig   `yaml:"audio"`
	Tutor   TutorConfig   `yaml:"tutor"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LiveConfig selects and parameterizes the duplex transport
type LiveConfig struct {
	Driver         string        `yaml:"driver"`
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	Voice          string        `yaml:"voice"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// AudioConfig contains device parameters
type AudioConfig struct {
	CaptureSampleRate  int `yaml:"capture_sample_rate"`
	PlaybackSampleRate int `yaml:"playback_sample_rate"`
	FramesPerBuffer    int `yaml:"frames_per_buffer"`
}

// TutorConfig holds the session parameters selected at startup
type TutorConfig struct {
	Native string `yaml:"native"`
	Target string `yaml:"target"`
	Level  string `yaml:"level"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Address of the /metrics listener; empty disables it
	Address string `yaml:"address"`
}

// Default returns a configuration that works without a file
func Default() *Config {
	settings := tutor.DefaultSettings()

	return &Config{
		Live: LiveConfig{
			Driver:         DriverWebsocket,
			Endpoint:       gemini.DefaultEndpoint,
			Model:          tutor.DefaultModel,
			Voice:          tutor.DefaultVoice,
			ConnectTimeout: 15 * time.Second,
		},
		Audio: AudioConfig{
			CaptureSampleRate:  pcm.CaptureSampleRate,
			PlaybackSampleRate: pcm.PlaybackSampleRate,
			FramesPerBuffer:    4096,
		},
		Tutor: TutorConfig{
			Native: string(settings.Native),
			Target: string(settings.Target),
			Level:  string(settings.Level),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the configuration file over the defaults. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadEnv loads variables from a .env file. A missing file is not an error.
func LoadEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// APIKey reads the credential from the environment
func APIKey() (string, error) {
	for _, name := range []string{"GEMINI_API_KEY", "API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return key, nil
		}
	}
	return "", ErrMissingAPIKey
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Tutor.Validate(); err != nil {
		return fmt.Errorf("tutor config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (l *LiveConfig) Validate() error {
	switch l.Driver {
	case DriverWebsocket, DriverSDK:
	default:
		return fmt.Errorf("driver must be %q or %q, got %q", DriverWebsocket, DriverSDK, l.Driver)
	}

	if l.Driver == DriverWebsocket && l.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty for the websocket driver")
	}

	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if l.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive, got %s", l.ConnectTimeout)
	}

	return nil
}

func (a *AudioConfig) Validate() error {
	if a.CaptureSampleRate <= 0 {
		return fmt.Errorf("capture_sample_rate must be positive, got %d", a.CaptureSampleRate)
	}

	if a.PlaybackSampleRate <= 0 {
		return fmt.Errorf("playback_sample_rate must be positive, got %d", a.PlaybackSampleRate)
	}

	if a.FramesPerBuffer < 256 || a.FramesPerBuffer > 16384 {
		return fmt.Errorf("frames_per_buffer must be between 256 and 16384, got %d", a.FramesPerBuffer)
	}

	return nil
}

func (t *TutorConfig) Validate() error {
	_, err := t.Settings()
	return err
}

// Settings parses the configured session parameters
func (t *TutorConfig) Settings() (tutor.Settings, error) {
	native, err := tutor.ParseLanguage(t.Native)
	if err != nil {
		return tutor.Settings{}, fmt.Errorf("native: %w", err)
	}

	target, err := tutor.ParseLanguage(t.Target)
	if err != nil {
		return tutor.Settings{}, fmt.Errorf("target: %w", err)
	}

	level, err := tutor.ParseProficiency(t.Level)
	if err != nil {
		return tutor.Settings{}, fmt.Errorf("level: %w", err)
	}

	return tutor.Settings{Native: native, Target: target, Level: level}, nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", l.Level)
	}

	switch l.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", l.Format)
	}

	return nil
}
