// Package config holds the application configuration, loaded from defaults,
// an optional YAML file, and VOICE_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Audio     AudioConfig     `mapstructure:"audio"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Debug     bool            `mapstructure:"debug"`
}

// AudioConfig configures the capture and playback pipelines.
type AudioConfig struct {
	// CaptureDeviceRate is the hardware capture rate; capture audio is
	// resampled down to TargetRate before leaving the pipeline.
	CaptureDeviceRate int `mapstructure:"captureDeviceRate"`
	// TargetRate is the outbound wire sample rate.
	TargetRate int `mapstructure:"targetRate"`
	// PlaybackRate is the fixed inbound audio sample rate.
	PlaybackRate int `mapstructure:"playbackRate"`
	// WindowSamples is the size of each capture window handed to the
	// session, counted at TargetRate.
	WindowSamples int `mapstructure:"windowSamples"`
	// RingSize is the playback ring buffer capacity in bytes.
	RingSize int `mapstructure:"ringSize"`
	// CaptureTapPath, when set, dumps captured audio to a WAV file.
	CaptureTapPath string `mapstructure:"captureTapPath"`
	// PlaybackTapPath, when set, dumps received audio to a WAV file.
	PlaybackTapPath string `mapstructure:"playbackTapPath"`
	// Echo cancellation and noise suppression are requested from the
	// device layer when supported. They are hints, not guarantees.
	EchoCancellation bool `mapstructure:"echoCancellation"`
	NoiseSuppression bool `mapstructure:"noiseSuppression"`
}

// GatewayConfig configures the duplex websocket connection.
type GatewayConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshakeTimeout"`
	WriteTimeout     time.Duration `mapstructure:"writeTimeout"`
	ReadTimeout      time.Duration `mapstructure:"readTimeout"`
	PingInterval     time.Duration `mapstructure:"pingInterval"`
	MaxMessageSize   int64         `mapstructure:"maxMessageSize"`
}

// AssistantConfig is supplied by the surrounding UI at connect time.
type AssistantConfig struct {
	SystemPrompt string `mapstructure:"systemPrompt"`
	Voice        string `mapstructure:"voice"`
}

// ToolsConfig configures tool handlers that need network access.
type ToolsConfig struct {
	ImageEndpoint   string        `mapstructure:"imageEndpoint"`
	ImageTimeout    time.Duration `mapstructure:"imageTimeout"`
	ImageMaxRetries uint64        `mapstructure:"imageMaxRetries"`
}

// Load reads configuration from the optional file at path, layered over
// defaults and VOICE_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VOICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static and always valid.
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("audio.captureDeviceRate", 48000)
	v.SetDefault("audio.targetRate", 16000)
	v.SetDefault("audio.playbackRate", 24000)
	v.SetDefault("audio.windowSamples", 4096)
	v.SetDefault("audio.ringSize", 16*24000*2) // 16 seconds of playback audio
	v.SetDefault("audio.captureTapPath", "")
	v.SetDefault("audio.playbackTapPath", "")
	v.SetDefault("audio.echoCancellation", true)
	v.SetDefault("audio.noiseSuppression", true)

	v.SetDefault("gateway.url", "ws://localhost:8765/v1/live")
	v.SetDefault("gateway.handshakeTimeout", 15*time.Second)
	v.SetDefault("gateway.writeTimeout", 10*time.Second)
	v.SetDefault("gateway.readTimeout", 60*time.Second)
	v.SetDefault("gateway.pingInterval", 30*time.Second)
	v.SetDefault("gateway.maxMessageSize", int64(1024*1024))

	v.SetDefault("assistant.systemPrompt",
		"You are a helpful voice assistant running on a handheld device. "+
			"Keep spoken replies short. After a tool call completes, always "+
			"confirm the outcome out loud.")
	v.SetDefault("assistant.voice", "aurora")

	v.SetDefault("tools.imageEndpoint", "http://localhost:8766/v1/images")
	v.SetDefault("tools.imageTimeout", 30*time.Second)
	v.SetDefault("tools.imageMaxRetries", uint64(2))
}

func (c *Config) validate() error {
	if c.Audio.TargetRate <= 0 || c.Audio.PlaybackRate <= 0 {
		return fmt.Errorf("sample rates must be positive")
	}
	if c.Audio.WindowSamples <= 0 {
		return fmt.Errorf("windowSamples must be positive")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway url is required")
	}
	return nil
}
