package config

import (
	"time"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
)

// Attachment backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	// MaxMessageBytes bounds a single inbound WebSocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// MaxAudioBytes bounds a decoded audio clip.
	MaxAudioBytes      int `mapstructure:"max_audio_bytes" yaml:"max_audio_bytes"`
	ClientQueueSize    int `mapstructure:"client_queue_size" yaml:"client_queue_size"`
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`

	Attachments AttachmentsConfig `mapstructure:"attachments" yaml:"attachments"`
}

// AttachmentsConfig selects where audio clips are stored.
type AttachmentsConfig struct {
	Backend    string              `mapstructure:"backend" yaml:"backend"`
	UploadsDir string              `mapstructure:"uploads_dir" yaml:"uploads_dir"`
	S3         attachment.S3Config `mapstructure:"s3" yaml:"s3"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":3000",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		DatabasePath:       "anonchat.db",
		MaxMessageBytes:    16 << 20,
		MaxAudioBytes:      10 << 20,
		ClientQueueSize:    64,
		RateLimitPerMinute: 120,
		Attachments: AttachmentsConfig{
			Backend:    BackendLocal,
			UploadsDir: "uploads",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MaxAudioBytes != 0 {
		c.MaxAudioBytes = other.MaxAudioBytes
	}
	if other.ClientQueueSize != 0 {
		c.ClientQueueSize = other.ClientQueueSize
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.Attachments.Backend != "" {
		c.Attachments.Backend = other.Attachments.Backend
	}
	if other.Attachments.UploadsDir != "" {
		c.Attachments.UploadsDir = other.Attachments.UploadsDir
	}
}
