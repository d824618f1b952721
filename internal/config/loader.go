package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	applog "github.com/vovakirdan/anonchat-server/internal/log"
)

const (
	envPrefix            = "ANONCHAT"
	envConfigDefaultPath = "ANONCHAT_CONFIG_DEFAULT_PATH"
	envPort              = "PORT"
	defaultConfigName    = "config.yaml"
)

// Load builds configuration from defaults, optional config file, env vars, and returns the resolved path.
// Precedence: defaults < config file < env vars < caller overrides.
// A bare PORT variable overrides the port of addr.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configPath := resolveConfigPath(explicitPath)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			if writeErr := writeDefaultConfig(configPath, cfg); writeErr != nil && logger != nil {
				logger.Warn().Err(writeErr).Str("path", configPath).Msg("failed to write default config")
			} else if logger != nil {
				logger.Info().Str("path", configPath).Msg("created default config")
			}
			// try reading again in case it was just written
			if readErr := v.ReadInConfig(); readErr != nil && logger != nil {
				logger.Warn().Err(readErr).Str("path", configPath).Msg("failed to read config after writing default")
			}
		} else {
			return cfg, configPath, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, configPath, fmt.Errorf("unmarshal config: %w", err)
	}

	if port := os.Getenv(envPort); port != "" {
		cfg.Addr = withPort(cfg.Addr, port)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, configPath, err
	}
	return cfg, configPath, nil
}

// Validate reports configuration values the server cannot start with.
func (c Config) Validate() error {
	switch c.Attachments.Backend {
	case BackendLocal:
		if c.Attachments.UploadsDir == "" {
			return errors.New("attachments.uploads_dir is required for the local backend")
		}
	case BackendS3:
		if c.Attachments.S3.Bucket == "" {
			return errors.New("attachments.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown attachments.backend %q", c.Attachments.Backend)
	}
	if !applog.ValidFormat(c.LogFormat) {
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	return nil
}

// setDefaults registers every key so env vars are picked up by Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("read_header_timeout", cfg.ReadHeaderTimeout)
	v.SetDefault("shutdown_timeout", cfg.ShutdownTimeout)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("max_message_bytes", cfg.MaxMessageBytes)
	v.SetDefault("max_audio_bytes", cfg.MaxAudioBytes)
	v.SetDefault("client_queue_size", cfg.ClientQueueSize)
	v.SetDefault("rate_limit_per_minute", cfg.RateLimitPerMinute)
	v.SetDefault("attachments.backend", cfg.Attachments.Backend)
	v.SetDefault("attachments.uploads_dir", cfg.Attachments.UploadsDir)
	v.SetDefault("attachments.s3.endpoint", cfg.Attachments.S3.Endpoint)
	v.SetDefault("attachments.s3.region", cfg.Attachments.S3.Region)
	v.SetDefault("attachments.s3.bucket", cfg.Attachments.S3.Bucket)
	v.SetDefault("attachments.s3.access_key_id", cfg.Attachments.S3.AccessKeyID)
	v.SetDefault("attachments.s3.secret_access_key", cfg.Attachments.S3.SecretAccessKey)
	v.SetDefault("attachments.s3.use_path_style", cfg.Attachments.S3.UsePathStyle)
	v.SetDefault("attachments.s3.public_url", cfg.Attachments.S3.PublicURL)
}

func withPort(addr, port string) string {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return host + ":" + port
}

func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}

	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return defaultConfigName
	}
	return filepath.Join(cwd, defaultConfigName)
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
