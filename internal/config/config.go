package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const configFileEnv = "STANDUPBOT_CONFIG"

type Config struct {
	DiscordToken string `mapstructure:"discord_bot_token"`
	DatabaseURL  string `mapstructure:"db_url"`
	RedisURL     string `mapstructure:"redis_url"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	HTTPAddr     string `mapstructure:"http_addr"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	RetryMaxAttempts     int           `mapstructure:"retry_max_attempts"`
	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval"`
	CheckpointTTL        time.Duration `mapstructure:"checkpoint_ttl"`
}

func Default() Config {
	retry := standup.DefaultRetryPolicy()
	return Config{
		RedisURL:             "redis://localhost:6379/0",
		HTTPAddr:             ":8080",
		LogLevel:             "INFO",
		LogFormat:            "text",
		RetryMaxAttempts:     retry.MaxAttempts,
		RetryInitialInterval: retry.InitialInterval,
		RetryMaxInterval:     retry.MaxInterval,
		CheckpointTTL:        24 * time.Hour,
	}
}

// Load reads .env (if present), an optional YAML file and the environment,
// in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv(configFileEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("standupbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/standupbot")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("discord_bot_token", d.DiscordToken)
	v.SetDefault("db_url", d.DatabaseURL)
	v.SetDefault("redis_url", d.RedisURL)
	v.SetDefault("jwt_secret", d.JWTSecret)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("retry_max_attempts", d.RetryMaxAttempts)
	v.SetDefault("retry_initial_interval", d.RetryInitialInterval)
	v.SetDefault("retry_max_interval", d.RetryMaxInterval)
	v.SetDefault("checkpoint_ttl", d.CheckpointTTL)
}

// Validate checks what the serve command needs. The migrate command only
// needs DatabaseURL and checks it itself.
func (c *Config) Validate() error {
	var errs []error
	if c.DiscordToken == "" {
		errs = append(errs, errors.New("DISCORD_BOT_TOKEN is required"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DB_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RetryMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry_max_attempts must be at least 1, got %d", c.RetryMaxAttempts))
	}
	if c.RetryInitialInterval <= 0 || c.RetryMaxInterval < c.RetryInitialInterval {
		errs = append(errs, fmt.Errorf("retry intervals must satisfy 0 < initial (%s) <= max (%s)",
			c.RetryInitialInterval, c.RetryMaxInterval))
	}
	if c.CheckpointTTL <= 0 {
		errs = append(errs, fmt.Errorf("checkpoint_ttl must be positive, got %s", c.CheckpointTTL))
	}
	return errors.Join(errs...)
}

func (c *Config) RetryPolicy() standup.RetryPolicy {
	return standup.RetryPolicy{
		MaxAttempts:     c.RetryMaxAttempts,
		InitialInterval: c.RetryInitialInterval,
		MaxInterval:     c.RetryMaxInterval,
	}
}
