package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Webhooks  WebhooksConfig  `mapstructure:"webhooks"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type RateLimitConfig struct {
	WebhookPerMinute int `mapstructure:"webhook_per_minute"`
	APIReadPerMinute int `mapstructure:"api_read_per_minute"`
}

// WebhooksConfig configures inbound verification of the automation tool's
// calls. Secret must never be logged.
type WebhooksConfig struct {
	Secret          string        `mapstructure:"secret" json:"-"`
	SignatureHeader string        `mapstructure:"signature_header"`
	Algorithm       string        `mapstructure:"algorithm"`
	Encoding        string        `mapstructure:"encoding"`
	Prefix          string        `mapstructure:"prefix"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	Retention       time.Duration `mapstructure:"retention"`
	PruneInterval   time.Duration `mapstructure:"prune_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// Load reads the optional YAML file at path, then applies .env and process
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The marketplace has always exported the secret under this name.
	if err := v.BindEnv("webhooks.secret", "AUTOMATION_WEBHOOK_SECRET", "WEBHOOKS_SECRET"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			if !errors.As(err, &pathErr) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Webhooks.Secret = strings.TrimSpace(config.Webhooks.Secret)

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.path", "data/estately.db")
	v.SetDefault("database.max_connections", 10)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "estately")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)

	v.SetDefault("rate_limit.webhook_per_minute", 600)
	v.SetDefault("rate_limit.api_read_per_minute", 1000)

	v.SetDefault("webhooks.secret", "")
	v.SetDefault("webhooks.signature_header", "X-Signature")
	v.SetDefault("webhooks.algorithm", "sha256")
	v.SetDefault("webhooks.encoding", "hex")
	v.SetDefault("webhooks.prefix", "")
	v.SetDefault("webhooks.max_body_size", int64(1<<20))
	v.SetDefault("webhooks.retention", 720*time.Hour)
	v.SetDefault("webhooks.prune_interval", time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}
