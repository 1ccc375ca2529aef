package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type StorageConfig struct {
	Driver   string   `mapstructure:"driver"` // local or s3
	LocalDir string   `mapstructure:"local_dir"`
	S3       S3Config `mapstructure:"s3"`
}

type OAuthClient struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// Enabled reports whether both credentials are set.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type Config struct {
	App struct {
		URL    string `mapstructure:"url"`
		Secret string `mapstructure:"secret"`
	} `mapstructure:"app"`
	Server struct {
		Addr        string   `mapstructure:"addr"`
		CORSOrigins []string `mapstructure:"cors_origins"`
		// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
		// believed. Empty means the peer address is the client.
		TrustedProxies []string `mapstructure:"trusted_proxies"`
	} `mapstructure:"server"`
	Database struct {
		Driver string `mapstructure:"driver"` // postgres or sqlite
		URL    string `mapstructure:"url"`
	} `mapstructure:"database"`
	Storage StorageConfig `mapstructure:"storage"`
	OAuth   struct {
		Google OAuthClient `mapstructure:"google"`
		GitHub OAuthClient `mapstructure:"github"`
	} `mapstructure:"oauth"`
	Printer struct {
		Enabled    bool   `mapstructure:"enabled"`
		BrowserURL string `mapstructure:"browser_url"` // remote debugging url, launches a local browser when empty
		Bin        string `mapstructure:"bin"`
	} `mapstructure:"printer"`
	AI struct {
		Enabled bool   `mapstructure:"enabled"`
		APIKey  string `mapstructure:"api_key"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"ai"`
	Mail struct {
		Enabled         bool   `mapstructure:"enabled"`
		CredentialsFile string `mapstructure:"credentials_file"`
		TokenFile       string `mapstructure:"token_file"`
		From            string `mapstructure:"from"`
	} `mapstructure:"mail"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // json or console
	} `mapstructure:"log"`
	Auth struct {
		SessionTTL         time.Duration `mapstructure:"session_ttl"`
		RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	} `mapstructure:"auth"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.url", "http://localhost:8080")
	v.SetDefault("app.secret", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.url", "host=localhost user=postgres password=postgres dbname=resume port=5432 sslmode=disable")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("oauth.google.client_id", "")
	v.SetDefault("oauth.google.client_secret", "")
	v.SetDefault("oauth.github.client_id", "")
	v.SetDefault("oauth.github.client_secret", "")
	v.SetDefault("printer.enabled", false)
	v.SetDefault("printer.browser_url", "")
	v.SetDefault("printer.bin", "")
	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.credentials_file", "credentials.json")
	v.SetDefault("mail.token_file", "token.json")
	v.SetDefault("mail.from", "me")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.session_ttl", 7*24*time.Hour)
	v.SetDefault("auth.rate_limit_per_minute", 10)
}

// Load reads .env (if present), an optional config.yaml from the working
// directory or $RESUME_CONFIG_DIR, and environment variables. The key
// database.url is overridden by DATABASE_URL and so on.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := os.Getenv("RESUME_CONFIG_DIR"); dir != "" {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct: %w", err)
	}
	cfg.App.URL = strings.TrimRight(cfg.App.URL, "/")
	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	var problems []string
	if len(c.App.Secret) < 32 {
		problems = append(problems, "app.secret must be at least 32 characters")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			problems = append(problems, "storage.s3.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		problems = append(problems, "ai.api_key is required when ai is enabled")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
