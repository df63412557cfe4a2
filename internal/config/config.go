package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP         HTTPConfig       `mapstructure:"http"`
	Log          LogConfig        `mapstructure:"log"`
	MySQL        DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse   DatabaseConfig   `mapstructure:"clickhouse"`
	Redis        RedisConfig      `mapstructure:"redis"`
	Kafka        KafkaConfig      `mapstructure:"kafka"`
	RateLimit    RateLimitConfig  `mapstructure:"rate_limit"`
	Google       GoogleConfig     `mapstructure:"google"`
	OAuth        OAuthConfig      `mapstructure:"oauth"`
	Admin        AdminConfig      `mapstructure:"admin"`
	Redelivery   RedeliveryConfig `mapstructure:"redelivery"`
	DashboardURL string           `mapstructure:"dashboard_url"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	Topic          string   `mapstructure:"topic"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// GoogleConfig holds the OAuth client registration and Sheets API knobs.
type GoogleConfig struct {
	ClientID         string        `mapstructure:"client_id"`
	ClientSecret     string        `mapstructure:"client_secret"`
	RedirectURI      string        `mapstructure:"redirect_uri"`
	SheetTitlePrefix string        `mapstructure:"sheet_title_prefix"`
	Timeout          time.Duration `mapstructure:"timeout"`
	AppendRPS        float64       `mapstructure:"append_rps"`
	AppendBurst      int           `mapstructure:"append_burst"`
	Breaker          BreakerConfig `mapstructure:"breaker"`
}

type OAuthConfig struct {
	StateSecret string        `mapstructure:"state_secret"`
	StateTTL    time.Duration `mapstructure:"state_ttl"`
}

type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type RedeliveryConfig struct {
	WorkerCount int           `mapstructure:"worker_count"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchWait   time.Duration `mapstructure:"batch_wait"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (LEADGW_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (LEADGW_MYSQL_DSN, LEADGW_GOOGLE_CLIENT_ID, ...)
	v.SetEnvPrefix("LEADGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c Config) ValidateServe() error {
	var missing []string
	if c.MySQL.DSN == "" {
		missing = append(missing, "mysql.dsn")
	}
	if c.Google.ClientID == "" {
		missing = append(missing, "google.client_id")
	}
	if c.Google.ClientSecret == "" {
		missing = append(missing, "google.client_secret")
	}
	if c.Google.RedirectURI == "" {
		missing = append(missing, "google.redirect_uri")
	}
	if c.OAuth.StateSecret == "" {
		missing = append(missing, "oauth.state_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return nil
}
