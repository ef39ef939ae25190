package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when the aggregator app id or secret is absent.
var ErrMissingCredentials = errors.New("aggregator credentials are required")

// Destroy policies applied when the aggregator reports a removed connection.
const (
	DestroyPolicySoft = "soft"
	DestroyPolicyHard = "hard"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	SaltEdge   SaltEdgeConfig
	Webhooks   WebhookConfig
	Encryption EncryptionConfig
	Scheduler  SchedulerConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Admin      AdminConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
	RequireHTTPS    bool
	AllowedHosts    []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type SaltEdgeConfig struct {
	BaseURL          string
	AppID            string
	Secret           string
	ClientID         string
	Timeout          time.Duration
	MaxPages         int
	FetchConcurrency int
}

type WebhookConfig struct {
	VerifySignatures bool
	ClockSkew        time.Duration
	DestroyPolicy    string
	MaxBodyBytes     int64
}

type EncryptionConfig struct {
	Key string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	JobTimeout    time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type FirebaseConfig struct {
	CredentialsFile string
	OperatorTokens  []string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
	SampleRatio  float64
}

type AdminConfig struct {
	APIKeyHash string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("SERVER_REQUIRE_HTTPS", false)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "bankmirror")
	v.SetDefault("DB_NAME", "bankmirror")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("SALTEDGE_BASE_URL", "https://www.saltedge.com/api/v6")
	v.SetDefault("SALTEDGE_TIMEOUT", "30s")
	v.SetDefault("SALTEDGE_MAX_PAGES", 1000)
	v.SetDefault("SALTEDGE_FETCH_CONCURRENCY", 4)

	v.SetDefault("WEBHOOK_VERIFY_SIGNATURES", true)
	v.SetDefault("WEBHOOK_CLOCK_SKEW", "30s")
	v.SetDefault("WEBHOOK_DESTROY_POLICY", DestroyPolicySoft)
	v.SetDefault("WEBHOOK_MAX_BODY_BYTES", 1<<20)

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_TIMES", "05:00,14:00")
	v.SetDefault("SCHEDULER_WORKERS", 5)
	v.SetDefault("SCHEDULER_JOB_DELAY", "1s")
	v.SetDefault("SCHEDULER_JOB_TIMEOUT", "0s")
	v.SetDefault("SCHEDULER_QUEUE_SIZE", 100)
	v.SetDefault("SCHEDULER_RUN_ON_STARTUP", false)

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "bankmirror")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_EXPORTER_ENDPOINT", "localhost:4317")
	v.SetDefault("METRICS_PORT", "9464")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
}

// Load reads configuration from the environment, optionally layered over the
// file named by CONFIG_FILE. Environment variables always win.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	dbPort, err := strconv.Atoi(v.GetString("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	durations := map[string]*time.Duration{}
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Host:         v.GetString("HOST"),
			RequireHTTPS: v.GetBool("SERVER_REQUIRE_HTTPS"),
			AllowedHosts: splitList(v.GetString("SERVER_ALLOWED_HOSTS")),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			Host:     v.GetString("DB_HOST"),
			Port:     dbPort,
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		SaltEdge: SaltEdgeConfig{
			BaseURL:          strings.TrimRight(v.GetString("SALTEDGE_BASE_URL"), "/"),
			AppID:            v.GetString("SALTEDGE_APP_ID"),
			Secret:           v.GetString("SALTEDGE_SECRET"),
			ClientID:         v.GetString("SALTEDGE_CLIENT_ID"),
			MaxPages:         v.GetInt("SALTEDGE_MAX_PAGES"),
			FetchConcurrency: v.GetInt("SALTEDGE_FETCH_CONCURRENCY"),
		},
		Webhooks: WebhookConfig{
			VerifySignatures: v.GetBool("WEBHOOK_VERIFY_SIGNATURES"),
			DestroyPolicy:    strings.ToLower(v.GetString("WEBHOOK_DESTROY_POLICY")),
			MaxBodyBytes:     v.GetInt64("WEBHOOK_MAX_BODY_BYTES"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("SCHEDULER_ENABLED"),
			ScheduleTimes: splitList(v.GetString("SCHEDULER_TIMES")),
			WorkerCount:   v.GetInt("SCHEDULER_WORKERS"),
			QueueSize:     v.GetInt("SCHEDULER_QUEUE_SIZE"),
			RunOnStartup:  v.GetBool("SCHEDULER_RUN_ON_STARTUP"),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
			OperatorTokens:  splitList(v.GetString("FIREBASE_OPERATOR_TOKENS")),
		},
		Telemetry: TelemetryConfig{
			Enabled:      v.GetBool("OTEL_ENABLED"),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			Environment:  v.GetString("OTEL_ENVIRONMENT"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_ENDPOINT"),
			MetricsPort:  v.GetString("METRICS_PORT"),
			SampleRatio:  v.GetFloat64("OTEL_SAMPLE_RATIO"),
		},
		Admin: AdminConfig{
			APIKeyHash: v.GetString("ADMIN_API_KEY_HASH"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
	}

	durations["SHUTDOWN_TIMEOUT"] = &cfg.Server.ShutdownTimeout
	durations["SALTEDGE_TIMEOUT"] = &cfg.SaltEdge.Timeout
	durations["WEBHOOK_CLOCK_SKEW"] = &cfg.Webhooks.ClockSkew
	durations["SCHEDULER_JOB_DELAY"] = &cfg.Scheduler.JobDelay
	durations["SCHEDULER_JOB_TIMEOUT"] = &cfg.Scheduler.JobTimeout
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SaltEdge.AppID == "" || c.SaltEdge.Secret == "" {
		return fmt.Errorf("%w: set SALTEDGE_APP_ID and SALTEDGE_SECRET", ErrMissingCredentials)
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	switch c.Webhooks.DestroyPolicy {
	case DestroyPolicySoft, DestroyPolicyHard:
	default:
		return fmt.Errorf("invalid WEBHOOK_DESTROY_POLICY %q (want %s or %s)",
			c.Webhooks.DestroyPolicy, DestroyPolicySoft, DestroyPolicyHard)
	}
	if c.SaltEdge.FetchConcurrency < 1 {
		return fmt.Errorf("SALTEDGE_FETCH_CONCURRENCY must be at least 1")
	}
	if c.Scheduler.WorkerCount < 1 {
		return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}
	return nil
}

// WebhookSecret is the key used to verify callback signatures. Empty means
// verification is disabled.
func (c *Config) WebhookSecret() string {
	if !c.Webhooks.VerifySignatures {
		return ""
	}
	return c.SaltEdge.Secret
}

func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
