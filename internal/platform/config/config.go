package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full process configuration. Empty backend URLs select the
// in-memory implementations so the service runs standalone in development.
type Config struct {
	Server     Server
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Predictors PredictorsConfig
	Dispatcher DispatcherConfig
	Ledger     LedgerConfig
	Notify     NotifyConfig
	RateLimit  RateLimitConfig
	LogLevel   string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	CommitEventsTopic string
	Partitions        int32
	ReplicationFactor int16
}

// PredictorsConfig points at the external authenticity, crime and escalation
// services. An empty URL disables the corresponding client.
type PredictorsConfig struct {
	AuthenticityURL string
	CrimeURL        string
	EscalationURL   string
	APIKey          string
	VerifyTimeout   time.Duration
	RequestsPerSec  float64
	Burst           int
}

type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	BaseBackoff    time.Duration
	JobTimeout     time.Duration
	AttemptTimeout time.Duration
	AutoEscalate   bool
}

type LedgerConfig struct {
	WriteAttempts    int
	WriteBackoff     time.Duration
	RewardPolicyFile string
}

type NotifyConfig struct {
	BufferCapacity int
}

// RateLimitConfig bounds report submissions per submitter. Zero disables it.
type RateLimitConfig struct {
	Submissions int
	Window      time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	p := &envParser{errs: &errs}

	cfg := Config{
		Server: Server{
			Addr:          p.str("CRIMEWATCH_ADDR", ":8080"),
			JWTSigningKey: p.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     p.str("JWT_ISSUER", "crimewatch"),
			JWTAudience:   p.str("JWT_AUDIENCE", "crimewatch-api"),
		},
		Postgres: PostgresConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: p.int("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: p.int("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			CommitEventsTopic: p.str("KAFKA_COMMIT_EVENTS_TOPIC", "crimewatch.report-committed"),
			Partitions:        int32(p.int("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(p.int("KAFKA_TOPIC_REPLICATION", 1)),
		},
		Predictors: PredictorsConfig{
			AuthenticityURL: os.Getenv("AUTHENTICITY_URL"),
			CrimeURL:        os.Getenv("CRIME_URL"),
			EscalationURL:   os.Getenv("ESCALATION_URL"),
			APIKey:          os.Getenv("PREDICTOR_API_KEY"),
			VerifyTimeout:   p.duration("AUTHENTICITY_TIMEOUT", 10*time.Second),
			RequestsPerSec:  p.float("PREDICTOR_RPS", 5),
			Burst:           p.int("PREDICTOR_BURST", 5),
		},
		Dispatcher: DispatcherConfig{
			Workers:        p.int("DISPATCHER_WORKERS", 4),
			QueueSize:      p.int("DISPATCHER_QUEUE_SIZE", 256),
			MaxRetries:     p.int("DISPATCHER_MAX_RETRIES", 2),
			BaseBackoff:    p.duration("DISPATCHER_BASE_BACKOFF", time.Second),
			JobTimeout:     p.duration("DISPATCHER_JOB_TIMEOUT", 20*time.Second),
			AttemptTimeout: p.duration("DISPATCHER_ATTEMPT_TIMEOUT", 8*time.Second),
			AutoEscalate:   p.bool("DISPATCHER_AUTO_ESCALATE", true),
		},
		Ledger: LedgerConfig{
			WriteAttempts:    p.int("LEDGER_WRITE_ATTEMPTS", 3),
			WriteBackoff:     p.duration("LEDGER_WRITE_BACKOFF", 100*time.Millisecond),
			RewardPolicyFile: os.Getenv("REWARD_POLICY_FILE"),
		},
		Notify: NotifyConfig{
			BufferCapacity: p.int("NOTIFY_BUFFER_CAPACITY", 10),
		},
		RateLimit: RateLimitConfig{
			Submissions: p.int("RATELIMIT_SUBMISSIONS", 10),
			Window:      p.duration("RATELIMIT_WINDOW", time.Minute),
		},
		LogLevel: p.str("LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	if cfg.Dispatcher.Workers <= 0 {
		return Config{}, fmt.Errorf("invalid configuration: DISPATCHER_WORKERS must be positive")
	}
	return cfg, nil
}

type envParser struct {
	errs *[]string
}

func (p *envParser) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (p *envParser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, key+" must be an integer")
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*p.errs = append(*p.errs, key+" must be a number")
		return def
	}
	return f
}

func (p *envParser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, key+" must be a boolean")
		return def
	}
	return b
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, key+" must be a duration")
		return def
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
