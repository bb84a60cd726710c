package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"

	EventBusKafka = "kafka"
	EventBusLocal = "local"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	AppEnv      string
	HTTPPort    string
	StoreDriver string

	PostgresDSN          string
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int
	AutoMigrate          bool
	MongoURI             string
	MongoDatabase        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventBus         string
	KafkaBrokers     []string
	KafkaTopicPrefix string

	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenSecret string
	RefreshTokenExpiry time.Duration
	BcryptCost         int
	// AllowPrivilegedSignup lets /student/register create FACULTY and ADMIN
	// accounts.
	AllowPrivilegedSignup bool

	VoteRateLimit  int
	VoteRateWindow time.Duration

	IdempotencyTTL time.Duration
	CloseAttempts  int

	Minio MinioConfig

	OutboxPollInterval        time.Duration
	EnableElectionOutboxRelay bool
	EnableStudentOutboxRelay  bool
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (c Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Load reads an optional .env file, then the process environment. Values
// already present in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("SERVICE_NAME", "campus")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("POSTGRES_MAX_OPEN_CONNS", 20)
	v.SetDefault("POSTGRES_MAX_IDLE_CONNS", 5)
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("MONGO_DATABASE", "campus")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENT_BUS", EventBusKafka)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRY", "15m")
	v.SetDefault("REFRESH_TOKEN_EXPIRY", "168h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("ALLOW_PRIVILEGED_SIGNUP", false)
	v.SetDefault("VOTE_RATE_LIMIT", 10)
	v.SetDefault("VOTE_RATE_WINDOW", "1m")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("CLOSE_ATTEMPTS", 3)
	v.SetDefault("MINIO_BUCKET", "avatars")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("OUTBOX_POLL_INTERVAL", "2s")
	v.SetDefault("ENABLE_ELECTION_OUTBOX_RELAY", true)
	v.SetDefault("ENABLE_STUDENT_OUTBOX_RELAY", true)
	v.AutomaticEnv()
	return v
}

// FromViper builds and validates a Config from an already populated viper
// instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		ServiceName: v.GetString("SERVICE_NAME"),
		AppEnv:      strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		HTTPPort:    v.GetString("HTTP_PORT"),
		StoreDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),

		PostgresDSN:          v.GetString("POSTGRES_DSN"),
		PostgresMaxOpenConns: v.GetInt("POSTGRES_MAX_OPEN_CONNS"),
		PostgresMaxIdleConns: v.GetInt("POSTGRES_MAX_IDLE_CONNS"),
		AutoMigrate:          v.GetBool("AUTO_MIGRATE"),
		MongoURI:             v.GetString("MONGO_URI"),
		MongoDatabase:        v.GetString("MONGO_DATABASE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		EventBus:         strings.ToLower(strings.TrimSpace(v.GetString("EVENT_BUS"))),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopicPrefix: strings.TrimSpace(v.GetString("KAFKA_TOPIC_PREFIX")),

		AccessTokenSecret:     v.GetString("ACCESS_TOKEN_SECRET"),
		AccessTokenExpiry:     v.GetDuration("ACCESS_TOKEN_EXPIRY"),
		RefreshTokenSecret:    v.GetString("REFRESH_TOKEN_SECRET"),
		RefreshTokenExpiry:    v.GetDuration("REFRESH_TOKEN_EXPIRY"),
		BcryptCost:            v.GetInt("BCRYPT_COST"),
		AllowPrivilegedSignup: v.GetBool("ALLOW_PRIVILEGED_SIGNUP"),

		VoteRateLimit:  v.GetInt("VOTE_RATE_LIMIT"),
		VoteRateWindow: v.GetDuration("VOTE_RATE_WINDOW"),

		IdempotencyTTL: v.GetDuration("IDEMPOTENCY_TTL"),
		CloseAttempts:  v.GetInt("CLOSE_ATTEMPTS"),

		Minio: MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: v.GetString("MINIO_PUBLIC_URL"),
		},

		OutboxPollInterval:        v.GetDuration("OUTBOX_POLL_INTERVAL"),
		EnableElectionOutboxRelay: v.GetBool("ENABLE_ELECTION_OUTBOX_RELAY"),
		EnableStudentOutboxRelay:  v.GetBool("ENABLE_STUDENT_OUTBOX_RELAY"),
	}
	if len(cfg.KafkaBrokers) == 0 {
		cfg.KafkaBrokers = []string{"localhost:9092"}
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("POSTGRES_DSN is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMongo:
		if strings.TrimSpace(c.MongoURI) == "" || strings.TrimSpace(c.MongoDatabase) == "" {
			return errors.New("MONGO_URI and MONGO_DATABASE are required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.EventBus {
	case EventBusKafka, EventBusLocal:
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.EventBus)
	}
	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}
	if c.VoteRateLimit < 0 || (c.VoteRateLimit > 0 && c.VoteRateWindow <= 0) {
		return errors.New("VOTE_RATE_WINDOW must be positive when VOTE_RATE_LIMIT is set")
	}
	return nil
}

func splitList(raw string) []string {
	var items []string
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			items = append(items, value)
		}
	}
	return items
}
