package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseViper() *viper.Viper {
	v := newViper()
	v.Set("POSTGRES_DSN", "postgres://campus@localhost/campus")
	v.Set("ACCESS_TOKEN_SECRET", "access")
	v.Set("REFRESH_TOKEN_SECRET", "refresh")
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(baseViper())
	require.NoError(t, err)

	assert.Equal(t, "campus", cfg.ServiceName)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, EventBusKafka, cfg.EventBus)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenExpiry)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenExpiry)
	assert.Equal(t, time.Minute, cfg.VoteRateWindow)
	assert.True(t, cfg.EnableElectionOutboxRelay)
	assert.Equal(t, 20, cfg.PostgresMaxOpenConns)
	assert.False(t, cfg.AutoMigrate)
	assert.False(t, cfg.AllowPrivilegedSignup)
	assert.False(t, cfg.IsDevelopment())
}

func TestFromViperParsesOverrides(t *testing.T) {
	v := baseViper()
	v.Set("APP_ENV", "Development")
	v.Set("STORE_DRIVER", "MONGO")
	v.Set("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	v.Set("VOTE_RATE_LIMIT", "3")
	v.Set("ENABLE_STUDENT_OUTBOX_RELAY", "false")
	v.Set("AUTO_MIGRATE", "true")
	v.Set("ALLOW_PRIVILEGED_SIGNUP", "true")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, StoreDriverMongo, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3, cfg.VoteRateLimit)
	assert.False(t, cfg.EnableStudentOutboxRelay)
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.AllowPrivilegedSignup)
}

func TestFromViperValidates(t *testing.T) {
	cases := map[string]func(*viper.Viper){
		"unknown driver":   func(v *viper.Viper) { v.Set("STORE_DRIVER", "sqlite") },
		"unknown bus":      func(v *viper.Viper) { v.Set("EVENT_BUS", "nats") },
		"missing dsn":      func(v *viper.Viper) { v.Set("POSTGRES_DSN", "") },
		"missing secret":   func(v *viper.Viper) { v.Set("ACCESS_TOKEN_SECRET", "") },
		"shared secret":    func(v *viper.Viper) { v.Set("REFRESH_TOKEN_SECRET", "access") },
		"zero rate window": func(v *viper.Viper) { v.Set("VOTE_RATE_WINDOW", "0s") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := baseViper()
			mutate(v)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}
