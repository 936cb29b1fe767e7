package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type RedisConfig struct {
	URL string        `env:"REDIS_URL" default:""`
	TTL time.Duration `env:"REDIS_TTL" default:"5m"`
}

type KafkaConfig struct {
	Brokers string `env:"KAFKA_BROKERS" default:""`
	Topic   string `env:"KAFKA_TOPIC" default:"ledger_events"`
}

// IncomeConfig drives the periodic income job. An empty Schedule disables it.
type IncomeConfig struct {
	Schedule string `env:"INCOME_SCHEDULE" default:""`
	Amount   uint64 `env:"INCOME_AMOUNT" default:"0"`
}
