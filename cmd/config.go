package cmd

import (
	"fmt"
	"time"
)

// Adapter selections.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	QueueRedis    = "redis"
	QueueMemory   = "memory"
	BusKafka      = "kafka"
	BusMemory     = "memory"
)

// Config is read from the environment (after .env) and from flags.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" default:"info" enum:"trace,debug,info,warn,error" help:"Log level."`
	HTTPPort string `env:"HTTP_PORT" default:"8080" help:"HTTP listen port."`

	Store string `env:"STORE" default:"postgres" enum:"postgres,memory" help:"Order and ledger store."`
	Queue string `env:"QUEUE" default:"redis" enum:"redis,memory" help:"Work and inbound queues."`
	Bus   string `env:"BUS" default:"kafka" enum:"kafka,memory" help:"Event bus."`

	DBHost     string `env:"DB_HOST" default:"localhost"`
	DBPort     string `env:"DB_PORT" default:"5432"`
	DBUser     string `env:"DB_USER" default:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" default:"fulfillment"`
	DBSslMode  string `env:"DB_SSLMODE" default:"disable"`

	RedisAddr        string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB" default:"0"`
	WorkStreamPrefix string `env:"WORK_STREAM_PREFIX" default:"fulfillment:work" help:"Stage queues are streams <prefix>:<queue>."`
	InboundStream    string `env:"INBOUND_STREAM" default:"fulfillment:inbound"`
	InboundGroup     string `env:"INBOUND_GROUP" default:"dispatchers"`
	InboundConsumer  string `env:"INBOUND_CONSUMER" default:"dispatcher-1"`

	KafkaHost              []string `env:"KAFKA_HOST" default:"localhost:9092" sep:","`
	KafkaConsumerGroup     string   `env:"KAFKA_CONSUMER_GROUP" default:"fulfillment"`
	KafkaStatusTopic       string   `env:"KAFKA_STATUS_TOPIC" default:"order-status"`
	KafkaNotificationTopic string   `env:"KAFKA_NOTIFICATION_TOPIC" default:"order-notifications"`

	MaxRetries int `env:"MAX_RETRIES" default:"0" help:"Retries per phase before escalation; 0 is unbounded."`

	InboundPollSchedule string `env:"INBOUND_POLL_SCHEDULE" default:"@every 5s" help:"Inbound poll schedule; empty disables polling."`
	InboundBatchSize    int    `env:"INBOUND_BATCH_SIZE" default:"10"`

	StuckSweepSchedule string        `env:"STUCK_SWEEP_SCHEDULE" default:"@every 1m"`
	StageTimeout       time.Duration `env:"STAGE_TIMEOUT" default:"30m" help:"Stage age that counts as stuck; 0 disables the watchdog."`
	StuckSweepLimit    int           `env:"STUCK_SWEEP_LIMIT" default:"100"`
}

// DSN returns the PostgreSQL connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode,
	)
}
