package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"disease-normalizer"`
	Port                          int      `env:"PORT" env-default:"3010"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`

	// Storage backend selection: "postgres" or "redis"
	StorageBackend string `env:"STORAGE_BACKEND" env-default:"postgres"`

	// PostgreSQL
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"disease_normalizer"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseReconnectRetryCount   int           `env:"DB_RECONNECT_RETRY_COUNT" env-default:"3"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Redis (alternate key/value storage backend)
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Graph Database (Memgraph)
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"false"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Kafka Consumer (source record ingestion)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"disease-source-records"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"disease-normalizer-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"false"`

	// Kafka Producer settings
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"disease-normalizer-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingExporter     string `env:"TRACING_EXPORTER" env-default:"console"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
}
