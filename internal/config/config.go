package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/advisorly/reading-room/pkg/log"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Auth      AuthConfig
	Store     StoreConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Ledger    LedgerConfig
	Room      RoomConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type AuthConfig struct {
	// JWTSecret enables credential verification when non-empty.
	JWTSecret string `mapstructure:"jwt_secret"`
	// DevMode allows credential-less auth with synthesized identities.
	DevMode bool `mapstructure:"dev_mode"`
}

type StoreConfig struct {
	Path string
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	Prefix      string
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type KafkaConfig struct {
	Enabled bool
	Brokers string
	Topic   string
}

type LedgerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout time.Duration
}

type RoomConfig struct {
	HistoryLimit int           `mapstructure:"history_limit"`
	GraceDelay   time.Duration `mapstructure:"grace_delay"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file; rely on defaults and env vars.
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.dev_mode", false)
	v.SetDefault("store.path", "./data/messages")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "readingroom")
	v.SetDefault("redis.snapshot_ttl", "24h")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "room-transcripts")
	v.SetDefault("ledger.base_url", "http://localhost:8080")
	v.SetDefault("ledger.api_key", "")
	v.SetDefault("ledger.timeout", "10s")
	v.SetDefault("room.history_limit", 50)
	v.SetDefault("room.grace_delay", "1s")
	v.SetDefault("room.event_buffer", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "reading-room")

	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.dev_mode", "DEV_MODE")
	v.BindEnv("store.path", "STORE_PATH")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("ledger.base_url", "LEDGER_BASE_URL")
	v.BindEnv("ledger.api_key", "LEDGER_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.SnapshotTTL = parseDuration(v, "redis.snapshot_ttl", 24*time.Hour)
	cfg.Ledger.Timeout = parseDuration(v, "ledger.timeout", 10*time.Second)
	cfg.Room.GraceDelay = parseDuration(v, "room.grace_delay", time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return defaultVal
	}
	return d
}
