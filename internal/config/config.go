package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	Store string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	JWTSecret string // JWT署名シークレット

	OrderTxTimeout time.Duration // 注文確定トランザクションの時間上限

	RedisURL        string        // 空ならキャッシュなし
	ProductCacheTTL time.Duration //商品詳細キャッシュ

	KafkaBrokers    []string // 空ならイベント送信なし
	KafkaOrderTopic string

	FEURL string // フロントURL（CORS）
}

// .envがあれば読み込んでから環境変数で組み立てる
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	pgPort, err := envInt("POSTGRES_PORT", 5432)
	collect(err)
	maxOpen, err := envInt("DB_MAX_OPEN_CONNS", 20)
	collect(err)
	maxIdle, err := envInt("DB_MAX_IDLE_CONNS", 5)
	collect(err)
	lifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	collect(err)
	txTimeout, err := envDuration("ORDER_TX_TIMEOUT", 15*time.Second)
	collect(err)
	cacheTTL, err := envDuration("PRODUCT_CACHE_TTL", 30*time.Second)
	collect(err)

	cfg := Config{
		Port:     strings.TrimPrefix(getenv("PORT", "8080"), ":"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Store:    getenv("STORE", StorePostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		DBMaxOpenConns:    maxOpen,
		DBMaxIdleConns:    maxIdle,
		DBConnMaxLifetime: lifetime,

		JWTSecret: os.Getenv("JWT_SECRET"),

		OrderTxTimeout: txTimeout,

		RedisURL:        os.Getenv("REDIS_URL"),
		ProductCacheTTL: cacheTTL,

		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "order-events"),

		FEURL: getenv("FE_URL", "http://localhost:3000"),
	}

	//必須チェック
	switch cfg.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Sprintf("STORE must be %q or %q", StorePostgres, StoreMemory))
	}
	if cfg.JWTSecret == "" {
		if cfg.IsDev() {
			cfg.JWTSecret = "dev_secret_change_me"
		} else {
			errs = append(errs, "JWT_SECRET is required")
		}
	}
	if cfg.OrderTxTimeout <= 0 {
		errs = append(errs, "ORDER_TX_TIMEOUT must be positive")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func (c Config) IsDev() bool {
	return c.GoEnv == "dev"
}

// postgresの接続文字列
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) Addr() string {
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
