package storage

import (
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"idlegate/internal/constants"
	"idlegate/internal/utils"
)

const (
	EnvRedisHost     = "REDIS_HOST"
	EnvRedisPort     = "REDIS_PORT"
	EnvRedisUser     = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvStateTTL      = "IDLE_STATE_TTL"
)

// RedisConfig is the Redis connection shared by the idle state and the
// session store.
type RedisConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	// StateTTL bounds how long an abandoned session clock survives.
	StateTTL time.Duration
}

func RedisConfigFromEnv() RedisConfig {
	return RedisConfig{
		Host:     utils.GetEnv(EnvRedisHost, ""),
		Port:     utils.GetEnv(EnvRedisPort, "6379"),
		Username: utils.GetEnv(EnvRedisUser, ""),
		Password: utils.GetEnv(EnvRedisPassword, ""),
		StateTTL: utils.GetEnvDuration(EnvStateTTL, constants.IdleStateTTL),
	}
}

// Enabled reports whether Redis was configured at all.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func (c RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:     c.Addr(),
		Username: c.Username,
		Password: c.Password,
		DB:       0,
	}
}

// NewStore picks Redis when REDIS_HOST is set and falls back to memory when
// Redis is not configured or unreachable.
func NewStore() Store {
	cfg := RedisConfigFromEnv()
	if !cfg.Enabled() {
		log.Println("💾 Using in-memory idle state")
		return NewMemoryStore()
	}

	store, err := NewRedisStore(cfg)
	if err != nil {
		log.Printf("⚠️  Redis connection failed: %v", err)
		log.Println("💾 Falling back to in-memory idle state")
		return NewMemoryStore()
	}
	log.Printf("💾 Using Redis idle state: %s (clock TTL %s)", cfg.Addr(), cfg.StateTTL)
	return store
}
