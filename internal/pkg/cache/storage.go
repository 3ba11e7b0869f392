package cache

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/bossboard/bossboard/internal/pkg/env"
)

// LimiterDatabase keeps rate limiter counters apart from the cache (DB 0).
const LimiterDatabase = 2

// NewFiberStorage returns a fiber.Storage on the same Redis server as the
// shared client, using the given logical database.
func NewFiberStorage(database int) fiber.Storage {
	host, port, password := connectionParams()
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: database,
		Reset:    false,
	})
}

func connectionParams() (string, int, string) {
	host := env.GetEnv("CACHE_HOST", "localhost")
	port := env.GetEnvInt("CACHE_PORT", 6379)
	password := env.GetEnv("CACHE_PASSWORD", "")
	if client != nil {
		if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := client.Options().Password; p != "" {
			password = p
		}
	}
	return host, port, password
}
