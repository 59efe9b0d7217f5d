package redis

import (
	"crypto/tls"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis connection opened by NewStore.
type Options struct {
	// Redis server address.
	Address string
	// Password required when connecting to the Redis server.
	Password string
	// DB to connect to.
	DB int
	// TLS config.
	TLSConfig *tls.Config
}

// DefaultOptions targets a local Redis on the default port and DB.
func DefaultOptions() Options {
	return Options{
		Address:  "localhost:6379",
		Password: "", // no password set
		DB:       0,  // use default DB
	}
}

func openClient(options Options) *redis.Client {
	return redis.NewClient(&redis.Options{
		TLSConfig: options.TLSConfig,
		Addr:      options.Address,
		Password:  options.Password,
		DB:        options.DB,
	})
}
