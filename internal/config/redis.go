package config

// Redis backs the rate limiter on booking mutations and the availability
// response cache.  If the server cannot be reached at startup,
// NewRedisClient returns nil and both features degrade to pass-through.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/kelseyhightower/envconfig"
    "github.com/redis/go-redis/v9"
)

// RedisConfig is read with the REDIS_ prefix.  Addr takes precedence unless
// both Host and Port are set.
type RedisConfig struct {
    Host     string `envconfig:"HOST"`
    Port     string `envconfig:"PORT"`
    Addr     string `envconfig:"ADDR" default:"localhost:6379"`
    Password string `envconfig:"PASSWORD"`
    DB       int    `envconfig:"DB" default:"0"`
    TLS      bool   `envconfig:"TLS" default:"false"`
}

// Address resolves the host:port to dial.
func (r RedisConfig) Address() string {
    if r.Host != "" && r.Port != "" {
        return r.Host + ":" + r.Port
    }
    if r.Addr == "" {
        return "localhost:6379"
    }
    return r.Addr
}

// NewRedisClient dials Redis using REDIS_* variables.  The returned client
// is nil if the server does not answer a ping within two seconds.
func NewRedisClient() *redis.Client {
    var rc RedisConfig
    if err := envconfig.Process("REDIS", &rc); err != nil {
        return nil
    }
    var tlsConf *tls.Config
    if rc.TLS {
        tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      rc.Address(),
        Password:  rc.Password,
        DB:        rc.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
