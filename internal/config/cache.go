package config

import (
    "strings"
    "time"

    "github.com/kelseyhightower/envconfig"
)

// CacheConfig defines settings for the response cache in front of the public
// slot availability endpoint.  When Enabled is false or no Redis client is
// configured, caching is disabled.  TTL is kept short because availability
// changes with every reservation.
type CacheConfig struct {
    Enabled      bool            `envconfig:"ENABLED" default:"true"`
    MethodList   []string        `envconfig:"METHODS" default:"GET"`
    Methods      map[string]bool `ignored:"true"`
    TTL          time.Duration   `envconfig:"TTL" default:"5s"`
    KeyStrategy  string          `envconfig:"KEY_STRATEGY" default:"route_query"`
    Prefix       string          `envconfig:"PREFIX" default:"cache"`
    MaxBodyBytes int             `envconfig:"MAX_BODY_BYTES" default:"1048576"`
}

// LoadCacheConfig reads CACHE_* variables.  Methods are upper-cased.
func LoadCacheConfig() CacheConfig {
    var c CacheConfig
    if err := envconfig.Process("CACHE", &c); err != nil {
        c = CacheConfig{Enabled: true, MethodList: []string{"GET"}, TTL: 5 * time.Second,
            KeyStrategy: "route_query", Prefix: "cache", MaxBodyBytes: 1 << 20}
    }
    c.Methods = parseMethods(c.MethodList)
    if c.TTL <= 0 {
        c.TTL = time.Second
    }
    return c
}

func parseMethods(list []string) map[string]bool {
    m := map[string]bool{}
    for _, p := range list {
        p = strings.TrimSpace(strings.ToUpper(p))
        if p != "" {
            m[p] = true
        }
    }
    return m
}
