package config

import (
    "time"

    "github.com/kelseyhightower/envconfig"
)

// RateLimitConfig drives the redis token bucket placed in front of booking
// mutations.  Variables are read with the RATE_LIMIT_ prefix.
type RateLimitConfig struct {
    Enabled        bool          `envconfig:"ENABLED" default:"true"`
    Capacity       int           `envconfig:"CAPACITY" default:"30"`
    RefillTokens   int           `envconfig:"REFILL_TOKENS" default:"1"`
    RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"2s"`
    TTL            time.Duration `envconfig:"TTL" default:"10m"`
    KeyStrategy    string        `envconfig:"KEY_STRATEGY" default:"user_route"`
    Prefix         string        `envconfig:"PREFIX" default:"rl"`
    Debug          bool          `envconfig:"DEBUG" default:"false"`
    Burst          int           `envconfig:"BURST" default:"-1"`
    RefillEvery    time.Duration `envconfig:"REFILL_EVERY" default:"0"`
}

// LoadRateLimitConfig reads RATE_LIMIT_* and clamps the result to values the
// limiter script can use.  Malformed values fall back to defaults.
func LoadRateLimitConfig() RateLimitConfig {
    var def RateLimitConfig
    if err := envconfig.Process("RATE_LIMIT", &def); err != nil {
        def = RateLimitConfig{Enabled: true, Capacity: 30, RefillTokens: 1, RefillInterval: 2 * time.Second,
            TTL: 10 * time.Minute, KeyStrategy: "user_route", Prefix: "rl", Burst: -1}
    }
    if def.Burst > 0 {
        def.Capacity = def.Burst
    }
    if def.RefillEvery > 0 {
        def.RefillTokens = 1
        def.RefillInterval = def.RefillEvery
    }
    if def.Capacity < 1 {
        def.Capacity = 1
    }
    if def.RefillTokens < 1 {
        def.RefillTokens = 1
    }
    if def.RefillInterval <= 0 {
        def.RefillInterval = time.Second
    }
    minTTL := 5 * def.RefillInterval
    if def.TTL < minTTL {
        def.TTL = minTTL
    }
    return def
}
