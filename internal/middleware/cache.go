package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/service-scheduling/internal/config"
    "github.com/iliyamo/service-scheduling/internal/logger"
)

// captureWriter tees the response body into buf, up to limit bytes, while
// writing it through to the client.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// cacheStore is the part of *redis.Client the response cache uses.
type cacheStore interface {
    Get(ctx context.Context, key string) *redis.StringCmd
    SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
    Incr(ctx context.Context, key string) *redis.IntCmd
}

// ScopeFunc names the slice of cached responses a request belongs to, for
// example the date whose availability it reads.  Every response cached under
// a scope is retired at once by BumpCacheScope.  "" means unscoped.
type ScopeFunc func(c echo.Context) string

// QueryScope scopes responses by the value of one query parameter.
func QueryScope(param string) ScopeFunc {
    return func(c echo.Context) string { return c.QueryParam(param) }
}

func generationKey(cfg config.CacheConfig, scope string) string {
    return cfg.Prefix + ":gen:" + scope
}

// BumpCacheScope retires every response cached under scope.  Responses
// already stored stay in redis until their TTL but are never served again.
func BumpCacheScope(ctx context.Context, cfg config.CacheConfig, store cacheStore, scope string) error {
    if scope == "" {
        return nil
    }
    return store.Incr(ctx, generationKey(cfg, scope)).Err()
}

// cacheKeyFrom hashes the parts of the request selected by the strategy.  A
// scoped key embeds the scope's current generation.
func cacheKeyFrom(ctx context.Context, cfg config.CacheConfig, store cacheStore, scope ScopeFunc, c echo.Context) (string, error) {
    r := c.Request()
    var tail []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        tail = []string{"route", c.Path()}
    case "method_route_query":
        tail = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
    default: // "route_query"
        tail = []string{"route", c.Path(), "q", r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(tail, ":")))

    name := ""
    if scope != nil {
        name = scope(c)
    }
    if name == "" {
        return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:]), nil
    }
    gen, err := store.Get(ctx, generationKey(cfg, name)).Result()
    if errors.Is(err, redis.Nil) {
        gen = "0"
    } else if err != nil {
        return "", err
    }
    return fmt.Sprintf("%s:%s:%s:%x", cfg.Prefix, name, gen, sum[:]), nil
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
    hdrJSON, err := json.Marshal(header)
    if err != nil {
        return nil, err
    }
    out := make([]byte, 8, 8+len(hdrJSON)+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
    out = append(out, hdrJSON...)
    return append(out, body...), nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
    if len(bs) < 8 {
        return 0, nil, nil, false
    }
    status = int(binary.BigEndian.Uint32(bs[0:4]))
    hlen := int(binary.BigEndian.Uint32(bs[4:8]))
    if hlen < 0 || 8+hlen > len(bs) {
        return 0, nil, nil, false
    }
    header = make(http.Header)
    if hlen > 0 {
        if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
            return 0, nil, nil, false
        }
    }
    return status, header, bs[8+hlen:], true
}

// NewRedisCache caches successful responses of the configured methods.  Only
// complete bodies are stored; a response larger than MaxBodyBytes is served
// but not cached.  scope may be nil.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, scope ScopeFunc) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return passThrough
    }
    return newResponseCache(cfg, rdb, scope)
}

func newResponseCache(cfg config.CacheConfig, store cacheStore, scope ScopeFunc) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            ctx := c.Request().Context()
            key, err := cacheKeyFrom(ctx, cfg, store, scope, c)
            if err != nil {
                logger.Log.WithError(err).Debug("response cache unavailable")
                return next(c)
            }

            if bs, err := store.Get(ctx, key).Bytes(); err == nil {
                if status, hdr, body, ok := decodePayload(bs); ok {
                    for k, vals := range hdr {
                        if strings.EqualFold(k, "Content-Length") || strings.EqualFold(k, "X-Cache") {
                            continue
                        }
                        for _, v := range vals {
                            c.Response().Header().Add(k, v)
                        }
                    }
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    _, _ = c.Response().Write(body)
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            payload, err := encodePayload(cw.status, c.Response().Header().Clone(), cw.buf.Bytes())
            if err != nil {
                return nil
            }
            storeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
            defer cancel()
            if err := store.SetEx(storeCtx, key, payload, cfg.TTL).Err(); err != nil {
                logger.Log.WithError(err).Debug("response cache store failed")
            }
            return nil
        }
    }
}
