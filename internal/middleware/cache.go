package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/binary"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/transit-seat-reservation/internal/config"
)

// captureWriter captures the response body and status while forwarding
// both to the client, up to a configured byte limit.
type captureWriter struct {
    http.ResponseWriter
    status int
    buf    bytes.Buffer
    size   int64
    limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
    cw.status = code
    cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
    if cw.limit <= 0 || cw.size < cw.limit {
        remain := cw.limit - cw.size
        if cw.limit <= 0 || int64(len(b)) <= remain {
            cw.buf.Write(b)
        } else if remain > 0 {
            cw.buf.Write(b[:remain])
        }
    }
    // Always count written bytes, even past the capture limit, so the
    // size check downstream can tell a truncated capture from a
    // complete one.
    cw.size += int64(len(b))
    return cw.ResponseWriter.Write(b)
}

// cacheKeyFrom builds a stable cache key honoring prefix and strategy.
// The concrete request path is used rather than the route pattern so
// parameterized routes cache per resource, and ver namespaces the key
// so bumping the version orphans every existing entry at once.
func cacheKeyFrom(cfg config.CacheConfig, c echo.Context, ver string) string {
    r := c.Request()
    route := r.URL.Path
    query := r.URL.RawQuery

    parts := []string{cfg.Prefix, "v", ver}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = append(parts, "route", route)
    case "method_route_query":
        parts = append(parts, "method", r.Method, "route", route, "q", query)
    default: // "route_query"
        parts = append(parts, "route", route, "q", query)
    }

    tail := strings.Join(parts[1:], ":")
    sum := sha1.Sum([]byte(tail))
    return fmt.Sprintf("%s:%x", parts[0], sum[:])
}

// versionKey names the Redis counter namespacing all cache entries.
func versionKey(cfg config.CacheConfig) string {
    return cfg.Prefix + ":ver"
}

// cacheVersion reads the current namespace version. A missing counter
// reads as "0" so caching works before the first invalidation.
func cacheVersion(ctx context.Context, rdb *redis.Client, cfg config.CacheConfig) string {
    v, err := rdb.Get(ctx, versionKey(cfg)).Result()
    if err != nil {
        return "0"
    }
    return v
}

// NewCacheInvalidator returns a function that drops every cached
// catalog response by bumping the namespace version. Mutation handlers
// call it after a successful create, lock or book so stale seat state
// is never replayed from the cache. Returns nil when caching is off.
func NewCacheInvalidator(cfg config.CacheConfig, rdb *redis.Client) func(ctx context.Context) {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    key := versionKey(cfg)
    return func(ctx context.Context) {
        _ = rdb.Incr(ctx, key).Err()
    }
}

// encodePayload packs: [4 bytes status][body]
func encodePayload(status int, body []byte) []byte {
    out := make([]byte, 4+len(body))
    binary.BigEndian.PutUint32(out[0:4], uint32(status))
    copy(out[4:], body)
    return out
}

func decodePayload(bs []byte) (status int, body []byte, ok bool) {
    if len(bs) < 4 {
        return 0, nil, false
    }
    return int(binary.BigEndian.Uint32(bs[0:4])), bs[4:], true
}

// NewRedisCache caches successful catalog responses in Redis for the
// configured TTL. Only the configured methods are considered and only
// 200 responses are stored. Catalog bodies embed live seat state, so
// mutation handlers must bump the namespace version through
// NewCacheInvalidator; a cached body otherwise outlives the lock or
// booking that changed the seats it shows. The lock/book endpoints
// must never be routed through this middleware.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc {
            return func(c echo.Context) error { return next(c) }
        }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }
    maxBody := int64(cfg.MaxBodyBytes)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }

            ctx := c.Request().Context()
            key := cacheKeyFrom(cfg, c, cacheVersion(ctx, rdb, cfg))

            if bs, err := rdb.Get(ctx, key).Bytes(); err == nil {
                if status, body, ok := decodePayload(bs); ok {
                    c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
                    c.Response().Header().Set("X-Cache", "HIT")
                    c.Response().WriteHeader(status)
                    if len(body) > 0 {
                        _, _ = c.Response().Write(body)
                    }
                    return nil
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")

            if err := next(c); err != nil {
                return err
            }

            if cw.status == http.StatusOK && (maxBody <= 0 || cw.size <= maxBody) {
                payload := encodePayload(cw.status, cw.buf.Bytes())
                _ = rdb.SetEx(context.Background(), key, payload, ttl).Err()
            }
            return nil
        }
    }
}
