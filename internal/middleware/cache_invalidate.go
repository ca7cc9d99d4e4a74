package middleware

import (
    "context"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/service-scheduling/internal/config"
    "github.com/iliyamo/service-scheduling/internal/logger"
    "github.com/iliyamo/service-scheduling/internal/service"
)

// SlotCacheInvalidator sits in front of the event publisher.  Booking events
// are only published after their transaction commits, so bumping the cache
// scope of every date the booking touched at that point keeps /v1/slots from
// serving availability older than the last committed change.
type SlotCacheInvalidator struct {
    next  service.EventPublisher
    cfg   config.CacheConfig
    store cacheStore
}

// NewSlotCacheInvalidator wraps next.  With caching disabled or no redis
// client it returns next unchanged.
func NewSlotCacheInvalidator(next service.EventPublisher, cfg config.CacheConfig, rdb *redis.Client) service.EventPublisher {
    if !cfg.Enabled || rdb == nil {
        return next
    }
    return &SlotCacheInvalidator{next: next, cfg: cfg, store: rdb}
}

// Publish retires the cached dates, then forwards the event.  A redis
// failure is logged; the entries then expire with their TTL.
func (s *SlotCacheInvalidator) Publish(ctx context.Context, routingKey string, payload any) error {
    if ev, ok := payload.(service.BookingEvent); ok {
        bumpCtx, cancel := context.WithTimeout(context.Background(), time.Second)
        for _, date := range []string{ev.Date, ev.PreviousDate} {
            if err := BumpCacheScope(bumpCtx, s.cfg, s.store, date); err != nil {
                logger.Log.WithError(err).WithField("date", date).Warn("slot cache invalidation failed")
            }
        }
        cancel()
    }
    if s.next == nil {
        return nil
    }
    return s.next.Publish(ctx, routingKey, payload)
}
