package admin

import (
	"context"
	"fmt"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimiter holds the three rate limiter instances the Admin API uses,
// following the teacher's per-route-group limiter split (internal/v1/
// ratelimit) but collapsed to the three buckets this spec names.
type RateLimiter struct {
	global *limiter.Limiter
	rooms  *limiter.Limiter
	npcs   *limiter.Limiter
}

// NewRateLimiter builds a RateLimiter from formatted rate strings (e.g.
// "1000-M"). When redisClient is non-nil it backs the limiter with Redis so
// limits are shared across replicas; otherwise it falls back to an
// in-process memory store.
func NewRateLimiter(globalRate, roomsRate, npcsRate string, redisClient *redis.Client) (*RateLimiter, error) {
	gRate, err := limiter.NewRateFromFormatted(globalRate)
	if err != nil {
		return nil, fmt.Errorf("admin: invalid global rate limit %q: %w", globalRate, err)
	}
	rRate, err := limiter.NewRateFromFormatted(roomsRate)
	if err != nil {
		return nil, fmt.Errorf("admin: invalid rooms rate limit %q: %w", roomsRate, err)
	}
	nRate, err := limiter.NewRateFromFormatted(npcsRate)
	if err != nil {
		return nil, fmt.Errorf("admin: invalid npcs rate limit %q: %w", npcsRate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		store, err = sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "skyoffice:admin-limiter:"})
		if err != nil {
			return nil, fmt.Errorf("admin: redis limiter store: %w", err)
		}
		logging.Info(context.Background(), "admin: rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "admin: rate limiter using in-process memory store")
	}

	return &RateLimiter{
		global: limiter.New(store, gRate),
		rooms:  limiter.New(store, rRate),
		npcs:   limiter.New(store, nRate),
	}, nil
}

func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc { return mgin.NewMiddleware(rl.global) }
func (rl *RateLimiter) RoomsMiddleware() gin.HandlerFunc  { return mgin.NewMiddleware(rl.rooms) }
func (rl *RateLimiter) NpcsMiddleware() gin.HandlerFunc   { return mgin.NewMiddleware(rl.npcs) }
