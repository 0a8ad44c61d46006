package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimit builds an in-memory limiter from a rate string like "30-M".
// Used on the GitHub pass-through: the upstream device-flow endpoint bans
// hammering clients.
func RateLimit(rate string) gin.HandlerFunc {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		panic(err)
	}
	return mgin.NewMiddleware(limiter.New(memory.NewStore(), parsed))
}
