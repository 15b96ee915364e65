package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/d60-Lab/broadcast-link/internal/cache"
	"github.com/d60-Lab/broadcast-link/internal/repository"
	"github.com/d60-Lab/broadcast-link/pkg/auth"
	"github.com/d60-Lab/broadcast-link/pkg/response"
)

const (
	cacheKey    = "broadcast_cache"
	resolverKey = "equivalence_resolver"
	userKey     = "auth_user"
)

// RequestCache 每个请求构造一份广播数据缓存与等价解析器。
// 缓存生命周期严格等于一次请求，绝不跨请求共享。
func RequestCache(repo repository.BroadcastRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		cc := cache.NewBroadcastCache(repo)
		c.Set(cacheKey, cc)
		c.Set(resolverKey, cache.NewEquivalenceResolver(cc))
		c.Next()
	}
}

// CacheFrom 取出本请求的广播数据缓存
func CacheFrom(c *gin.Context) *cache.BroadcastCache {
	return c.MustGet(cacheKey).(*cache.BroadcastCache)
}

// ResolverFrom 取出本请求的等价解析器
func ResolverFrom(c *gin.Context) *cache.EquivalenceResolver {
	return c.MustGet(resolverKey).(*cache.EquivalenceResolver)
}

// JWTAuth 维护接口鉴权：Authorization: Bearer <token>
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		claims, err := auth.ParseToken(secret, token)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(userKey, claims.Username)
		c.Next()
	}
}

// RateLimit 令牌桶限流（用于扫描 step 接口，防止轮询打爆存储）
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			response.TooManyRequests(c, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
