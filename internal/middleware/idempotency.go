package middleware

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	correlationIDHeader    = "X-Correlation-ID"
	idempotentReplayHeader = "X-Idempotent-Replay"
)

// IdempotencyMiddleware provides idempotency for POST/PATCH/PUT requests using X-Correlation-ID
// If the same correlation ID is received within the TTL, it returns the cached response
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(correlationIDHeader)
		if correlationID == "" {
			// No correlation ID = no idempotency check
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s", c.Path(), correlationID)

		// Check if we have a cached response
		cached, err := redisClient.Get(c.UserContext(), key).Bytes()
		if err == nil && len(cached) > 0 {
			c.Set(idempotentReplayHeader, "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(fiber.StatusOK).Send(cached)
		}

		// Process the request
		if err := c.Next(); err != nil {
			return err
		}

		// Cache successful responses (2xx status codes)
		statusCode := c.Response().StatusCode()
		if statusCode >= 200 && statusCode < 300 {
			// fasthttp reuses the response buffer once the handler returns
			body := append([]byte(nil), c.Response().Body()...)
			if len(body) > 0 {
				go func() {
					bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer cancel()
					if err := redisClient.Set(bgCtx, key, body, ttl).Err(); err != nil {
						log.Printf("Warning: failed to cache idempotent response: %v", err)
					}
				}()
			}
		}

		return nil
	}
}
