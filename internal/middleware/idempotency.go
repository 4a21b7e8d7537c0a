package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const CorrelationIDHeader = "X-Correlation-ID"

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware replays the stored response when a mutating request repeats its X-Correlation-ID
// within ttl. Only 2xx responses are stored. Keys are scoped to the request path and the caller,
// so the middleware must run after the auth middleware of the route.
func IdempotencyMiddleware(redisClient *redis.Client, ttl time.Duration, log zerolog.Logger) fiber.Handler {
	log = log.With().Str("component", "idempotency").Logger()

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(CorrelationIDHeader)
		if correlationID == "" {
			return c.Next()
		}

		key := fmt.Sprintf("idempotency:%s:%s:%s", c.Path(), GetUserID(c), correlationID)
		ctx := c.UserContext()

		if cached, err := redisClient.Get(ctx, key).Bytes(); err == nil && len(cached) > 0 {
			var resp cachedResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				c.Set("X-Idempotent-Replay", "true")
				c.Set(fiber.HeaderContentType, resp.ContentType)
				return c.Status(resp.Status).Send(resp.Body)
			}
		} else if err != nil && err != redis.Nil {
			log.Warn().Err(err).Msg("idempotency lookup failed, processing request")
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		data, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), body...),
		})
		if err != nil {
			return nil
		}

		setCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Set(setCtx, key, data, ttl).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to store idempotent response")
		}
		return nil
	}
}
