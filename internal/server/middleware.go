package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// requestLogger logs each request at debug level and failures at warn
func requestLogger(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"ip", c.IP(),
		}
		if status >= fiber.StatusBadRequest {
			logger.Warn("request", attrs...)
		} else {
			logger.Debug("request", attrs...)
		}
		return err
	}
}

// rateLimiter limits requests per client IP to perMinute
func rateLimiter(perMinute int) fiber.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		clients     = make(map[string]*client)
		mu          sync.Mutex
		lastCleanup = time.Now()
	)

	return func(c *fiber.Ctx) error {
		ip := c.IP()
		now := time.Now()

		mu.Lock()
		// Forget idle clients
		if now.Sub(lastCleanup) > 5*time.Minute {
			for key, cl := range clients {
				if now.Sub(cl.lastSeen) > 10*time.Minute {
					delete(clients, key)
				}
			}
			lastCleanup = now
		}

		cl, exists := clients[ip]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		mu.Unlock()

		if !cl.limiter.Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, try again later")
		}
		return c.Next()
	}
}
