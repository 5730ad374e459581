package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// LedgerChecker reports whether the ledger's backing file is reachable.
type LedgerChecker interface {
	Check() error
}

// RegisterHealthRoutes mounts liveness and readiness probes. rdb may be nil when
// rate limiting runs in-process.
func RegisterHealthRoutes(app fiber.Router, ledger LedgerChecker, rdb *redis.Client) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(ledger, rdb))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(ledger LedgerChecker, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := fiber.Map{}
		ready := true

		ledgerStatus := "ok"
		if ledger == nil || ledger.Check() != nil {
			ledgerStatus = "down"
			ready = false
		}
		checks["ledger"] = ledgerStatus

		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
			defer cancel()

			redisStatus := "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				redisStatus = "down"
				ready = false
			}
			checks["redis"] = redisStatus
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
