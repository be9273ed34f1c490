package handlers

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-enrollment/utils/response"
)

// HealthCheck reports whether one backing service is reachable
type HealthCheck func(ctx context.Context) error

// HandleCheckHealth returns the GET /ping handler. Every named check must pass
// within two seconds for a 200.
func HandleCheckHealth(checks map[string]HealthCheck) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(checks))
		var failures []string
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status[name] = err.Error()
				failures = append(failures, name+": "+err.Error())
				continue
			}
			status[name] = "ok"
		}

		if len(failures) > 0 {
			sort.Strings(failures)
			return response.ErrorWithDetails(c, fiber.StatusServiceUnavailable,
				"Service unhealthy", "SERVICE_UNAVAILABLE", strings.Join(failures, "; "))
		}
		return response.Success(c, fiber.Map{"status": "ok", "checks": status})
	}
}
