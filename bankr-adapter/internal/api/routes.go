package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/orders/internal/store"
)

// RegisterRoutes registers all HTTP routes on the Fiber app. nc and st may be
// nil, in which case health reports them as not configured.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, orderHandler *OrderHandler) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(nc, st))

	v1 := app.Group("/api/v1")
	v1.Post("/orders", orderHandler.SubmitOrderHandler)
	v1.Get("/orders", orderHandler.ListOrdersHandler)
	v1.Get("/orders/more", orderHandler.LoadMoreHandler)
	v1.Get("/orders/:orderId", orderHandler.GetOrderHandler)
	v1.Post("/orders/:orderId/cancel", orderHandler.CancelOrderHandler)
	v1.Post("/price", orderHandler.PriceHandler)
}

func healthHandler(nc *nats.Conn, st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := map[string]string{
			"nats":  "ok",
			"store": "ok",
		}
		status := "ok"
		code := fiber.StatusOK

		switch {
		case nc == nil:
			checks["nats"] = "not configured"
		case !nc.IsConnected():
			checks["nats"] = "disconnected"
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		default:
			if err := nc.FlushTimeout(1 * time.Second); err != nil {
				checks["nats"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		if st == nil {
			checks["store"] = "not configured"
		} else {
			healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := st.HealthCheck(healthCtx); err != nil {
				checks["store"] = err.Error()
				status = "degraded"
				code = fiber.StatusServiceUnavailable
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
