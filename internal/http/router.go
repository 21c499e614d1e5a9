// Package httpapi wires the HTTP transport (Gin) for webhook deployments:
// the Telegram webhook endpoint plus the operational surface (health,
// Prometheus metrics). Cross-cutting concerns follow the same ordering
// everywhere: tracing first, then correlation IDs, logging, recovery, body
// limits, metrics.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-board-bot/internal/config"
	"github.com/tbourn/go-board-bot/internal/http/middleware"
)

// WebhookPath is where Telegram delivers updates.
const WebhookPath = "/telegram/webhook"

// secretTokenHeader carries the value configured via setWebhook; requests
// without the expected value are rejected.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes one decoded Telegram update. *bot.Dispatcher
// satisfies it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
func RegisterRoutes(r *gin.Engine, h UpdateHandler, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
	})
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"code": "method_not_allowed", "message": "method not allowed"})
	})

	r.POST(WebhookPath, webhook(h, cfg.Bot.WebhookSecret))
}

// webhook decodes and dispatches one update. The response is always 200 for
// well-formed requests: Telegram retries non-2xx responses, and handler
// failures are already reported through the dispatcher's own channels, so a
// retry would only produce duplicate work for the dedupe log to drop.
func webhook(h UpdateHandler, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && c.GetHeader(secretTokenHeader) != secret {
			c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "bad secret token"})
			return
		}
		var upd tgbotapi.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "malformed update"})
			return
		}
		h.HandleUpdate(c.Request.Context(), upd)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// limitBody caps the request body size using http.MaxBytesReader. Requests
// exceeding the cap cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
