// Package rest wires the HTTP surface: payment endpoints, provider webhooks,
// health probes and the Prometheus scrape endpoint.
package rest

import (
	"agropay/internal/controller/rest/handlers"
	"agropay/pkg/health"
	"agropay/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	payment  handlers.PaymentHandler
	callback handlers.CallbackHandler
	health   *health.Registry
}

func NewRouter(payment handlers.PaymentHandler, callback handlers.CallbackHandler, healthReg *health.Registry) *Router {
	return &Router{
		payment:  payment,
		callback: callback,
		health:   healthReg,
	}
}

func (r *Router) SetUp(engine *gin.Engine) {
	engine.GET("/health/live", health.LivenessHandler())
	engine.GET("/health/ready", health.ReadinessHandler(r.health, health.DefaultTimeout))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	payments := engine.Group("/payments")
	{
		payments.POST("", r.payment.Process)
		payments.POST("/disbursements", r.payment.Disburse)
		payments.GET("/:provider/status/:reference", r.payment.Status)
	}

	engine.GET("/providers/detect", r.payment.Detect)
	engine.POST("/webhooks/payments/:provider", r.callback.Receive)
}
