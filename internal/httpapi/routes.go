package httpapi

import (
	"log/slog"
	"net/http"

	"call-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the console engine. gatherer may be nil to skip /metrics.
func NewRouter(h Handlers, log *slog.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	Register(r, h)
	return r
}

// Register wires the console routes.
// Keep this free of business logic. Handlers delegate to the controller.
func Register(r gin.IRouter, h Handlers) {
	v1 := r.Group("/v1/console")
	{
		v1.GET("/state", h.GetState)
		v1.GET("/summary", h.GetSummary)
		v1.GET("/notifications", h.DrainNotifications)
		v1.POST("/dialog", h.SetDialog)
		v1.POST("/playback", h.TogglePlayback)
	}

	outbound := v1.Group("/calls")
	{
		outbound.POST("", h.MakeCall)
		outbound.POST("/:call_sid/end", h.EndActiveCall)
	}

	incoming := v1.Group("/incoming")
	{
		incoming.POST("/:call_sid/answer", h.Answer)
	}

	engaged := v1.Group("/engaged")
	{
		engaged.POST("/respond", h.Respond)
		engaged.POST("/speak", h.Speak)
		engaged.POST("/end", h.EndEngaged)
	}
}
