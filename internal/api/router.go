package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-insights-go/internal/ledger"
	"call-insights-go/internal/logger"
)

// Router wires the read-only artifacts API. The /api/runs route only
// exists when a ledger is configured.
func Router(store *Store, lgr *ledger.Ledger, corsAllowed string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(requestLogger(logger.Component("api")))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		MaxAge:       12 * time.Hour,
	}
	if corsAllowed == "" || corsAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{corsAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &Handler{Store: store, Ledger: lgr}

	r.GET("/healthz", h.Healthz)
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/calls", h.CallsList)
		apiGroup.GET("/calls/:file", h.CallDetail)
		apiGroup.GET("/analytics/summary", h.AnalyticsSummary)
		if lgr != nil {
			apiGroup.GET("/runs", h.RunsList)
		}
	}
	return r
}

const requestIDKey = "request_id"

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.WithFields(logrus.Fields{
			"req_id":     c.GetString(requestIDKey),
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("request")
	}
}
