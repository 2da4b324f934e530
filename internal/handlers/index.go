package handlers

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/config"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/metrics"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/sse"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// Connector opens one backend connection per websocket client
type Connector func() store.Store

// Context holds shared server dependencies
type Context struct {
	Connect  Connector
	Reader   store.Store // server side connection for read endpoints
	Hub      *sse.Hub
	Metrics  *metrics.Metrics
	Upgrader websocket.Upgrader
	Rooms    func() int // room count for health, nil when unknown
	Log      *zap.Logger
	Now      func() time.Time

	mu     sync.RWMutex
	limits config.RateLimitConfig
}

// SetRateLimit swaps the per-connection budget for new sockets
func (ctx *Context) SetRateLimit(limits config.RateLimitConfig) {
	ctx.mu.Lock()
	ctx.limits = limits
	ctx.mu.Unlock()
}

func (ctx *Context) rateLimit() config.RateLimitConfig {
	ctx.mu.RLock()
	defer ctx.mu.RUnlock()
	return ctx.limits
}

// Router wires every route onto a fresh gin engine
func (ctx *Context) Router(origins []string, wsPath string) *gin.Engine {
	if ctx.Log == nil {
		ctx.Log = zap.NewNop()
	}
	if ctx.Now == nil {
		ctx.Now = time.Now
	}
	if wsPath == "" {
		wsPath = "/ws"
	}

	r := gin.New()
	r.Use(gin.Recovery(), ctx.requestLog())

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/", ctx.HandleIndex)
	r.GET("/healthz", ctx.HandleHealth)
	r.GET(wsPath, ctx.HandleWS)
	r.GET("/rooms/:code", ctx.HandleRoom)
	r.GET("/rooms/:code/qr.png", ctx.HandleQR)
	r.GET("/rooms/:code/events", ctx.HandleSSE)
	if ctx.Metrics != nil {
		r.GET("/metrics", gin.WrapH(ctx.Metrics.Handler()))
	}
	return r
}

// HandleIndex describes the service
func (ctx *Context) HandleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "impostor-docserver",
		"routes":  []string{"/ws", "/rooms/:code", "/rooms/:code/qr.png", "/rooms/:code/events", "/healthz", "/metrics"},
	})
}

func (ctx *Context) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ctx.Log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
