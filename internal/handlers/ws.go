package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/remote"
)

// HandleWS upgrades to the store protocol; each socket gets its own backend connection
func (ctx *Context) HandleWS(c *gin.Context) {
	ws, err := ctx.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		ctx.Log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	opts := remote.ServeOptions{Log: ctx.Log.With(zap.String("conn", id))}
	if limits := ctx.rateLimit(); limits.Enabled {
		opts.Limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), limits.Burst)
	}
	if ctx.Metrics != nil {
		opts.Observe = ctx.Metrics.ObserveRequest
		ctx.Metrics.ConnectionOpened()
		defer ctx.Metrics.ConnectionClosed()
	}

	ctx.Log.Info("store client connected", zap.String("conn", id), zap.String("client_ip", c.ClientIP()))
	if err := remote.Serve(c.Request.Context(), id, ws, ctx.Connect(), opts); err != nil {
		ctx.Log.Warn("store client dropped", zap.String("conn", id), zap.Error(err))
		return
	}
	ctx.Log.Info("store client disconnected", zap.String("conn", id))
}
