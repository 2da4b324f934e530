package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HandleHealth reports liveness with a process sample
func (ctx *Context) HandleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "time": ctx.Now().UnixMilli()}
	if ctx.Rooms != nil {
		body["rooms"] = ctx.Rooms()
	}
	if ctx.Metrics != nil {
		stats, err := ctx.Metrics.Sample(c.Request.Context())
		if err != nil {
			ctx.Log.Debug("health sample incomplete", zap.Error(err))
		}
		body["process"] = stats
	}
	c.JSON(http.StatusOK, body)
}
