package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/sse"
)

// HandleSSE streams rendered room summaries to a spectator
func (ctx *Context) HandleSSE(c *gin.Context) {
	code := c.Param("code")
	r, ok := ctx.loadRoom(c)
	if !ok {
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering in nginx/proxies
	w.WriteHeader(http.StatusOK)
	w.Flush()

	id := uuid.NewString()
	client := make(chan sse.Message, sse.BufferSize)
	reqCtx := c.Request.Context()
	if err := ctx.Hub.AddClient(reqCtx, r.Code, client, id); err != nil {
		ctx.Log.Warn("spectator subscribe failed", zap.String("room", code), zap.Error(err))
		writeEvent(w, sse.EventErrorMessage, err.Error())
		w.Flush()
		return
	}
	defer ctx.Hub.RemoveClient(r.Code, client)
	ctx.Log.Debug("spectator connected", zap.String("room", code), zap.String("spectator", id))

	for {
		select {
		case <-reqCtx.Done():
			ctx.Log.Debug("spectator disconnected", zap.String("room", code), zap.String("spectator", id))
			return
		case msg := <-client:
			writeEvent(w, msg.Event, msg.Data)
			w.Flush()
			if msg.Event == sse.EventRoomClosed {
				return
			}
		}
	}
}

// writeEvent frames data as one SSE event; multi-line data gets one data field per line
func writeEvent(w gin.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\n", event)
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}
