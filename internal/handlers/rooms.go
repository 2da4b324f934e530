package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// qrSize is the edge length of generated QR codes in pixels
const qrSize = 256

// HandleRoom returns the raw room document
func (ctx *Context) HandleRoom(c *gin.Context) {
	r, ok := ctx.loadRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": r.Code, "room": r})
}

// HandleQR renders the room code as a PNG for players to scan
func (ctx *Context) HandleQR(c *gin.Context) {
	r, ok := ctx.loadRoom(c)
	if !ok {
		return
	}
	png, err := qrcode.Encode(r.Code, qrcode.Medium, qrSize)
	if err != nil {
		ctx.Log.Error("qr encode failed", zap.String("room", r.Code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr encode failed"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", png)
}
