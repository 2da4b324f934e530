package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
)

// validCode reports whether code is a six digit room code
func validCode(code string) bool {
	n, err := strconv.Atoi(code)
	return err == nil && len(code) == 6 && n >= game.RoomCodeMin && n <= game.RoomCodeMax
}

// loadRoom reads the room named in the URL, writing the error response itself
func (ctx *Context) loadRoom(c *gin.Context) (*models.Room, bool) {
	code := c.Param("code")
	if !validCode(code) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room code"})
		return nil, false
	}
	r, err := room.Load(c.Request.Context(), ctx.Reader, code)
	switch {
	case errors.Is(err, game.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	case errors.Is(err, context.Canceled):
		c.Status(499)
		return nil, false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return r, true
}
