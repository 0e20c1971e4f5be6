// internal/handlers/ws/ws_handler.go
package ws

import (
	"net/http"

	"wifipay-service/internal/pkg/response"
	ws "wifipay-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Buyers connect from tenant storefronts on arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewWSHandler(hub *ws.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{hub: hub, logger: logger}
}

// Payments upgrades the connection and subscribes it to one payment
// reference. Events only signal the buyer to confirm over HTTP, so no
// authentication is needed: knowing the reference is the capability.
func (h *WSHandler) Payments(c *gin.Context) {
	reference := c.Query("reference")
	if reference == "" {
		response.Error(c, http.StatusBadRequest, "missing reference", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ws.NewClient(h.hub, conn, reference).Start()
}
