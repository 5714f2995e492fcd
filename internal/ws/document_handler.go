package ws

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins; rely on the bearer auth middleware.
		return true
	},
}

// DocumentHandler upgrades the request and streams events for the document
// named by the :id path parameter.
func DocumentHandler(hub *DocumentHub) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := strings.TrimSpace(c.Param("id"))
		if documentID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "document id is required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.logger.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}
		client := newDocumentClient(hub, conn, documentID)
		if !hub.add(client) {
			conn.Close()
			return
		}

		go client.writePump()
		client.readPump()
	}
}
