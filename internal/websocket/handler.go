// README: WebSocket endpoint streaming change events to role clients.
package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"kirana/internal/modules/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ParseTopics reads a comma-separated topic list. An empty list subscribes to
// every topic.
func ParseTopics(raw string) ([]notify.Topic, bool) {
	if strings.TrimSpace(raw) == "" {
		return []notify.Topic{notify.TopicRequests, notify.TopicDrivers}, true
	}
	var out []notify.Topic
	for _, part := range strings.Split(raw, ",") {
		t, ok := notify.ParseTopic(strings.TrimSpace(part))
		if !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, true
}

// Handler upgrades GET /api/events?topics=delivery_requests,drivers.
func Handler(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		topics, ok := ParseTopics(c.Query("topics"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "unknown topic"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		sub := hub.Subscribe(topics...)
		if sub == nil {
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			conn.Close()
			return
		}
		client := NewClient(conn, hub, sub)
		go client.WritePump()
		go client.ReadPump()
	}
}
