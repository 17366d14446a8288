package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/events"
)

// streamTopic subscribes to topic, replays any persisted events newer
// than the client's Last-Event-ID (reconnect catchup), then blocks
// serving the live stream until the client disconnects.
func (s *Server) streamTopic(c *gin.Context, topic string) {
	sub := s.bus.Subscribe(topic)
	defer sub.Close()

	if since := lastEventID(c); since > 0 {
		catchup, err := s.publisher.Catchup(c.Request.Context(), topic, since)
		if err == nil {
			for _, ev := range catchup {
				writeCatchupFrame(c.Writer, ev)
			}
			if f, ok := c.Writer.(http.Flusher); ok {
				f.Flush()
			}
		}
	}

	_ = events.ServeSSE(c.Writer, c.Request, sub)
}

func lastEventID(c *gin.Context) int64 {
	raw := c.GetHeader("Last-Event-ID")
	if raw == "" {
		raw = c.Query("since")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func writeCatchupFrame(w http.ResponseWriter, ev events.CatchupEvent) {
	w.Write([]byte("id: " + strconv.FormatInt(ev.ID, 10) + "\n"))
	w.Write([]byte("event: " + ev.Type + "\n"))
	w.Write([]byte("data: "))
	w.Write(ev.Payload)
	w.Write([]byte("\n\n"))
}
