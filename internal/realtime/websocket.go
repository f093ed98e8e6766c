package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ClientMessage is what a websocket client may send
type ClientMessage struct {
	Action      string   `json:"action"`
	Collections []string `json:"collections"`
}

type wsConnection struct {
	conn *websocket.Conn
	sub  *Subscription
	hub  *Hub
	log  *logrus.Entry
}

// Handler upgrades the request and streams the changes of the outlet
// returned by outletOf. Clients narrow the stream by sending
// {"action":"watch","collections":[...]}.
func Handler(hub *Hub, outletOf func(*gin.Context) string, log *logrus.Entry) gin.HandlerFunc {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "realtime")

	return func(c *gin.Context) {
		outletID := outletOf(c)
		if outletID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "outlet is required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("Failed to upgrade connection")
			return
		}

		ws := &wsConnection{
			conn: conn,
			sub:  hub.Subscribe(outletID, c.QueryArray("collection")...),
			hub:  hub,
			log:  log.WithField("outlet_id", outletID),
		}
		ws.log.Debug("Subscriber connected")

		go ws.writePump()
		go ws.readPump()
	}
}

func (c *wsConnection) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("WebSocket error")
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.WithError(err).Debug("Ignoring malformed client message")
			continue
		}
		if msg.Action == "watch" {
			c.sub.Watch(msg.Collections...)
		}
	}
}

func (c *wsConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case change, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(change); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
