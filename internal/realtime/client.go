package realtime

import (
	"encoding/json"
	"time"

	"parkwatch/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxControlMessageSize = 512
)

// controlMessage is what clients send over the socket to manage their
// subscriptions.
type controlMessage struct {
	Action string `json:"action"`
	LotID  string `json:"lot_id"`
}

const (
	actionSubscribe   = "subscribe"
	actionUnsubscribe = "unsubscribe"
)

// pushMessage is the envelope for server pushes, so clients can dispatch on
// type if other push kinds are added later.
type pushMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const pushTypeAvailability = "availability"

// Client pumps between one websocket connection and the hub. readPump handles
// subscribe/unsubscribe controls; writePump drains the subscriber channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *Subscriber
	log  *logger.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, sub *Subscriber, log *logger.Logger) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		sub:  sub,
		log:  log,
	}
}

func (c *Client) run() {
	go c.writePump()
	c.readPump()
}

// readPump owns the connection's read side. When it returns, the client is
// fully detached: all subscriptions dropped, event channel closed.
func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.sub.ID())
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxControlMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Unexpected websocket close", "client_id", c.sub.ID(), "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(payload, &msg); err != nil || msg.LotID == "" {
			c.log.Warn("Ignoring malformed control message", "client_id", c.sub.ID())
			continue
		}

		switch msg.Action {
		case actionSubscribe:
			c.hub.Subscribe(c.sub.ID(), msg.LotID)
			c.log.Debug("Client subscribed", "client_id", c.sub.ID(), "lot_id", msg.LotID)
		case actionUnsubscribe:
			c.hub.Unsubscribe(c.sub.ID(), msg.LotID)
			c.log.Debug("Client unsubscribed", "client_id", c.sub.ID(), "lot_id", msg.LotID)
		default:
			c.log.Warn("Unknown control action", "client_id", c.sub.ID(), "action", msg.Action)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.sub.Events():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(pushMessage{Type: pushTypeAvailability, Data: event}); err != nil {
				c.log.Warn("Failed to write event", "client_id", c.sub.ID(), "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
