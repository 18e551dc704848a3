package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/chainduel/backend/internal/apperr"
	"github.com/chainduel/backend/internal/models"
	"github.com/chainduel/backend/internal/queue"
	"github.com/chainduel/backend/internal/session"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks are handled by the CORS layer
	},
}

// snapshot is the first frame of every subscription, so a client that missed
// events while connecting starts from current state.
type snapshot struct {
	Type    string              `json:"type"`
	Entry   *models.QueueEntry  `json:"entry,omitempty"`
	Session *models.GameSession `json:"session,omitempty"`
}

// ServeQueue subscribes a client to updates for one queue entry. If the
// socket drops while the entry is still waiting, the player is removed from
// the queue best-effort; the sweeper remains the backstop.
func ServeQueue(hub *Hub, qsvc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		queueID := c.Param("id")
		res, err := qsvc.Poll(c.Request.Context(), queueID)
		if err != nil {
			abortWS(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for queue %s: %v", queueID, err)
			return
		}

		topics := []string{queueTopic(queueID)}
		if res.Session != nil {
			topics = append(topics, sessionTopic(res.Session.ID))
		}
		client := &Client{
			hub:      hub,
			conn:     conn,
			send:     make(chan []byte, 16),
			topics:   topics,
			queueID:  queueID,
			playerID: res.Entry.PlayerID,
			onClose: func(cl *Client) {
				leaveIfStillWaiting(qsvc, cl)
			},
		}
		client.tracker.ApplyQueue(res.Entry.Status)
		if res.Session != nil {
			client.tracker.ApplySession(res.Session.Status)
		}
		hub.register(client)
		client.enqueueMessage(snapshot{Type: "snapshot", Entry: res.Entry, Session: res.Session})

		go client.writePump()
		go client.readPump()
	}
}

// ServeSession subscribes a client to updates for one session.
func ServeSession(hub *Hub, ssvc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		sess, err := ssvc.Get(c.Request.Context(), sessionID)
		if err != nil {
			abortWS(c, err)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for session %s: %v", sessionID, err)
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			send:   make(chan []byte, 16),
			topics: []string{sessionTopic(sessionID)},
		}
		client.tracker.ApplySession(sess.Status)
		hub.register(client)
		client.enqueueMessage(snapshot{Type: "snapshot", Session: sess})

		go client.writePump()
		go client.readPump()
	}
}

// leaveIfStillWaiting implements the best-effort leave on disconnect:
// cancellation while only queued should free the entry promptly, but
// correctness does not depend on it.
func leaveIfStillWaiting(qsvc *queue.Service, cl *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, status, err := qsvc.PlayerOf(ctx, cl.queueID)
	if err != nil || status != models.QueueWaiting {
		return
	}
	if err := qsvc.Leave(ctx, cl.playerID); err != nil {
		log.Printf("[WS] Best-effort leave failed for player %d: %v", cl.playerID, err)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Subscriptions are read-only; drain until the peer goes away.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Unexpected close: %v", err)
			}
			return
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

func abortWS(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}
