package gateway

import (
	"sync"
	"time"

	"realm-server/internal/ecs"
	"realm-server/internal/event"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type welcome struct {
	Zone        string     `json:"zone"`
	Session     string     `json:"session"`
	Entity      ecs.Entity `json:"entity"`
	CharacterID int64      `json:"characterId"`
	Name        string     `json:"name"`
	Class       string     `json:"class"`
	Created     bool       `json:"created"`
}

// conn is the zone.Sink of one websocket. Send never blocks the tick: a
// frame that does not fit the buffer is dropped and the zone resends
// whatever state it still considers dirty.
type conn struct {
	ws     *websocket.Conn
	frames chan *event.Frame
	done   chan struct{}

	once      sync.Once
	closeCode int
	closeText string
}

func newConn(ws *websocket.Conn, buffer int) *conn {
	return &conn{
		ws:     ws,
		frames: make(chan *event.Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (c *conn) Send(frame *event.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

// close asks the writer to send a close frame and hang up. Only the first
// call sets the code.
func (c *conn) close(code int, text string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.done)
	})
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.frames:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(envelope{Type: "frame", Payload: frame}); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
			c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// reject closes a connection that never made it into a zone.
func reject(ws *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	ws.Close()
}
