package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"
	"textbook-rag-be/pkg/rag/stream"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Client is one chat socket. Each inbound text frame is a chat request and
// each event of its answer goes out as one JSON frame. A new request cancels
// the one still streaming.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	chat   service.IChatService
	logger logger.ILogger
	remote string

	// Send is drained by writePump. Producers block on it when it is full.
	Send chan []byte

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.Conn.Close()
	})
}

// readPump reads chat requests until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.cancelCurrent()
		c.running.Wait()
		c.Hub.remove(c)
		c.stop()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("HTTP", "Chat socket closed unexpectedly", map[string]interface{}{"remote": c.remote, "error": err.Error()})
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var req dto.ChatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reject("Invalid request body")
		return
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		c.reject(err.Error())
		return
	}

	c.cancelCurrent()
	c.running.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.running.Add(1)
	go func() {
		defer c.running.Done()
		defer cancel()
		for ev := range c.chat.Stream(ctx, service.ChatCommandFromRequest(req)) {
			if !c.deliver(ctx, ev) {
				return
			}
		}
	}()
}

func (c *Client) cancelCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Client) reject(message string) {
	c.deliver(context.Background(), stream.ErrorEvent{Message: message, Code: stream.CodeInvalidRequest})
}

func (c *Client) deliver(ctx context.Context, ev stream.Event) bool {
	data, err := stream.Encode(ev)
	if err != nil {
		c.logger.Error("HTTP", "Failed to encode event", map[string]interface{}{"error": err.Error()})
		return true
	}
	// a superseded stream must not reach Send even when it has room
	if ctx.Err() != nil {
		return false
	}
	select {
	case c.Send <- data:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

// writePump writes queued frames and keeps the connection alive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.stop()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
