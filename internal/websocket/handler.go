package websocket

import (
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Upgrade rejects plain HTTP requests to the socket route.
func Upgrade(ctx *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(ctx) {
		return ctx.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ServeWs runs one chat connection until the peer leaves.
func ServeWs(hub *Hub, conn *websocket.Conn, chat service.IChatService, log logger.ILogger) {
	client := &Client{
		Hub:    hub,
		Conn:   conn,
		chat:   chat,
		logger: log,
		remote: conn.RemoteAddr().String(),
		Send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	if !client.Hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}
