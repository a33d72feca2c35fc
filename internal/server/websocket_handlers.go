package server

import (
	"log"

	"courtyard/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// WebsocketHandler handles WebSocket connections for realtime notifications.
// The caller is subscribed to their private topic, their building topic,
// their role topic and the shared broadcast topic.
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		// Set by WebSocketAuthRequired before the upgrade
		residentIDVal := conn.Locals("residentID")
		if residentIDVal == nil {
			log.Printf("WebSocket: unauthenticated connection attempt")
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}
		resID := residentIDVal.(uuid.UUID)

		if s.hub == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"realtime unavailable"}`))
			_ = conn.Close()
			return
		}

		var bID *uuid.UUID
		if v, ok := conn.Locals("buildingID").(uuid.UUID); ok {
			bID = &v
		}
		role, _ := conn.Locals("role").(string)

		topics := notifications.SubscriptionTopics(resID, bID, role)
		client, err := s.hub.Register(resID, topics, conn)
		if err != nil {
			log.Printf("WebSocket: failed to register resident %s: %v", resID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		// ReadPump blocks until the connection drops and unregisters the client.
		client.ReadPump()
	})
}
