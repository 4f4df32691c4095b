package httpapi

import (
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"chat-relay/services"
	"chat-relay/sink"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Server binds the relay's external operations to HTTP and WebSocket:
// POST /send (submit), GET /history (catch-up), GET /events (subscribe).
// Clients must query /history after every (re)connect to /events; the live
// stream alone is best effort.
type Server struct {
	log                  *slog.Logger
	service              services.IChatService
	connectionBufferSize int
	upgrader             websocket.Upgrader
}

func NewServer(log *slog.Logger, service services.IChatService, connectionBufferSize int) *Server {
	return &Server{
		log:                  log,
		service:              service,
		connectionBufferSize: connectionBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/healthz", s.handleHealth)
	router.POST("/send", s.handleSend)
	router.GET("/history", s.handleHistory)
	router.GET("/events", s.handleEvents)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "chat relay running")
}

// handleSend is the producer-facing ingestion entry point. A duplicate
// submission answers success, so producers can resend blindly on timeout.
func (s *Server) handleSend(c *gin.Context) {
	var msg domain.Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message format"})
		return
	}
	if err := s.service.Submit(c.Request.Context(), msg); err != nil {
		s.log.Warn("submission rejected", "message_id", msg.ID, "error", err)
		c.JSON(apperrors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleHistory(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	var cursor *string
	if cur := c.Query("cursor"); cur != "" {
		cursor = &cur
	}

	messages, next, err := s.service.History(roomID, limit, cursor)
	if err != nil {
		s.log.Error("history query failed", "room_id", roomID, "error", err)
		c.JSON(apperrors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	response := gin.H{"messages": messages}
	if next != nil {
		response["cursor"] = *next
	}
	c.JSON(http.StatusOK, response)
}

type eventEnvelope struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	Message *domain.Message `json:"message,omitempty"`
}

// handleEvents upgrades to WebSocket and streams admitted messages for one
// room until the peer goes away. The subscription only covers messages
// admitted after the upgrade; the client merges /history by message id to
// cover the gap.
func (s *Server) handleEvents(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roomId required"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "room_id", roomID, "error", err)
		return
	}
	defer func() {
		_ = ws.Close()
	}()

	channel := sink.NewChannel(s.connectionBufferSize)
	handle := s.service.JoinRoom(roomID, channel)
	defer s.service.LeaveRoom(roomID, handle)

	if err := ws.WriteJSON(eventEnvelope{Type: "connected", RoomID: roomID}); err != nil {
		return
	}

	// Read pump: the stream is write-only for us, but reading is the only
	// way to notice the peer closing the connection.
	peerGone := make(chan struct{})
	go func() {
		defer close(peerGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-peerGone:
			s.log.Debug("subscriber disconnected", "room_id", roomID, "handle", handle)
			return
		case <-c.Request.Context().Done():
			return
		case evt := <-channel.Events:
			msg := evt.Message
			if err := ws.WriteJSON(eventEnvelope{Type: "new_message", Message: &msg}); err != nil {
				s.log.Warn("failed to push event to stream",
					"room_id", roomID, "handle", handle, "error", err)
				return
			}
		}
	}
}
