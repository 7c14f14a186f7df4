package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/z-companion/backend/internal/logger"
	"github.com/zhouzirui/z-companion/backend/internal/middleware"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/service/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	maxFrame   = 64 << 10

	invalidFrameMessage = "I couldn't read that message. Could you send it again?"
)

// Processor runs the reply sequence for one inbound message.
type Processor interface {
	Process(ctx context.Context, userID, content string, emit relay.EmitFunc) error
}

// WebSocketHandler 实时聊天通道处理器
type WebSocketHandler struct {
	processor Processor
	sessions  middleware.SessionResolver
	log       *logger.Logger
	upgrader  websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(processor Processor, sessions middleware.SessionResolver, log *logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		processor: processor,
		sessions:  sessions,
		log:       log.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

// connection serialises writes to one socket.
type connection struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) emit(evt chat.Event) error {
	payload, err := sonic.Marshal(evt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// handleWebSocket 处理WebSocket连接，一个连接即一个会话
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// A missing session is not rejected here: every message then fails the
	// user lookup and the client receives an error event.
	userID, _ := h.sessions.UserID(r)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	c := &connection{id: uuid.NewString(), conn: ws}
	log := h.log.With("connection", c.id, "user", userID)
	log.Info("new connection")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(maxFrame)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, c)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Warn("read error", "error", err)
			}
			log.Info("connection closed")
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg chat.Inbound
		if err := sonic.Unmarshal(data, &msg); err != nil || strings.TrimSpace(msg.Content) == "" {
			log.Debug("invalid frame", "error", err, "size", len(data))
			if err := c.emit(chat.ErrorEvent(invalidFrameMessage, time.Now().UTC())); err != nil {
				log.Warn("write failed", "error", err)
				return
			}
			continue
		}

		// Frames are handled inline, so one message is in flight per connection.
		if err := h.processor.Process(ctx, userID, msg.Content, c.emit); err != nil {
			log.Warn("write failed", "error", err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
