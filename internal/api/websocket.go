// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/TutorMindMCP/internal/services"
	"github.com/Corphon/TutorMindMCP/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该进行更严格的检查
		return true
	},
}

// wsMessage 客户端发来的消息
type wsMessage struct {
	Type       string `json:"type"` // query, ping
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Text       string `json:"text,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
	IsFollowUp bool   `json:"is_follow_up,omitempty"`
	Domain     string `json:"domain,omitempty"`
}

// wsClient 一个会话通道上的客户端连接
type wsClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	closed    int32
}

func (c *wsClient) close() {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.conn.Close()
	}
}

func (c *wsClient) isClosed() bool {
	return atomic.LoadInt32(&c.closed) == 1
}

func (c *wsClient) sendJSON(payload interface{}) {
	if c.isClosed() {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// 发送缓冲满时丢弃，避免阻塞读循环
	}
}

// WSManager 管理按会话分组的WebSocket连接
type WSManager struct {
	mu          sync.RWMutex
	connections map[string]map[*wsClient]bool // sessionID -> clients
}

// NewWSManager 创建WebSocket管理器
func NewWSManager() *WSManager {
	return &WSManager{
		connections: make(map[string]map[*wsClient]bool),
	}
}

func (m *WSManager) register(client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connections[client.sessionID] == nil {
		m.connections[client.sessionID] = make(map[*wsClient]bool)
	}
	m.connections[client.sessionID][client] = true
}

func (m *WSManager) unregister(client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if clients, exists := m.connections[client.sessionID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(m.connections, client.sessionID)
		}
	}
}

// ConnectionCount 返回当前连接总数
func (m *WSManager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, clients := range m.connections {
		count += len(clients)
	}
	return count
}

// SessionWebSocket 会话WebSocket入口
// 客户端通过type=query的消息驱动导学管道，结果推回同一连接
func (h *Handler) SessionWebSocket(manager *WSManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			respondBadRequest(c, "缺少session_id参数")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			utils.GetLogger().Warnf("WebSocket升级失败: %v", err)
			return
		}

		client := &wsClient{
			conn:      conn,
			sessionID: sessionID,
			send:      make(chan []byte, 64),
		}
		manager.register(client)

		go h.writeLoop(client, manager)
		h.readLoop(client)
	}
}

func (h *Handler) readLoop(client *wsClient) {
	defer client.close()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.sendJSON(gin.H{"type": "error", "error": "无效的消息格式"})
			continue
		}

		switch msg.Type {
		case "ping":
			client.sendJSON(gin.H{"type": "pong"})
		case "query":
			result, err := h.TutoringService.ProcessQuery(context.Background(), services.QueryRequest{
				SessionID:  client.sessionID,
				UserID:     msg.UserID,
				Text:       msg.Text,
				ImageURL:   msg.ImageURL,
				AudioURL:   msg.AudioURL,
				IsFollowUp: msg.IsFollowUp,
				Domain:     msg.Domain,
			})
			if err != nil {
				client.sendJSON(gin.H{"type": "error", "error": err.Error()})
				continue
			}
			client.sendJSON(gin.H{"type": "answer", "data": result})
		default:
			client.sendJSON(gin.H{"type": "error", "error": "未知的消息类型: " + msg.Type})
		}
	}
}

func (h *Handler) writeLoop(client *wsClient, manager *WSManager) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		manager.unregister(client)
		client.close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
