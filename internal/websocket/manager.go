package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
)

// Client 表示 WebSocket 客户端
type Client struct {
	ID       string
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   uint
	Username string
	RoleName string

	room      string
	lastSeen  atomic.Int64 // unix 纳秒
	closeOnce sync.Once
}

// touch 记录客户端的最近活动时间
func (c *Client) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen 客户端最近一次活动的时间
func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Manager 管理 WebSocket 连接
type Manager struct {
	mutex sync.RWMutex
	// 所有客户端
	clients map[string]*Client
	// 按房间分组的客户端
	rooms map[string]map[string]*Client
}

// BroadcastMessage 广播消息结构
type BroadcastMessage struct {
	Room    string      `json:"room,omitempty"`
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
	Exclude string      `json:"exclude,omitempty"`
}

// NewManager 创建新的管理器
func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register 注册客户端并加入 room
func (m *Manager) Register(client *Client, room string) {
	client.touch()

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clients[client.ID] = client
	m.joinLocked(client, room)

	logger.L().Debug("WebSocket客户端注册",
		zap.String("id", client.ID), zap.String("user", client.Username), zap.String("room", room))
}

// Unregister 注销客户端并关闭发送通道，可重复调用
func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.removeLocked(client)
}

func (m *Manager) removeLocked(client *Client) {
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	m.leaveLocked(client)
	client.closeOnce.Do(func() { close(client.Send) })

	logger.L().Debug("WebSocket客户端注销", zap.String("id", client.ID), zap.String("user", client.Username))
}

func (m *Manager) joinLocked(client *Client, room string) {
	m.leaveLocked(client)
	client.room = room
	if room == "" {
		return
	}
	if _, ok := m.rooms[room]; !ok {
		m.rooms[room] = make(map[string]*Client)
	}
	m.rooms[room][client.ID] = client
}

func (m *Manager) leaveLocked(client *Client) {
	if client.room == "" {
		return
	}
	if room, ok := m.rooms[client.room]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(m.rooms, client.room)
		}
	}
	client.room = ""
}

// JoinRoom 把客户端移到另一个房间
func (m *Manager) JoinRoom(client *Client, room string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.joinLocked(client, room)
}

// RoomOf 返回客户端当前所在的房间
func (m *Manager) RoomOf(client *Client) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return client.room
}

// LeaveRoom 让客户端离开当前房间，返回原来的房间名
func (m *Manager) LeaveRoom(client *Client) string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	room := client.room
	m.leaveLocked(client)
	return room
}

// Broadcast 广播消息，Room 为空时发给所有客户端
// 发送不会阻塞，缓冲区已满的客户端会被断开
func (m *Manager) Broadcast(message *BroadcastMessage) {
	payload := MarshalMessage(message.Type, message.Content)

	var slow []*Client
	m.mutex.RLock()
	targets := m.clients
	if message.Room != "" {
		targets = m.rooms[message.Room]
	}
	for id, client := range targets {
		if id == message.Exclude {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	m.mutex.RUnlock()

	if len(slow) > 0 {
		m.mutex.Lock()
		for _, client := range slow {
			logger.L().Warn("WebSocket客户端发送缓冲区已满，断开连接", zap.String("id", client.ID))
			m.removeLocked(client)
		}
		m.mutex.Unlock()
	}
}

// Send 向单个客户端发送消息，客户端已注销时忽略
func (m *Manager) Send(client *Client, msgType string, content interface{}) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	select {
	case client.Send <- MarshalMessage(msgType, content):
	default:
	}
}

// checkHeartbeats 断开超过 timeout 没有活动的客户端
func (m *Manager) checkHeartbeats(timeout time.Duration) int {
	deadline := time.Now().Add(-timeout)

	m.mutex.Lock()
	defer m.mutex.Unlock()

	expired := 0
	for id, client := range m.clients {
		if client.LastSeen().Before(deadline) {
			logger.L().Info("WebSocket客户端心跳超时，正在断开连接", zap.String("id", id))
			if client.Conn != nil {
				client.Conn.Close()
			}
			m.removeLocked(client)
			expired++
		}
	}
	return expired
}

// StartHeartbeat 定期检查心跳，直到 ctx 结束
func (m *Manager) StartHeartbeat(ctx context.Context, interval, timeout time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkHeartbeats(timeout)
			}
		}
	}()
}

// GetRoomClients 获取房间中的所有客户端
func (m *Manager) GetRoomClients(room string) []*Client {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	clients := make([]*Client, 0, len(m.rooms[room]))
	for _, client := range m.rooms[room] {
		clients = append(clients, client)
	}
	return clients
}

// GetClient 根据ID获取客户端
func (m *Manager) GetClient(clientID string) (*Client, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if client, ok := m.clients[clientID]; ok {
		return client, nil
	}
	return nil, errors.New("客户端不存在")
}

// ClientCount 获取连接的客户端总数
func (m *Manager) ClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}
