package websocket

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/mcparse"
	"city.newnan/mc-toolbox/internal/middleware"
)

// MessageType 消息类型
const (
	MessageTypePing     = "ping"     // 心跳消息
	MessageTypePong     = "pong"     // 心跳响应
	MessageTypeJoin     = "join"     // 加入房间
	MessageTypeLeave    = "leave"    // 离开房间
	MessageTypeNotify   = "notify"   // 通知
	MessageTypeError    = "error"    // 错误
	MessageTypeCommand  = "command"  // 服务器命令
	MessageTypeResponse = "response" // 命令结果
	MessageTypeStatus   = "status"   // 服务器状态
	MessageTypeLog      = "log"      // 服务器日志
)

// ConsoleRoom 默认加入的控制台房间，命令结果在这里广播
const ConsoleRoom = "console"

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = 30 * time.Second
	sendBuffer    = 256
	maxCommandLen = 1000
)

// Message WebSocket消息结构
type Message struct {
	Type    string      `json:"type"`
	Content interface{} `json:"content"`
}

// CommandResult 命令执行结果，广播给房间内的所有客户端
type CommandResult struct {
	From    string `json:"from"`
	Command string `json:"command"`
	Output  string `json:"output"` // 服务器原始输出，保留 § 颜色代码
	Plain   string `json:"plain"`  // 去掉颜色代码后的输出
	Error   string `json:"error,omitempty"`
	Time    string `json:"time"`
}

// Commander 执行一条服务器命令
type Commander interface {
	ExecuteCommand(cmd string) (string, error)
}

// Handler 网页控制台的 WebSocket 入口
type Handler struct {
	manager  *Manager
	cmd      Commander
	upgrader websocket.Upgrader
}

// NewHandler 创建处理器，cmd 为 nil 时拒绝所有命令
func NewHandler(manager *Manager, cmd Commander) *Handler {
	return &Handler{
		manager: manager,
		cmd:     cmd,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 允许所有域的请求
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP 升级连接并开始收发消息
func (h *Handler) ServeHTTP(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.L().Warn("升级WebSocket连接失败", zap.Error(err))
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		UserID:   middleware.GetCurrentUserID(c),
		Username: middleware.GetCurrentUsername(c),
		RoleName: middleware.GetCurrentRole(c),
	}

	room := c.DefaultQuery("room", ConsoleRoom)
	h.manager.Register(client, room)
	h.manager.Send(client, MessageTypeJoin, map[string]interface{}{
		"message":  fmt.Sprintf("欢迎 %s!", client.Username),
		"clientID": client.ID,
		"room":     room,
	})

	go h.writePump(client)
	go h.readPump(client)
}

// readPump 从WebSocket连接读取消息
func (h *Handler) readPump(c *Client) {
	defer func() {
		h.manager.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.L().Warn("读取WebSocket消息错误", zap.Error(err))
			}
			return
		}
		c.touch()
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(c, data)
	}
}

// writePump 向WebSocket连接写入消息，每条消息一帧
func (h *Handler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (h *Handler) handleMessage(c *Client, data []byte) {
	var message Message
	if err := sonic.Unmarshal(data, &message); err != nil {
		h.manager.Send(c, MessageTypeError, "无效的消息格式")
		return
	}

	switch message.Type {
	case MessageTypePing:
		h.manager.Send(c, MessageTypePong, nil)

	case MessageTypeJoin:
		content, _ := message.Content.(map[string]interface{})
		roomName, _ := content["room"].(string)
		if roomName == "" {
			h.manager.Send(c, MessageTypeError, "缺少房间名")
			return
		}
		h.manager.JoinRoom(c, roomName)
		h.manager.Send(c, MessageTypeJoin, map[string]string{
			"room":    roomName,
			"message": fmt.Sprintf("已加入房间: %s", roomName),
		})
		h.manager.Broadcast(&BroadcastMessage{
			Room:    roomName,
			Type:    MessageTypeNotify,
			Content: map[string]string{"message": fmt.Sprintf("用户 %s 加入了房间", c.Username)},
			Exclude: c.ID,
		})

	case MessageTypeLeave:
		roomName := h.manager.LeaveRoom(c)
		if roomName == "" {
			return
		}
		h.manager.Send(c, MessageTypeLeave, map[string]string{
			"room":    roomName,
			"message": fmt.Sprintf("已离开房间: %s", roomName),
		})
		h.manager.Broadcast(&BroadcastMessage{
			Room:    roomName,
			Type:    MessageTypeNotify,
			Content: map[string]string{"message": fmt.Sprintf("用户 %s 离开了房间", c.Username)},
		})

	case MessageTypeCommand:
		command, _ := message.Content.(string)
		h.runCommand(c, command)

	default:
		h.manager.Send(c, MessageTypeError, "不支持的消息类型")
	}
}

// runCommand 执行命令，结果广播到客户端所在的房间；不在房间里时只发给自己
func (h *Handler) runCommand(c *Client, command string) {
	command = strings.TrimPrefix(strings.TrimSpace(command), "/")
	if command == "" {
		h.manager.Send(c, MessageTypeError, "命令不能为空")
		return
	}
	if len(command) > maxCommandLen {
		h.manager.Send(c, MessageTypeError, "命令过长")
		return
	}
	if h.cmd == nil {
		h.manager.Send(c, MessageTypeError, "服务器控制台未启用")
		return
	}

	result := CommandResult{From: c.Username, Command: command}
	output, err := h.cmd.ExecuteCommand(command)
	result.Time = time.Now().Format("15:04:05")
	if err != nil {
		result.Error = err.Error()
		logger.L().Warn("网页控制台命令执行失败",
			zap.String("user", c.Username), zap.String("command", command), zap.Error(err))
	} else {
		result.Output = output
		result.Plain = mcparse.StripColorCodes(output)
		logger.L().Info("网页控制台执行命令", zap.String("user", c.Username), zap.String("command", command))
	}

	room := h.manager.RoomOf(c)
	if room == "" {
		h.manager.Send(c, MessageTypeResponse, result)
		return
	}
	h.manager.Broadcast(&BroadcastMessage{Room: room, Type: MessageTypeResponse, Content: result})
}

// MarshalMessage 将消息编码为JSON
func MarshalMessage(msgType string, content interface{}) []byte {
	data, err := sonic.Marshal(Message{Type: msgType, Content: content})
	if err != nil {
		logger.L().Warn("编码消息失败", zap.Error(err))
		return []byte(`{"type":"error","content":"消息编码失败"}`)
	}
	return data
}
