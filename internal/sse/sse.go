// Package sse 通过 Server-Sent Events 向浏览器推送寻宝进度和性能采样
package sse

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/treasure"
)

// 内置主题
const (
	TopicTreasure = "treasure"
	TopicMetrics  = "metrics"
)

// clientBuffer 每个客户端可以积压的消息数，写满后断开
const clientBuffer = 64

// Client SSE客户端
type Client struct {
	ID        string
	Channel   chan []byte
	UserID    uint
	Username  string
	RoleName  string
	Topic     string
	CreatedAt time.Time
}

// Message SSE消息结构
type Message struct {
	Topic string      `json:"topic"`
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	ID    string      `json:"id,omitempty"`
	Retry int         `json:"retry,omitempty"`
}

// Broker 管理所有SSE连接
type Broker struct {
	mutex   sync.RWMutex
	clients map[string]*Client
	// 按主题分组的客户端，主题为空的客户端接收全部消息
	topics map[string]map[string]*Client
}

// NewBroker 创建新的SSE代理
func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string]*Client),
		topics:  make(map[string]map[string]*Client),
	}
}

// encode 按SSE格式编码一条消息
func encode(message *Message) ([]byte, error) {
	var buf bytes.Buffer
	if message.Event != "" {
		fmt.Fprintf(&buf, "event: %s\n", message.Event)
	}
	if message.ID != "" {
		fmt.Fprintf(&buf, "id: %s\n", message.ID)
	}
	if message.Retry > 0 {
		fmt.Fprintf(&buf, "retry: %d\n", message.Retry)
	}

	data, err := sonic.Marshal(message.Data)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(&buf, "data: %s\n\n", data)
	return buf.Bytes(), nil
}

// Subscribe 注册客户端，topic 为空时接收所有主题
func (b *Broker) Subscribe(client *Client) {
	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.Channel == nil {
		client.Channel = make(chan []byte, clientBuffer)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.clients[client.ID] = client
	if _, ok := b.topics[client.Topic]; !ok {
		b.topics[client.Topic] = make(map[string]*Client)
	}
	b.topics[client.Topic][client.ID] = client

	logger.L().Debug("SSE客户端已连接",
		zap.String("id", client.ID), zap.String("user", client.Username), zap.String("topic", client.Topic))
}

// Unsubscribe 注销客户端并关闭其通道，可重复调用
func (b *Broker) Unsubscribe(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.removeLocked(clientID)
}

func (b *Broker) removeLocked(clientID string) {
	client, ok := b.clients[clientID]
	if !ok {
		return
	}
	if topicClients, ok := b.topics[client.Topic]; ok {
		delete(topicClients, clientID)
		if len(topicClients) == 0 {
			delete(b.topics, client.Topic)
		}
	}
	close(client.Channel)
	delete(b.clients, clientID)

	logger.L().Debug("SSE客户端已断开连接",
		zap.String("id", client.ID), zap.String("user", client.Username), zap.String("topic", client.Topic))
}

// Publish 发布消息到订阅了该主题的客户端和未指定主题的客户端
// 发送不会阻塞，积压过多的客户端会被断开
func (b *Broker) Publish(message *Message) {
	payload, err := encode(message)
	if err != nil {
		logger.L().Warn("编码SSE消息失败", zap.Error(err))
		return
	}

	var slow []string
	b.mutex.RLock()
	for _, topic := range []string{message.Topic, ""} {
		for _, client := range b.topics[topic] {
			select {
			case client.Channel <- payload:
			default:
				slow = append(slow, client.ID)
			}
		}
		if message.Topic == "" {
			break
		}
	}
	b.mutex.RUnlock()

	if len(slow) > 0 {
		b.mutex.Lock()
		for _, id := range slow {
			b.removeLocked(id)
		}
		b.mutex.Unlock()
	}
}

// TreasureSink 把寻宝事件发布到 treasure 主题
func (b *Broker) TreasureSink() treasure.EventSink {
	return treasure.EventSinkFunc(func(e treasure.Event) {
		b.Publish(&Message{Topic: TopicTreasure, Event: e.Stage, Data: e, ID: e.RunID})
	})
}

// PublishSample 把一次性能采样发布到 metrics 主题
func (b *Broker) PublishSample(sample *metrics.Sample) {
	b.Publish(&Message{Topic: TopicMetrics, Event: "sample", Data: sample})
}

// ServeHTTP 处理SSE HTTP连接
func (b *Broker) ServeHTTP(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // Nginx特定头部，禁用代理缓冲

	client := &Client{
		ID:        uuid.NewString(),
		Channel:   make(chan []byte, clientBuffer),
		UserID:    middleware.GetCurrentUserID(c),
		Username:  middleware.GetCurrentUsername(c),
		RoleName:  middleware.GetCurrentRole(c),
		Topic:     c.Query("topic"),
		CreatedAt: time.Now(),
	}
	b.Subscribe(client)
	defer b.Unsubscribe(client.ID)

	hello, _ := encode(&Message{
		Event: "connected",
		Data: map[string]interface{}{
			"client_id": client.ID,
			"topic":     client.Topic,
			"time":      time.Now().Format(time.RFC3339),
		},
	})
	c.Writer.Write(hello)
	c.Writer.Flush()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case msg, ok := <-client.Channel:
			if !ok {
				return false
			}
			w.Write(msg)
			return true
		}
	})
}

// GetClientCount 获取连接的客户端总数
func (b *Broker) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// GetTopicClientCount 获取特定主题的客户端数
func (b *Broker) GetTopicClientCount(topic string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.topics[topic])
}
