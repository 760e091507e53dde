package mccontrol

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"city.newnan/mc-toolbox/pkg/rcon"
)

// RconExecutor 使用RCON协议的命令执行器实现
//
// rcon.Client 本身不重试，重连与退避由这里负责，
// 并且只对 rcon.IsRetryable 的错误重试，认证失败和格式错误直接返回。
type RconExecutor struct {
	client *rcon.Client

	// 会话控制
	lastUsed time.Time  // 上次使用时间
	mutex    sync.Mutex // 互斥锁，rcon.Client 不是并发安全的

	// 重连控制
	maxRetries    int           // 最大重试次数
	retryDelay    time.Duration // 重试延迟基准时间
	maxRetryDelay time.Duration // 最大重试延迟
	sleep         func(time.Duration)
}

// NewRconExecutor 创建一个新的RCON执行器，不会立即连接
func NewRconExecutor(host string, port int, password string, opts ...rcon.Option) *RconExecutor {
	return &RconExecutor{
		client:        rcon.NewClient(host, port, password, opts...),
		maxRetries:    5,
		retryDelay:    500 * time.Millisecond,
		maxRetryDelay: 10 * time.Second,
		sleep:         time.Sleep,
	}
}

// Addr 返回服务器地址
func (e *RconExecutor) Addr() string {
	return e.client.Addr()
}

// Connect 连接到RCON服务器并进行认证
func (e *RconExecutor) Connect() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.connect()
}

func (e *RconExecutor) connect() error {
	if e.client.IsConnected() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.client.Timeout())
	defer cancel()

	if err := e.client.Connect(ctx); err != nil {
		return fmt.Errorf("连接RCON失败: %w", err)
	}
	e.lastUsed = time.Now()
	return nil
}

// ExecuteCommand 执行RCON命令，连接错误和超时会按1.5倍退避重连重试
func (e *RconExecutor) ExecuteCommand(cmd string) (string, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.lastUsed = time.Now()

	for attempt := 0; ; attempt++ {
		err := e.connect()
		if err == nil {
			var response string
			response, err = e.client.Command(cmd)
			if err == nil {
				return response, nil
			}
		}

		if !rcon.IsRetryable(err) {
			return "", fmt.Errorf("RCON命令执行失败: %w", err)
		}
		if attempt >= e.maxRetries {
			return "", fmt.Errorf("RCON命令执行失败，已尝试重连%d次: %w", attempt, err)
		}

		e.sleep(e.backoff(attempt))
	}
}

// backoff 计算第attempt次重试前的等待时间
func (e *RconExecutor) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(e.retryDelay) * math.Pow(1.5, float64(attempt)))
	if delay > e.maxRetryDelay {
		delay = e.maxRetryDelay
	}
	return delay
}

// Disconnect 断开与RCON服务器的连接
func (e *RconExecutor) Disconnect() {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.client.Disconnect()
}

// IsConnected 检查是否已连接
func (e *RconExecutor) IsConnected() bool {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.client.IsConnected()
}

// LastUsed 返回上次执行命令的时间
func (e *RconExecutor) LastUsed() time.Time {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.lastUsed
}
