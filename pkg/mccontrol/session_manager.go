package mccontrol

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CommandSession 表示与Minecraft服务器的持久命令会话
type CommandSession struct {
	id          string
	executor    CommandExecutor
	lastUsed    time.Time
	idleTimeout time.Duration
	mutex       sync.Mutex
}

// sessionManager 管理命令会话
type sessionManager struct {
	sessions        map[string]*CommandSession
	mutex           sync.Mutex
	cleanupInterval time.Duration
}

func newSessionManager(cleanupInterval time.Duration) *sessionManager {
	return &sessionManager{
		sessions:        make(map[string]*CommandSession),
		cleanupInterval: cleanupInterval,
	}
}

// run 定期清理空闲会话，直到ctx取消
func (sm *sessionManager) run(ctx context.Context) {
	ticker := time.NewTicker(sm.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.cleanupIdleSessions()
		}
	}
}

// CreateCommandSession 创建一个新的命令会话
// idleTimeout 内没有使用的会话会被自动关闭，<=0 表示不会因空闲而关闭
func (m *MinecraftController) CreateCommandSession(idleTimeout time.Duration) (*CommandSession, error) {
	executor, err := m.NewCommandExecutor()
	if err != nil {
		return nil, fmt.Errorf("创建命令执行器失败: %w", err)
	}
	if err := executor.Connect(); err != nil {
		return nil, fmt.Errorf("连接执行器失败: %w", err)
	}

	session := &CommandSession{
		id:          uuid.New().String(),
		executor:    executor,
		lastUsed:    time.Now(),
		idleTimeout: idleTimeout,
	}

	m.sessionManager.mutex.Lock()
	m.sessionManager.sessions[session.id] = session
	m.sessionManager.mutex.Unlock()

	return session, nil
}

// ExecuteCommand 在会话中执行命令
func (s *CommandSession) ExecuteCommand(command string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastUsed = time.Now()
	return s.executor.ExecuteCommand(command)
}

// Close 关闭会话
func (s *CommandSession) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.executor.Disconnect()
}

// IsIdle 检查会话是否空闲
func (s *CommandSession) IsIdle() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.idleTimeout > 0 && time.Since(s.lastUsed) > s.idleTimeout
}

// GetID 获取会话ID
func (s *CommandSession) GetID() string {
	return s.id
}

// SessionExecuteCommand 使用指定会话执行命令
func (m *MinecraftController) SessionExecuteCommand(sessionID, command string) (string, error) {
	m.sessionManager.mutex.Lock()
	session, ok := m.sessionManager.sessions[sessionID]
	m.sessionManager.mutex.Unlock()

	if !ok {
		return "", fmt.Errorf("会话不存在: %s", sessionID)
	}
	return session.ExecuteCommand(command)
}

// CloseCommandSession 关闭指定的命令会话
func (m *MinecraftController) CloseCommandSession(sessionID string) error {
	m.sessionManager.mutex.Lock()
	session, ok := m.sessionManager.sessions[sessionID]
	delete(m.sessionManager.sessions, sessionID)
	m.sessionManager.mutex.Unlock()

	if !ok {
		return fmt.Errorf("会话不存在: %s", sessionID)
	}
	session.Close()
	return nil
}

// CloseAllCommandSessions 关闭所有命令会话
func (m *MinecraftController) CloseAllCommandSessions() {
	m.sessionManager.mutex.Lock()
	sessions := m.sessionManager.sessions
	m.sessionManager.sessions = make(map[string]*CommandSession)
	m.sessionManager.mutex.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// ListCommandSessions 列出所有活跃的命令会话
func (m *MinecraftController) ListCommandSessions() []string {
	m.sessionManager.mutex.Lock()
	defer m.sessionManager.mutex.Unlock()

	ids := make([]string, 0, len(m.sessionManager.sessions))
	for id := range m.sessionManager.sessions {
		ids = append(ids, id)
	}
	return ids
}

// cleanupIdleSessions 清理空闲的会话
func (sm *sessionManager) cleanupIdleSessions() {
	sm.mutex.Lock()
	var idle []*CommandSession
	for id, session := range sm.sessions {
		if session.IsIdle() {
			idle = append(idle, session)
			delete(sm.sessions, id)
		}
	}
	sm.mutex.Unlock()

	// 关闭连接可能阻塞，放在锁外
	for _, session := range idle {
		session.Close()
	}
}
