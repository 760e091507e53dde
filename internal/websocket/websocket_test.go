package websocket

import (
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommander struct {
	mu       sync.Mutex
	commands []string
}

func (f *fakeCommander) ExecuteCommand(cmd string) (string, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	if cmd == "boom" {
		return "", errors.New("rcon: 连接错误")
	}
	return "§6There are 1 of a max of 20 players online: §aAlice", nil
}

func newTestServer(t *testing.T, cmd Commander) (*Manager, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	manager := NewManager()
	handler := NewHandler(manager, cmd)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("username", c.Query("user"))
		handler.ServeHTTP(c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return manager, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msgType string, content interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, MarshalMessage(msgType, content)))
}

func TestCommandBroadcastToConsole(t *testing.T) {
	cmd := &fakeCommander{}
	manager, url := newTestServer(t, cmd)

	alice := dial(t, url+"?user=alice")
	assert.Equal(t, MessageTypeJoin, read(t, alice)["type"])
	bob := dial(t, url+"?user=bob")
	assert.Equal(t, MessageTypeJoin, read(t, bob)["type"])
	require.Eventually(t, func() bool { return len(manager.GetRoomClients(ConsoleRoom)) == 2 }, time.Second, 10*time.Millisecond)

	send(t, alice, MessageTypeCommand, "/list")

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := read(t, conn)
		require.Equal(t, MessageTypeResponse, msg["type"])
		content := msg["content"].(map[string]interface{})
		assert.Equal(t, "alice", content["from"])
		assert.Equal(t, "list", content["command"])
		assert.Equal(t, "There are 1 of a max of 20 players online: Alice", content["plain"])
		assert.Contains(t, content["output"], "§6")
	}
	cmd.mu.Lock()
	assert.Equal(t, []string{"list"}, cmd.commands)
	cmd.mu.Unlock()
}

func TestCommandError(t *testing.T) {
	_, url := newTestServer(t, &fakeCommander{})
	conn := dial(t, url+"?user=alice")
	read(t, conn)

	send(t, conn, MessageTypeCommand, "boom")
	msg := read(t, conn)
	content := msg["content"].(map[string]interface{})
	assert.Contains(t, content["error"], "连接错误")

	send(t, conn, MessageTypeCommand, "   ")
	assert.Equal(t, MessageTypeError, read(t, conn)["type"])
}

func TestCommandDisabled(t *testing.T) {
	_, url := newTestServer(t, nil)
	conn := dial(t, url)
	read(t, conn)

	send(t, conn, MessageTypeCommand, "list")
	msg := read(t, conn)
	assert.Equal(t, MessageTypeError, msg["type"])
}

func TestPingAndRooms(t *testing.T) {
	manager, url := newTestServer(t, &fakeCommander{})
	conn := dial(t, url+"?room=lobby")
	join := read(t, conn)
	assert.Equal(t, "lobby", join["content"].(map[string]interface{})["room"])

	send(t, conn, MessageTypePing, nil)
	assert.Equal(t, MessageTypePong, read(t, conn)["type"])

	send(t, conn, MessageTypeJoin, map[string]string{"room": ConsoleRoom})
	assert.Equal(t, MessageTypeJoin, read(t, conn)["type"])
	assert.Len(t, manager.GetRoomClients(ConsoleRoom), 1)
	assert.Empty(t, manager.GetRoomClients("lobby"))

	send(t, conn, MessageTypeLeave, nil)
	assert.Equal(t, MessageTypeLeave, read(t, conn)["type"])
	assert.Empty(t, manager.GetRoomClients(ConsoleRoom))

	// 不在房间里时命令结果只发给自己
	send(t, conn, MessageTypeCommand, "list")
	assert.Equal(t, MessageTypeResponse, read(t, conn)["type"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MessageTypeError, read(t, conn)["type"])

	send(t, conn, "dance", nil)
	assert.Equal(t, MessageTypeError, read(t, conn)["type"])
}

func TestUnregisterOnClose(t *testing.T) {
	manager, url := newTestServer(t, nil)
	conn := dial(t, url)
	read(t, conn)
	require.Equal(t, 1, manager.ClientCount())

	conn.Close()
	require.Eventually(t, func() bool { return manager.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManagerHeartbeatAndSlowClients(t *testing.T) {
	m := NewManager()
	stale := &Client{ID: "stale", Send: make(chan []byte, 1)}
	fresh := &Client{ID: "fresh", Send: make(chan []byte, 1)}
	m.Register(stale, ConsoleRoom)
	m.Register(fresh, ConsoleRoom)
	stale.lastSeen.Store(time.Now().Add(-2 * time.Minute).UnixNano())

	assert.Equal(t, 1, m.checkHeartbeats(time.Minute))
	_, err := m.GetClient("stale")
	assert.Error(t, err)
	_, ok := <-stale.Send
	assert.False(t, ok)

	m.Broadcast(&BroadcastMessage{Room: ConsoleRoom, Type: MessageTypeNotify, Content: "1"})
	m.Broadcast(&BroadcastMessage{Room: ConsoleRoom, Type: MessageTypeNotify, Content: "2"})
	assert.Equal(t, 0, m.ClientCount(), "缓冲区已满的客户端应当被断开")

	// 重复注销不会 panic
	m.Unregister(fresh)
}
