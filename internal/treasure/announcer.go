package treasure

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Message tellraw 的文本组件
type Message struct {
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
	Bold  bool   `json:"bold,omitempty"`
}

// Announcer 向所有在线玩家广播消息
type Announcer struct {
	cmd Commander
}

// NewAnnouncer 创建广播器
func NewAnnouncer(cmd Commander) *Announcer {
	return &Announcer{cmd: cmd}
}

// Announce 发送 tellraw @a 命令
func (a *Announcer) Announce(msg Message) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化广播消息失败: %w", err)
	}
	_, err = a.cmd.ExecuteCommand("tellraw @a " + string(data))
	return err
}
