package mccontrol

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/xrjr/mcutils/pkg/ping"
)

// pingServer 发送Server List Ping，返回服务器的JSON属性和延迟（毫秒）
var pingServer = func(host string, port int) (map[string]interface{}, int, error) {
	properties, latency, err := ping.Ping(host, port)
	if err != nil {
		return nil, 0, err
	}
	return properties, int(latency), nil
}

// pingResponse Ping返回的JSON数据中用到的部分
type pingResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Max    int `json:"max"`
		Online int `json:"online"`
		Sample []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"sample"`
	} `json:"players"`
	// 可能是字符串，也可能是带 extra 的文本组件
	Description interface{} `json:"description"`
}

// descriptionText 从文本组件中提取纯文本，递归拼接 extra
func descriptionText(desc interface{}) string {
	switch d := desc.(type) {
	case string:
		return d
	case map[string]interface{}:
		var sb strings.Builder
		if text, ok := d["text"].(string); ok {
			sb.WriteString(text)
		}
		if extra, ok := d["extra"].([]interface{}); ok {
			for _, item := range extra {
				sb.WriteString(descriptionText(item))
			}
		}
		return sb.String()
	}
	return ""
}

// Status 返回最近一次检查得到的状态副本
func (m *MinecraftController) Status() ServerStatus {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	return m.status
}

// CheckServerStatus 通过Server List Ping检查服务器状态
// 服务器离线不算错误，离线原因记录在 LastError 中
func (m *MinecraftController) CheckServerStatus() (*ServerStatus, error) {
	if _, err := m.updatePodInfoIfNeeded(false); err != nil {
		m.setStatusError(fmt.Sprintf("更新Pod信息失败: %v", err))
		status := m.Status()
		return &status, err
	}

	host := m.ServerIP()
	properties, latency, err := pingServer(host, m.gamePort)
	if err != nil {
		// 可能是Pod信息已过期，尝试强制更新一次
		if updated, updateErr := m.updatePodInfoIfNeeded(true); updated && updateErr == nil {
			host = m.ServerIP()
			properties, latency, err = pingServer(host, m.gamePort)
		}
	}

	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()

	m.status.Address = host
	m.status.LastChecked = time.Now()
	if err != nil {
		m.status.Online = false
		m.status.Players = 0
		m.status.PlayerNames = nil
		m.status.LastError = fmt.Sprintf("Ping服务器失败: %v", err)
		status := m.status
		return &status, nil
	}

	m.status.Online = true
	m.status.Latency = latency
	m.status.LastError = ""

	if err := applyPingProperties(&m.status, properties); err != nil {
		m.status.LastError = err.Error()
		status := m.status
		return &status, err
	}

	status := m.status
	return &status, nil
}

// applyPingProperties 把Ping返回的属性写入状态
func applyPingProperties(status *ServerStatus, properties map[string]interface{}) error {
	jsonData, err := sonic.Marshal(properties)
	if err != nil {
		return fmt.Errorf("序列化服务器属性失败: %w", err)
	}
	var resp pingResponse
	if err := sonic.Unmarshal(jsonData, &resp); err != nil {
		return fmt.Errorf("解析服务器状态失败: %w", err)
	}

	if resp.Version.Name != "" {
		status.Version = resp.Version.Name
	}
	status.Players = resp.Players.Online
	status.MaxPlayers = resp.Players.Max
	status.PlayerNames = nil
	for _, p := range resp.Players.Sample {
		status.PlayerNames = append(status.PlayerNames, p.Name)
	}
	status.Description = descriptionText(resp.Description)
	return nil
}

func (m *MinecraftController) setStatusError(msg string) {
	m.statusMutex.Lock()
	defer m.statusMutex.Unlock()
	m.status.LastError = msg
	m.status.LastChecked = time.Now()
}

// StartStatusMonitoring 定期检查服务器状态，每次检查后调用onUpdate（可为nil）
func (m *MinecraftController) StartStatusMonitoring(interval time.Duration, onUpdate func(ServerStatus)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				status, _ := m.CheckServerStatus()
				if onUpdate != nil && status != nil {
					onUpdate(*status)
				}
			}
		}
	}()
}
