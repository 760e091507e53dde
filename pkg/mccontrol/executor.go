package mccontrol

import (
	"fmt"

	"city.newnan/mc-toolbox/pkg/rcon"
)

// NewCommandExecutor 创建一个连接到当前服务器地址的RCON执行器
func (m *MinecraftController) NewCommandExecutor() (*RconExecutor, error) {
	if m.rconPort == 0 {
		return nil, fmt.Errorf("RCON端口未设置")
	}

	// 确保有最新的Pod信息
	if _, err := m.updatePodInfoIfNeeded(false); err != nil {
		return nil, fmt.Errorf("更新Pod信息失败: %w", err)
	}

	host := m.ServerIP()
	if host == "" {
		return nil, fmt.Errorf("服务器地址未知")
	}

	var opts []rcon.Option
	if m.rconTimeout > 0 {
		opts = append(opts, rcon.WithTimeout(m.rconTimeout))
	}
	if m.rconPacing > 0 {
		opts = append(opts, rcon.WithPacing(m.rconPacing))
	}
	return NewRconExecutor(host, m.rconPort, m.rconPassword, opts...), nil
}

// ExecuteCommand 使用一次性的连接执行单个命令
func (m *MinecraftController) ExecuteCommand(command string) (string, error) {
	executor, err := m.NewCommandExecutor()
	if err != nil {
		return "", fmt.Errorf("创建命令执行器失败: %w", err)
	}
	defer executor.Disconnect()

	if err := executor.Connect(); err != nil {
		// Pod可能已经重建，强制更新后再试一次
		if updated, updateErr := m.updatePodInfoIfNeeded(true); !updated || updateErr != nil {
			return "", err
		}
		if executor, err = m.NewCommandExecutor(); err != nil {
			return "", err
		}
		defer executor.Disconnect()
	}

	response, err := executor.ExecuteCommand(command)
	if err != nil {
		return "", fmt.Errorf("命令执行失败: %w", err)
	}
	return response, nil
}
