package metrics

import (
	"fmt"
	"time"

	"city.newnan/mc-toolbox/internal/mcparse"
)

// Commander 执行一条服务器命令
type Commander interface {
	ExecuteCommand(cmd string) (string, error)
}

// Sample 一次采样结果
type Sample struct {
	Timestamp int64             `json:"timestamp"` // UTC unix 秒
	Players   []string          `json:"players"`
	MSPT      mcparse.TickTimes `json:"mspt"` // 最近1分钟窗口
}

// Collector 通过RCON采集服务器性能指标
type Collector struct {
	cmd Commander
	now func() time.Time
}

// NewCollector 创建采集器
func NewCollector(cmd Commander) *Collector {
	return &Collector{cmd: cmd, now: time.Now}
}

// Collect 依次执行 mspt 和 list，任何一步失败都不产生样本
func (c *Collector) Collect() (*Sample, error) {
	resp, err := c.cmd.ExecuteCommand("mspt")
	if err != nil {
		return nil, fmt.Errorf("执行 mspt 失败: %w", err)
	}
	windows, err := mcparse.ParseMSPT(resp)
	if err != nil {
		return nil, err
	}
	minute, ok := windows["1m"]
	if !ok {
		return nil, fmt.Errorf("%w: 缺少1m窗口", mcparse.ErrUnexpectedResponse)
	}

	resp, err = c.cmd.ExecuteCommand("list")
	if err != nil {
		return nil, fmt.Errorf("执行 list 失败: %w", err)
	}
	list, err := mcparse.ParsePlayerList(resp)
	if err != nil {
		return nil, err
	}

	return &Sample{
		Timestamp: c.now().UTC().Unix(),
		Players:   list.Names,
		MSPT:      minute,
	}, nil
}
