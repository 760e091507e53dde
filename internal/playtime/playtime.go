// Package playtime 根据服务器日志中的加入/离开记录统计玩家在线时长
package playtime

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Action 玩家加入或离开
type Action string

const (
	Joined Action = "joined"
	Left   Action = "left"
)

var joinLeavePattern = regexp.MustCompile(`\[(\d{2}:\d{2}:\d{2})\] \[Server thread/INFO\]: (.+) (joined|left) the game`)

// Event 一次加入或离开
type Event struct {
	Time   time.Time
	Player string
	Action Action
}

// Entry 一个玩家的累计在线时长
type Entry struct {
	Player   string        `json:"player"`
	Duration time.Duration `json:"duration"`
}

// ExtractEvents 从日志行中提取加入和离开事件，时间按本地时区解析
func ExtractEvents(lines []Line) []Event {
	var events []Event
	for _, line := range lines {
		m := joinLeavePattern.FindStringSubmatch(line.Text)
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02 15:04:05", line.Date+" "+m[1], time.Local)
		if err != nil {
			continue
		}
		events = append(events, Event{Time: t, Player: m[2], Action: Action(m[3])})
	}
	return events
}

// Calculate 累加每个玩家的在线时长
// 重复加入以最后一次为准，没有加入记录的离开被忽略，仍在线的会话不计入
func Calculate(events []Event) map[string]time.Duration {
	totals := make(map[string]time.Duration)
	active := make(map[string]time.Time)

	for _, e := range events {
		switch e.Action {
		case Joined:
			active[e.Player] = e.Time
		case Left:
			joinTime, ok := active[e.Player]
			if !ok {
				continue
			}
			delete(active, e.Player)
			totals[e.Player] += e.Time.Sub(joinTime)
		}
	}
	return totals
}

// Sorted 按在线时长降序排列，时长相同时按名字排序
func Sorted(totals map[string]time.Duration) []Entry {
	entries := make([]Entry, 0, len(totals))
	for player, d := range totals {
		entries = append(entries, Entry{Player: player, Duration: d})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Duration != entries[j].Duration {
			return entries[i].Duration > entries[j].Duration
		}
		return entries[i].Player < entries[j].Player
	})
	return entries
}

// Aggregate 读取日志并计算排序后的在线时长
func Aggregate(ctx context.Context, src Source) ([]Entry, error) {
	lines, err := src.Lines(ctx)
	if err != nil {
		return nil, err
	}
	return Sorted(Calculate(ExtractEvents(lines))), nil
}

// FormatDuration 格式化为 H:MM:SS，超过一天时为 "N day(s), H:MM:SS"
// 负数时长的天数向下取整，例如 -1秒 为 "-1 day, 23:59:59"
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	rem := secs % 86400
	if rem < 0 {
		days--
		rem += 86400
	}
	clock := fmt.Sprintf("%d:%02d:%02d", rem/3600, rem%3600/60, rem%60)

	switch {
	case days == 0:
		return clock
	case days == 1 || days == -1:
		return fmt.Sprintf("%d day, %s", days, clock)
	default:
		return fmt.Sprintf("%d days, %s", days, clock)
	}
}
