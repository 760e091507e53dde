// Package mcparse 解析Minecraft服务器控制台命令的文本响应
package mcparse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrUnexpectedResponse 响应不是预期的格式
	ErrUnexpectedResponse = errors.New("服务器返回了无法识别的响应")
	// ErrPositionNotLoaded 目标坐标所在的区块没有加载
	ErrPositionNotLoaded = errors.New("目标位置未加载")
)

var (
	colorCodePattern  = regexp.MustCompile(`(?i)§[0-9a-f]`)
	playerListPattern = regexp.MustCompile(`^There are (\d+) of a max of (\d+) players online: ?(.*)`)
	shortListPattern  = regexp.MustCompile(`(\d+) players online: ?(.*)`)
	locatePattern     = regexp.MustCompile(`\((\d+) blocks away\)`)
)

// TickWindows mspt 命令依次给出的三个统计窗口
var TickWindows = []string{"5s", "10s", "1m"}

const msptHeader = "Server tick times (avg/min/max) from last 5s, 10s, 1m:"

// TickTimes 一个窗口内的tick耗时，单位毫秒
type TickTimes struct {
	Avg float64 `json:"avg" yaml:"avg"`
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// PlayerList list 命令的解析结果
type PlayerList struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	Names  []string `json:"names"`
}

// StripColorCodes 去掉 § 颜色代码
func StripColorCodes(s string) string {
	return colorCodePattern.ReplaceAllString(s, "")
}

func unexpected(resp string) error {
	return fmt.Errorf("%w: %q", ErrUnexpectedResponse, resp)
}

// ParsePlayerList 解析 list 命令的响应
func ParsePlayerList(resp string) (PlayerList, error) {
	resp = StripColorCodes(resp)

	if m := playerListPattern.FindStringSubmatch(resp); m != nil {
		online, _ := strconv.Atoi(m[1])
		max, _ := strconv.Atoi(m[2])
		return PlayerList{Online: online, Max: max, Names: splitNames(m[3])}, nil
	}
	if m := shortListPattern.FindStringSubmatch(resp); m != nil {
		online, _ := strconv.Atoi(m[1])
		return PlayerList{Online: online, Names: splitNames(m[2])}, nil
	}
	return PlayerList{}, unexpected(resp)
}

// 没有玩家时名单为空字符串，需要去掉空名字
func splitNames(s string) []string {
	names := []string{}
	for _, name := range strings.Split(strings.TrimSpace(s), ", ") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseMSPT 解析 mspt 命令的响应，返回以窗口名为键的耗时
func ParseMSPT(resp string) (map[string]TickTimes, error) {
	lines := strings.Split(StripColorCodes(resp), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[0]) != msptHeader {
		return nil, unexpected(resp)
	}

	stats := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[1]), "◴"))
	sections := strings.Split(stats, ", ")
	if len(sections) != len(TickWindows) {
		return nil, unexpected(resp)
	}

	result := make(map[string]TickTimes, len(TickWindows))
	for i, section := range sections {
		parts := strings.Split(section, "/")
		if len(parts) != 3 {
			return nil, unexpected(resp)
		}
		var values [3]float64
		for j, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, unexpected(resp)
			}
			values[j] = v
		}
		result[TickWindows[i]] = TickTimes{Avg: values[0], Min: values[1], Max: values[2]}
	}
	return result, nil
}

// ParseBlockTest 解析 execute if block 的响应
func ParseBlockTest(resp string) (bool, error) {
	switch strings.TrimSpace(StripColorCodes(resp)) {
	case "Test passed":
		return true, nil
	case "Test failed":
		return false, nil
	case "That position is not loaded":
		return false, ErrPositionNotLoaded
	default:
		return false, unexpected(resp)
	}
}

// ParseLocateDistance 从 locate 命令的响应中取出距离
func ParseLocateDistance(resp string) (int, error) {
	m := locatePattern.FindStringSubmatch(resp)
	if m == nil {
		return 0, unexpected(resp)
	}
	return strconv.Atoi(m[1])
}
