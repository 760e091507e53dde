package cmd

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/fatih/color"
)

// logLevel 服务器日志行的级别
type logLevel string

const (
	levelInfo  logLevel = "INFO"
	levelDebug logLevel = "DEBUG"
	levelWarn  logLevel = "WARN"
	levelError logLevel = "ERROR"
)

var levelAttrs = map[logLevel][]color.Attribute{
	levelInfo:  {color.FgWhite},
	levelDebug: {color.FgBlue},
	levelWarn:  {color.FgYellow},
	levelError: {color.FgRed},
}

// formatCodes Minecraft § 格式代码对应的终端属性
var formatCodes = map[rune][]color.Attribute{
	'0': {color.FgBlack},
	'1': {color.FgBlue, color.Bold},
	'2': {color.FgGreen, color.Bold},
	'3': {color.FgCyan, color.Bold},
	'4': {color.FgRed, color.Bold},
	'5': {color.FgMagenta, color.Bold},
	'6': {color.FgYellow},
	'7': {color.FgWhite},
	'8': {color.FgBlack, color.Bold},
	'9': {color.FgBlue},
	'a': {color.FgGreen},
	'b': {color.FgCyan},
	'c': {color.FgRed},
	'd': {color.FgMagenta},
	'e': {color.FgYellow},
	'f': {color.FgWhite, color.Bold},

	'k': {color.BlinkSlow},
	'l': {color.Bold},
	'm': {color.CrossedOut},
	'n': {color.Underline},
	'o': {color.Italic},
	'r': {color.Reset},
	'x': nil, // 十六进制颜色的前缀，终端不支持
}

const ansiReset = "\x1b[0m"

// sgr 生成ANSI转义序列
func sgr(attrs []color.Attribute) string {
	if len(attrs) == 0 {
		return ""
	}
	parts := make([]string, len(attrs))
	for i, a := range attrs {
		parts[i] = strconv.Itoa(int(a))
	}
	return "\x1b[" + strings.Join(parts, ";") + "m"
}

// renderMinecraft 把 § 格式代码转换为ANSI转义序列
// §r 重置到日志级别的颜色，未知代码原样保留
func renderMinecraft(text string, level logLevel) string {
	base, ok := levelAttrs[level]
	if !ok {
		base = levelAttrs[levelInfo]
	}
	baseSeq := sgr(base)

	var b strings.Builder
	b.WriteString(baseSeq)

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '§' && i+1 < len(runes) {
			code := unicode.ToLower(runes[i+1])
			if attrs, ok := formatCodes[code]; ok {
				if code == 'r' {
					b.WriteString(ansiReset)
					b.WriteString(baseSeq)
				} else {
					b.WriteString(sgr(attrs))
				}
				i++
				continue
			}
		}
		b.WriteRune(runes[i])
	}

	b.WriteString(ansiReset)
	return b.String()
}

// levelPattern 匹配 "[20:19:40 INFO]:"、"[20:19:40] [Server thread/INFO]:" 和 "[INFO]" 前缀
var levelPattern = regexp.MustCompile(`^(?:\[[^\]]*\] )?\[(?:[^\]]*[ /])?(INFO|WARN|WARNING|ERROR|FATAL|DEBUG)\]`)

// detectLevel 解析日志行的级别，没有前缀的行（如异常堆栈）沿用上一行的级别
func detectLevel(line string, last logLevel) logLevel {
	m := levelPattern.FindStringSubmatch(line)
	if m == nil {
		if last == "" {
			return levelInfo
		}
		return last
	}
	switch m[1] {
	case "WARN", "WARNING":
		return levelWarn
	case "ERROR", "FATAL":
		return levelError
	case "DEBUG":
		return levelDebug
	}
	return levelInfo
}
