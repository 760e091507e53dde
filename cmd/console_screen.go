package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"

	"city.newnan/mc-toolbox/internal/mcparse"
)

const (
	prompt      = "> "
	promptWidth = 2
	historySize = 100

	clearLine   = "\r\x1b[2K"
	clearScreen = "\x1b[2J\x1b[H"
	newline     = "\r\n" // 原始模式下换行不会回到行首
)

// screen 终端显示：日志在上方滚动，最后一行是命令输入
type screen struct {
	mu     sync.Mutex
	out    io.Writer
	color  bool
	prompt *color.Color
	size   func() (int, int)

	width     int
	height    int
	displayed int // 已显示的日志行数
	lastLevel logLevel

	line lineEditor
	hist *history
}

// terminalSize 读取终端尺寸，失败时使用 80x24
func terminalSize(fd int) func() (int, int) {
	return func() (int, int) {
		w, h, err := term.GetSize(fd)
		if err != nil || w <= 0 || h <= 0 {
			return 80, 24
		}
		return w, h
	}
}

func newScreen(out io.Writer, enableColor bool, size func() (int, int)) *screen {
	p := color.New(color.FgCyan, color.Bold)
	if enableColor {
		p.EnableColor()
	} else {
		p.DisableColor()
	}
	s := &screen{
		out:    out,
		color:  enableColor,
		prompt: p,
		size:   size,
		hist:   newHistory(historySize),
	}
	s.width, s.height = size()
	fmt.Fprint(s.out, clearScreen)
	return s
}

// drawPrompt 重绘命令行，调用方持有锁
func (s *screen) drawPrompt() {
	text, col := s.line.view(s.width - promptWidth)
	fmt.Fprint(s.out, clearLine)
	s.prompt.Fprint(s.out, prompt)
	fmt.Fprint(s.out, text)
	fmt.Fprintf(s.out, "\r\x1b[%dC", col+promptWidth)
}

// printLog 在命令行上方打印一行日志
func (s *screen) printLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimRight(line, "\r\n")
	fmt.Fprint(s.out, clearLine)

	// 第一行日志之前补空行，使日志靠底显示
	if s.displayed == 0 {
		for i := 0; i < s.height-2; i++ {
			fmt.Fprint(s.out, newline)
		}
	}

	s.lastLevel = detectLevel(line, s.lastLevel)
	if s.color {
		fmt.Fprint(s.out, renderMinecraft(line, s.lastLevel))
	} else {
		fmt.Fprint(s.out, mcparse.StripColorCodes(line))
	}
	fmt.Fprint(s.out, newline)
	s.displayed++

	s.drawPrompt()
}

func (s *screen) printInfo(msg string) {
	s.printLog("[INFO] " + msg)
}

func (s *screen) printError(msg string) {
	s.printLog("[ERROR] " + msg)
}

// printLines 逐行打印多行文本
func (s *screen) printLines(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		s.printLog(line)
	}
}

// edit 修改输入行并重绘
func (s *screen) edit(fn func(*lineEditor)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.line)
	s.drawPrompt()
}

// browse 用上下键浏览历史，up 为 true 时向更早的命令移动
func (s *screen) browse(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.line.String()
	if up {
		s.line.set(s.hist.prev(current))
	} else {
		s.line.set(s.hist.next(current))
	}
	s.drawPrompt()
}

// take 取出并清空输入行，非空命令记入历史
func (s *screen) take() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := strings.TrimSpace(s.line.String())
	s.line.reset()
	if cmd != "" {
		s.hist.add(cmd)
	}
	s.drawPrompt()
	return cmd
}

// commands 返回历史命令的副本
func (s *screen) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hist.items...)
}

// resize 终端尺寸变化后重绘，尺寸不变时什么都不做
func (s *screen) resize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, h := s.size()
	if w == s.width && h == s.height {
		return
	}
	s.width, s.height = w, h
	if s.displayed > h-1 {
		s.displayed = h - 1
	}
	s.drawPrompt()
}

// clear 清空屏幕，下一行日志重新靠底显示
func (s *screen) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprint(s.out, clearScreen)
	s.displayed = 0
	s.drawPrompt()
}

// close 退出前清空屏幕
func (s *screen) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, clearScreen)
}
