package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/pkg/mccontrol"
)

var (
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
)

type consoleOptions struct {
	tail           int64
	updateInterval time.Duration
	color          bool
}

func newConsoleCmd(a *app) *cobra.Command {
	opts := &consoleOptions{}
	c := &cobra.Command{
		Use:   "console",
		Short: "交互式服务器控制台",
		Long: "在终端中显示服务器日志并通过RCON执行命令。\n" +
			"以 /local 开头的输入是本地命令，输入 /local help 查看。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd.Context(), opts)
		},
	}

	flags := c.Flags()
	flags.Int64Var(&opts.tail, "tail", 100, "初始显示的最大日志行数")
	flags.DurationVar(&opts.updateInterval, "update-interval", 30*time.Second, "状态更新间隔")
	flags.BoolVar(&opts.color, "color", isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()), "启用彩色输出")
	return c
}

// consoleBackend 控制台用到的服务器操作
type consoleBackend interface {
	CheckServerStatus() (*mccontrol.ServerStatus, error)
	ExecuteCommand(command string) (string, error)
}

// console 读取按键并执行命令
type console struct {
	ctx     context.Context
	screen  *screen
	backend consoleBackend
	exec    func(string) (string, error)
}

func newConsole(ctx context.Context, scr *screen, backend consoleBackend) *console {
	return &console{ctx: ctx, screen: scr, backend: backend, exec: backend.ExecuteCommand}
}

func (a *app) runConsole(parent context.Context, opts *consoleOptions) error {
	// 控制台占用终端，日志只写入文件
	if a.cfg.LogFile != "" {
		cfg := a.logConfig(a.cfg.LogFile)
		cfg.DisableConsole = true
		if err := logger.Init(cfg); err != nil {
			return err
		}
	} else {
		logger.Set(zap.NewNop())
	}

	controller, err := a.controller()
	if err != nil {
		return err
	}
	defer controller.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	controller.StartStatusMonitoring(opts.updateInterval, nil)
	if controller.HasKubernetes() {
		controller.StartPodInfoMonitoring(opts.updateInterval)
	}

	status, err := controller.CheckServerStatus()
	switch {
	case err != nil:
		errorColor.Fprintf(os.Stderr, "检查服务器状态失败: %v\n", err)
	case status.Online:
		successColor.Printf("服务器在线! 版本: %s, 玩家: %d/%d\n", status.Version, status.Players, status.MaxPlayers)
	default:
		errorColor.Printf("服务器离线: %s\n", status.LastError)
	}

	stdin := int(os.Stdin.Fd())
	if term.IsTerminal(stdin) {
		oldState, err := term.MakeRaw(stdin)
		if err != nil {
			errorColor.Fprintf(os.Stderr, "设置终端模式失败: %v\n", err)
		} else {
			defer term.Restore(stdin, oldState)
		}
	}

	scr := newScreen(os.Stdout, opts.color, terminalSize(int(os.Stdout.Fd())))
	defer scr.close()
	go watchResize(ctx, scr.resize)

	con := newConsole(ctx, scr, controller)
	session, err := controller.CreateCommandSession(30 * time.Minute)
	if err != nil {
		scr.printError(fmt.Sprintf("创建RCON会话失败: %v", err))
	} else {
		defer session.Close()
		con.exec = session.ExecuteCommand
		scr.printInfo("成功创建RCON持久会话，命令将复用连接")
	}

	if controller.HasKubernetes() {
		scr.printInfo("正在连接到Minecraft服务器日志流...")
		_, err := controller.FetchLogs(ctx, mccontrol.LogOptions{
			TailLines:   &opts.tail,
			BatchSize:   10,
			MaxWaitTime: 500 * time.Millisecond,
		}, func(lines []string, message string) {
			for _, line := range lines {
				scr.printLog(line)
			}
			if message != "" {
				scr.printInfo(message)
			}
		})
		if err != nil {
			scr.printError(fmt.Sprintf("获取日志失败: %v", err))
		}
	} else {
		scr.printInfo("未启用Kubernetes，不显示服务器日志")
	}

	return con.loop(bufio.NewReader(os.Stdin))
}

// loop 处理按键直到退出
func (c *console) loop(in *bufio.Reader) error {
	for {
		if c.ctx.Err() != nil {
			return nil
		}
		r, _, err := in.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}

		switch r {
		case '\x1b':
			c.escape(in)
		case '\r', '\n':
			if c.submit() {
				return nil
			}
		case 127, 8: // 退格
			c.screen.edit((*lineEditor).backspace)
		case 3, 4: // Ctrl+C 或 Ctrl+D
			return nil
		default:
			if unicode.IsPrint(r) {
				c.screen.edit(func(e *lineEditor) { e.insert(r) })
			}
		}
	}
}

// escape 处理方向键等转义序列
func (c *console) escape(in *bufio.Reader) {
	if in.Buffered() == 0 {
		return
	}
	if r, _, err := in.ReadRune(); err != nil || r != '[' {
		return
	}
	r, _, err := in.ReadRune()
	if err != nil {
		return
	}

	switch r {
	case 'A':
		c.screen.browse(true)
	case 'B':
		c.screen.browse(false)
	case 'C':
		c.screen.edit(func(e *lineEditor) { e.move(1) })
	case 'D':
		c.screen.edit(func(e *lineEditor) { e.move(-1) })
	case 'H':
		c.screen.edit(func(e *lineEditor) { e.move(-len(e.buf)) })
	case 'F':
		c.screen.edit(func(e *lineEditor) { e.move(len(e.buf)) })
	}
}

// submit 执行输入行，返回 true 表示退出
func (c *console) submit() bool {
	command := c.screen.take()
	if command == "" {
		return false
	}

	if local, ok := strings.CutPrefix(command, "/local"); ok && (local == "" || local[0] == ' ') {
		return c.local(strings.Fields(local))
	}

	c.screen.printInfo("执行命令: " + command)
	response, err := c.exec(strings.TrimPrefix(command, "/"))
	switch {
	case err != nil:
		c.screen.printError(fmt.Sprintf("执行命令失败: %v", err))
	case response == "":
		c.screen.printInfo("命令已执行，没有输出")
	default:
		c.screen.printLines(response)
	}
	return false
}

// local 处理本地命令，返回 true 表示退出
func (c *console) local(args []string) bool {
	if len(args) == 0 {
		args = []string{"help"}
	}

	switch args[0] {
	case "status":
		status, err := c.backend.CheckServerStatus()
		switch {
		case err != nil && status == nil:
			c.screen.printError(fmt.Sprintf("检查服务器状态失败: %v", err))
		case status.Online:
			c.screen.printInfo("服务器状态: 在线")
			c.screen.printLog(fmt.Sprintf("版本: %s", status.Version))
			c.screen.printLog(fmt.Sprintf("玩家: %d/%d", status.Players, status.MaxPlayers))
			if len(status.PlayerNames) > 0 {
				c.screen.printLog("在线: " + strings.Join(status.PlayerNames, ", "))
			}
			c.screen.printLog(fmt.Sprintf("描述: %s", status.Description))
			c.screen.printLog(fmt.Sprintf("延迟: %d ms", status.Latency))
			if status.PodName != "" {
				c.screen.printLog(fmt.Sprintf("Pod: %s (%s)", status.PodName, status.PodStatus))
				c.screen.printLog(fmt.Sprintf("IP: %s (集群内), %s (外部)", status.ClusterIP, status.ExternalIP))
			}
		default:
			c.screen.printError(fmt.Sprintf("服务器离线: %s", status.LastError))
		}

	case "history":
		for i, cmd := range c.screen.commands() {
			c.screen.printLog(fmt.Sprintf("%4d  %s", i+1, cmd))
		}

	case "clear":
		c.screen.clear()

	case "help":
		c.screen.printLog("可用的本地命令:")
		c.screen.printLog("  /local status   - 显示服务器状态信息")
		c.screen.printLog("  /local history  - 显示命令历史")
		c.screen.printLog("  /local clear    - 清除日志显示")
		c.screen.printLog("  /local help     - 显示此帮助信息")
		c.screen.printLog("  /local exit     - 退出程序")
		c.screen.printLog("")
		c.screen.printLog("所有其他输入将作为RCON命令发送到Minecraft服务器")

	case "exit", "quit":
		return true

	default:
		c.screen.printError(fmt.Sprintf("未知的本地命令: %s", args[0]))
		c.screen.printLog("输入 '/local help' 获取可用命令列表")
	}
	return false
}
