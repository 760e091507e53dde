package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"city.newnan/mc-toolbox/internal/mcparse"
)

// outputMode 服务器响应中 § 格式代码的处理方式
type outputMode int

const (
	outputPlain outputMode = iota // 去掉格式代码
	outputColor                   // 转换为终端颜色
	outputRaw                     // 原样输出
)

func newExecCmd(a *app) *cobra.Command {
	var raw, colored bool
	c := &cobra.Command{
		Use:   "exec <command...>",
		Short: "执行一条服务器命令",
		Long:  "通过RCON执行一条命令并输出服务器的响应，开头的 / 会被去掉。",
		Example: "  mc-toolbox exec list\n" +
			"  mc-toolbox exec --raw mspt",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.TrimPrefix(strings.Join(args, " "), "/")
			if strings.TrimSpace(command) == "" {
				return fmt.Errorf("命令不能为空")
			}

			controller, err := a.controller()
			if err != nil {
				return err
			}
			defer controller.Close()

			response, err := controller.ExecuteCommand(command)
			if err != nil {
				return err
			}

			mode := outputPlain
			switch {
			case raw:
				mode = outputRaw
			case colored:
				mode = outputColor
			}
			return writeResponse(cmd.OutOrStdout(), response, mode)
		},
	}

	flags := c.Flags()
	flags.BoolVar(&raw, "raw", false, "保留 § 格式代码")
	flags.BoolVar(&colored, "color", isatty.IsTerminal(os.Stdout.Fd()), "把格式代码转换为终端颜色")
	return c
}

// writeResponse 按输出方式写出服务器响应，末尾保证有换行
func writeResponse(w io.Writer, response string, mode outputMode) error {
	if response == "" {
		return nil
	}
	switch mode {
	case outputColor:
		lines := strings.Split(strings.TrimRight(response, "\n"), "\n")
		for i, line := range lines {
			lines[i] = renderMinecraft(line, levelInfo)
		}
		response = strings.Join(lines, "\n")
	case outputPlain:
		response = mcparse.StripColorCodes(response)
	}
	if !strings.HasSuffix(response, "\n") {
		response += "\n"
	}
	_, err := io.WriteString(w, response)
	return err
}
