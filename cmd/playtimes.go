package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/playtime"
	"city.newnan/mc-toolbox/internal/service"
	"city.newnan/mc-toolbox/pkg/mccontrol"
)

func newPlaytimesCmd(a *app) *cobra.Command {
	var (
		dir     string
		fromPod bool
		output  string
		format  string
	)
	c := &cobra.Command{
		Use:   "playtimes",
		Short: "统计玩家在线时长",
		Long: "读取服务器日志统计每个玩家的在线时长。\n" +
			"html 格式默认写入配置的 playtime_output，--output - 输出到终端。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source playtime.Source
			if fromPod {
				controller, err := mccontrol.NewMinecraftController(controllerConfig(a.cfg))
				if err != nil {
					return fmt.Errorf("创建Minecraft控制器失败: %w", err)
				}
				defer controller.Close()
				if !controller.HasKubernetes() {
					return mccontrol.ErrNoKubernetes
				}
				source = &playtime.PodSource{Fetcher: controller}
			} else {
				if dir == "" {
					dir = a.cfg.MCLogDir
				}
				source = &playtime.DirSource{Dir: dir}
			}

			svc := service.NewPlaytimeService(source, 0)
			ctx := commandContext(cmd)
			out := cmd.OutOrStdout()

			switch format {
			case "html":
				if output == "" {
					output = a.cfg.PlaytimeOutput
				}
				if output == "" || output == "-" {
					return svc.WriteHTML(ctx, out)
				}
				if err := svc.Publish(ctx, output); err != nil {
					return err
				}
				logger.L().Info("已生成在线时长页面", zap.String("path", output))
				return nil
			case "json", "text":
				report, err := svc.Report(ctx)
				if err != nil {
					return err
				}
				if format == "json" {
					data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, string(data))
					return err
				}
				return writePlaytimes(out, report.Entries)
			}
			return fmt.Errorf("不支持的输出格式: %s", format)
		},
	}

	flags := c.Flags()
	flags.StringVar(&dir, "dir", "", "服务器 logs 目录，默认使用配置")
	flags.BoolVar(&fromPod, "from-pod", false, "从Kubernetes Pod读取当前容器的日志")
	flags.StringVarP(&output, "output", "o", "", "html 页面的输出路径，- 表示终端")
	flags.StringVarP(&format, "format", "f", "html", "输出格式 (html, json, text)")
	return c
}

// writePlaytimes 输出对齐的排行
func writePlaytimes(w io.Writer, entries []playtime.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\t玩家\t在线时长")
	for i, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, e.Player, playtime.FormatDuration(e.Duration))
	}
	return tw.Flush()
}
