package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/service"
)

func newMetricsCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "metrics",
		Short: "服务器性能数据",
		Long:  "采集在线玩家和 mspt 并保存到数据库，按小时汇总成报表。",
	}
	c.AddCommand(newMetricsCollectCmd(a), newMetricsReportCmd(a))
	return c
}

func newMetricsCollectCmd(a *app) *cobra.Command {
	var interval time.Duration
	c := &cobra.Command{
		Use:   "collect",
		Short: "采集一次性能数据",
		Long:  "执行 mspt 和 list 并保存结果，--every 大于0时持续采集直到中断。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.InitDB(a.cfg); err != nil {
				return fmt.Errorf("初始化数据库失败: %w", err)
			}
			defer db.CloseDB()

			controller, err := a.controller()
			if err != nil {
				return err
			}
			defer controller.Close()

			collector := metrics.NewCollector(controller)
			svc := service.NewMetricsService(db.DB)
			out := cmd.OutOrStdout()
			collect := func() error {
				sample, err := collector.Collect()
				if err != nil {
					return err
				}
				if err := svc.Save(sample); err != nil {
					return err
				}
				fmt.Fprintln(out, describeSample(sample))
				return nil
			}

			if interval <= 0 {
				return collect()
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			every(ctx, interval, func() {
				if err := collect(); err != nil {
					logger.L().Warn("采集性能数据失败", zap.Error(err))
				}
			})
			return nil
		},
	}
	c.Flags().DurationVar(&interval, "every", 0, "持续采集的间隔，0 表示只采集一次")
	return c
}

func newMetricsReportCmd(a *app) *cobra.Command {
	var (
		format      string
		days        int
		percentiles []int
		file        string
	)
	c := &cobra.Command{
		Use:   "report",
		Short: "输出按小时汇总的性能报表",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := metrics.ParseFormat(format)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.cfg.MetricsDays
			}
			if !cmd.Flags().Changed("percentiles") {
				percentiles = a.cfg.MetricsPercentiles
			}

			if err := db.InitDB(a.cfg); err != nil {
				return fmt.Errorf("初始化数据库失败: %w", err)
			}
			defer db.CloseDB()

			report, err := service.NewMetricsService(db.DB).HourlyReport(days, percentiles)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if file != "" && file != "-" {
				fh, err := os.Create(file)
				if err != nil {
					return fmt.Errorf("创建报表文件失败: %w", err)
				}
				defer fh.Close()
				out = fh
			}
			return report.Write(out, f)
		},
	}

	names := make([]string, len(metrics.Formats))
	for i, f := range metrics.Formats {
		names[i] = string(f)
	}
	flags := c.Flags()
	flags.StringVarP(&format, "output", "o", string(metrics.FormatBox), "输出格式 ("+strings.Join(names, ", ")+")")
	flags.IntVar(&days, "days", metrics.DefaultDays, "统计最近几天的数据")
	flags.IntSliceVar(&percentiles, "percentiles", metrics.DefaultPercentiles, "mspt 百分位，取值[0,100)")
	flags.StringVar(&file, "file", "", "写入文件而不是终端")
	return c
}

// describeSample 一行采样摘要
func describeSample(s *metrics.Sample) string {
	players := "无"
	if len(s.Players) > 0 {
		players = strings.Join(s.Players, ", ")
	}
	return fmt.Sprintf("%s mspt %.1f/%.1f/%.1f 在线(%d): %s",
		time.Unix(s.Timestamp, 0).Format("2006-01-02 15:04:05"),
		s.MSPT.Avg, s.MSPT.Min, s.MSPT.Max, len(s.Players), players)
}
