package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/treasure"
)

func newTreasureCmd(a *app) *cobra.Command {
	var force bool
	c := &cobra.Command{
		Use:   "treasure-hunt",
		Short: "运行一次寻宝活动",
		Long: "在随机位置放置宝箱并向玩家广播线索，宝箱被取走或超时后结束。\n" +
			"默认按 treasure_skip_odds 随机跳过，适合由定时任务调用；中断时会移除已放置的宝箱。",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			// 活动日志同时写入终端和单独的文件
			log, err := logger.New(a.logConfig(a.cfg.TreasureLogFile))
			if err != nil {
				return err
			}
			defer log.Sync()

			controller, err := a.controller()
			if err != nil {
				return err
			}
			defer controller.Close()

			executor, err := controller.NewCommandExecutor()
			if err != nil {
				return err
			}
			if err := executor.Connect(); err != nil {
				return err
			}
			defer executor.Disconnect()

			world := treasure.NewWorld(executor, treasure.WithLogger(log))
			narrator := treasure.NewNarrator(a.cfg.NarratorAPIKey, a.cfg.NarratorModel, a.cfg.NarratorBaseURL)
			hunt := treasure.NewHunt(executor, world, narrator, log)
			hunt.SkipOdds = a.cfg.TreasureSkipOdds
			if force {
				hunt.SkipOdds = 0
			}

			result, err := hunt.Run(ctx)
			if result != nil {
				fields := []zap.Field{zap.String("run", result.RunID), zap.String("outcome", string(result.Outcome))}
				if result.Position != nil {
					fields = append(fields, zap.Stringer("position", result.Position))
				}
				log.Info("寻宝活动结束", fields...)
				fmt.Fprintln(cmd.OutOrStdout(), describeResult(result))
				if result.Outcome == treasure.OutcomeCancelled {
					return nil
				}
			}
			return err
		},
	}
	c.Flags().BoolVarP(&force, "force", "f", false, "不做随机跳过，立即开始")
	return c
}

// describeResult 一行中文的结果描述
func describeResult(r *treasure.Result) string {
	switch r.Outcome {
	case treasure.OutcomeSkipped:
		return "本次随机跳过"
	case treasure.OutcomeNoPlayers:
		return "没有在线玩家"
	case treasure.OutcomeNoSpot:
		return "没有找到合适的位置"
	}

	where := ""
	if r.Position != nil {
		where = fmt.Sprintf("，位置 %s (%s)", r.Position, treasure.HeightLabel(r.Position.Y))
	}
	switch r.Outcome {
	case treasure.OutcomeEmptied:
		return fmt.Sprintf("宝藏 %s 已被找到%s", r.Item, where)
	case treasure.OutcomeExpired:
		return fmt.Sprintf("宝藏 %s 无人找到，已消失%s", r.Item, where)
	case treasure.OutcomeCancelled:
		return "活动已取消，宝箱已移除" + where
	}
	return "活动未完成" + where
}
