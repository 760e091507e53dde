package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"city.newnan/mc-toolbox/pkg/mccontrol"
)

func newStatusCmd(a *app) *cobra.Command {
	var output string
	c := &cobra.Command{
		Use:   "status",
		Short: "查看服务器状态",
		Long:  "通过Server List Ping查询服务器是否在线、版本和玩家数，不需要RCON密码。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("不支持的输出格式: %s", output)
			}

			controller, err := mccontrol.NewMinecraftController(controllerConfig(a.cfg))
			if err != nil {
				return fmt.Errorf("创建Minecraft控制器失败: %w", err)
			}
			defer controller.Close()

			status, err := controller.CheckServerStatus()
			if status == nil {
				return err
			}
			if output == "json" {
				return writeStatusJSON(cmd.OutOrStdout(), status)
			}
			writeStatusText(cmd.OutOrStdout(), status)
			return err
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "text", "输出格式 (text, json)")
	return c
}

func writeStatusJSON(w io.Writer, status *mccontrol.ServerStatus) error {
	data, err := sonic.ConfigStd.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeStatusText(w io.Writer, status *mccontrol.ServerStatus) {
	if !status.Online {
		errorColor.Fprintf(w, "服务器离线: %s\n", status.LastError)
		return
	}
	successColor.Fprintf(w, "服务器在线! 版本: %s, 玩家: %d/%d\n", status.Version, status.Players, status.MaxPlayers)
	if len(status.PlayerNames) > 0 {
		fmt.Fprintf(w, "在线: %s\n", strings.Join(status.PlayerNames, ", "))
	}
	if status.Description != "" {
		fmt.Fprintf(w, "描述: %s\n", status.Description)
	}
	fmt.Fprintf(w, "地址: %s\n", status.Address)
	fmt.Fprintf(w, "延迟: %d ms\n", status.Latency)
	if status.PodName != "" {
		fmt.Fprintf(w, "Pod: %s (%s)\n", status.PodName, status.PodStatus)
		fmt.Fprintf(w, "IP: %s (集群内), %s (外部)\n", status.ClusterIP, status.ExternalIP)
	}
}
