// Package cmd 实现 mc-toolbox 命令行
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/pkg/mccontrol"
)

// app 各子命令共享的配置
type app struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

// NewRootCommand 创建根命令
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mc-toolbox",
		Short:         "Minecraft 服务器工具箱",
		Long:          "通过RCON管理Minecraft服务器：控制台、寻宝活动、在线时长、性能统计和Web服务。",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML配置文件路径，环境变量优先于文件")
	flags.StringVar(&a.logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newConsoleCmd(a),
		newExecCmd(a),
		newStatusCmd(a),
		newPlaytimesCmd(a),
		newTreasureCmd(a),
		newMetricsCmd(a),
	)
	return root
}

// Execute 运行命令行，出错时以非0状态退出
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

// load 读取配置并初始化全局日志
func (a *app) load() error {
	cfg, err := config.LoadConfigFile(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return logger.Init(a.logConfig(cfg.LogFile))
}

// logConfig 日志配置，filename 为相对路径时放在日志目录下
func (a *app) logConfig(filename string) logger.Config {
	if filename != "" && !filepath.IsAbs(filename) && a.cfg.LogPath != "" {
		filename = filepath.Join(a.cfg.LogPath, filename)
	}
	return logger.Config{
		Level:      a.cfg.LogLevel,
		Format:     a.cfg.LogFormat,
		Filename:   filename,
		MaxSize:    a.cfg.LogMaxSize,
		MaxDays:    a.cfg.LogMaxDays,
		MaxBackups: a.cfg.LogMaxBackups,
	}
}

// controllerConfig 把应用配置转换为控制器配置
func controllerConfig(cfg *config.Config) mccontrol.Config {
	c := mccontrol.Config{
		Host:         cfg.RconHost,
		GamePort:     cfg.GamePort,
		RconPort:     cfg.RconPort,
		RconPassword: cfg.RconPassword,
		RconTimeout:  cfg.RconTimeout,
		RconPacing:   cfg.RconPacing,
	}
	if cfg.K8sEnabled {
		c.K8s = &mccontrol.K8sConfig{
			RunMode:              cfg.K8sRunMode,
			KubeconfigPath:       cfg.K8sKubeconfig,
			Namespace:            cfg.K8sNamespace,
			PodLabelSelector:     cfg.K8sPodSelector,
			ServiceLabelSelector: cfg.K8sServiceSelector,
			ContainerName:        cfg.K8sContainer,
		}
	}
	return c
}

// controller 创建连接服务器的控制器，调用方负责 Close
func (a *app) controller() (*mccontrol.MinecraftController, error) {
	if err := a.cfg.RequireRcon(); err != nil {
		return nil, err
	}
	controller, err := mccontrol.NewMinecraftController(controllerConfig(a.cfg))
	if err != nil {
		return nil, fmt.Errorf("创建Minecraft控制器失败: %w", err)
	}
	return controller, nil
}
