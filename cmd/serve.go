package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/playtime"
	"city.newnan/mc-toolbox/internal/router"
	"city.newnan/mc-toolbox/internal/service"
	"city.newnan/mc-toolbox/internal/sse"
	"city.newnan/mc-toolbox/internal/treasure"
	"city.newnan/mc-toolbox/internal/websocket"
	"city.newnan/mc-toolbox/pkg/mccontrol"
)

type serveOptions struct {
	host          string
	port          int
	statusEvery   time.Duration
	collectEvery  time.Duration
	publishEvery  time.Duration
	playtimeCache time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	c := &cobra.Command{
		Use:   "serve",
		Short: "启动Web服务",
		Long:  "启动HTTP API、WebSocket控制台和SSE推送，可选定期采集性能数据和发布在线时长页面。",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.host != "" {
				a.cfg.ServerHost = opts.host
			}
			if opts.port != 0 {
				a.cfg.ServerPort = opts.port
			}
			return a.serve(cmd.Context(), opts)
		},
	}

	flags := c.Flags()
	flags.StringVar(&opts.host, "host", "", "监听地址，默认使用配置")
	flags.IntVarP(&opts.port, "port", "p", 0, "监听端口，默认使用配置")
	flags.DurationVar(&opts.statusEvery, "status-every", 30*time.Second, "检查服务器状态并推送到控制台房间的间隔")
	flags.DurationVar(&opts.collectEvery, "collect-every", 0, "定期采集性能数据的间隔，0 表示不采集")
	flags.DurationVar(&opts.publishEvery, "publish-every", 0, "定期发布在线时长页面的间隔，0 表示不发布")
	flags.DurationVar(&opts.playtimeCache, "playtime-cache", time.Minute, "在线时长统计的缓存时间")
	return c
}

func (a *app) serve(parent context.Context, opts *serveOptions) error {
	cfg := a.cfg
	log := logger.L()

	if err := db.InitDB(cfg); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	defer db.CloseDB()

	if err := middleware.InitCasbin(db.DB); err != nil {
		return fmt.Errorf("初始化Casbin失败: %w", err)
	}
	if err := service.NewRoleService().SetupInitialRoles(); err != nil {
		log.Warn("设置初始角色和权限失败", zap.Error(err))
	}

	controller, err := a.controller()
	if err != nil {
		return err
	}
	defer controller.Close()

	ctx, stop := signalContext(parent)
	defer stop()

	broker := sse.NewBroker()
	manager := websocket.NewManager()
	manager.StartHeartbeat(ctx, 30*time.Second, 90*time.Second)

	playtimeService := service.NewPlaytimeService(a.playtimeSource(controller), opts.playtimeCache)
	metricsService := service.NewMetricsService(db.DB)
	collector := metrics.NewCollector(controller)
	narrator := treasure.NewNarrator(cfg.NarratorAPIKey, cfg.NarratorModel, cfg.NarratorBaseURL)
	huntLogger := log.Named("treasure")
	treasureService := service.NewTreasureService(ctx, func() *treasure.Hunt {
		world := treasure.NewWorld(controller, treasure.WithLogger(huntLogger))
		hunt := treasure.NewHunt(controller, world, narrator, huntLogger)
		hunt.SkipOdds = cfg.TreasureSkipOdds
		return hunt
	}, broker.TreasureSink(), huntLogger)
	defer treasureService.Stop()

	if opts.statusEvery > 0 {
		controller.StartStatusMonitoring(opts.statusEvery, func(status mccontrol.ServerStatus) {
			manager.Broadcast(&websocket.BroadcastMessage{
				Room:    websocket.ConsoleRoom,
				Type:    websocket.MessageTypeStatus,
				Content: status,
			})
		})
		if controller.HasKubernetes() {
			controller.StartPodInfoMonitoring(opts.statusEvery)
		}
	}

	r := router.SetupRouter(cfg, router.Deps{
		Backend:   controller,
		Collector: collector,
		Metrics:   metricsService,
		Playtime:  playtimeService,
		Treasure:  treasureService,
		Broker:    broker,
		Manager:   manager,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("服务器开始运行", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("正在关闭服务器...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("服务器被强制关闭: %w", err)
		}
		return nil
	})

	if controller.HasKubernetes() {
		g.Go(func() error {
			a.followPodLogs(gctx, controller, manager)
			return nil
		})
	}
	if opts.collectEvery > 0 {
		g.Go(func() error {
			every(gctx, opts.collectEvery, func() {
				sample, err := collector.Collect()
				if err != nil {
					log.Warn("采集性能数据失败", zap.Error(err))
					return
				}
				if err := metricsService.Save(sample); err != nil {
					log.Warn("保存性能数据失败", zap.Error(err))
					return
				}
				broker.PublishSample(sample)
			})
			return nil
		})
	}
	if opts.publishEvery > 0 && cfg.PlaytimeOutput != "" {
		g.Go(func() error {
			every(gctx, opts.publishEvery, func() {
				if err := playtimeService.Publish(gctx, cfg.PlaytimeOutput); err != nil {
					log.Warn("发布在线时长页面失败", zap.Error(err))
				}
			})
			return nil
		})
	}

	err = g.Wait()
	log.Info("服务器优雅退出")
	return err
}

// playtimeSource 启用Kubernetes且没有配置日志目录时读取Pod日志
func (a *app) playtimeSource(controller *mccontrol.MinecraftController) playtime.Source {
	if a.cfg.MCLogDir == "" && controller.HasKubernetes() {
		return &playtime.PodSource{Fetcher: controller}
	}
	return &playtime.DirSource{Dir: a.cfg.MCLogDir}
}

// followPodLogs 把Pod日志推送到控制台房间
func (a *app) followPodLogs(ctx context.Context, controller *mccontrol.MinecraftController, manager *websocket.Manager) {
	tail := int64(100)
	_, err := controller.FetchLogs(ctx, mccontrol.LogOptions{
		TailLines:   &tail,
		BatchSize:   10,
		MaxWaitTime: 500 * time.Millisecond,
	}, func(lines []string, message string) {
		content := map[string]interface{}{"lines": lines}
		if message != "" {
			content["message"] = message
		}
		manager.Broadcast(&websocket.BroadcastMessage{
			Room:    websocket.ConsoleRoom,
			Type:    websocket.MessageTypeLog,
			Content: content,
		})
	})
	if err != nil {
		logger.L().Warn("获取服务器日志失败", zap.Error(err))
		return
	}
	<-ctx.Done()
}

// every 立即执行一次 fn，之后每隔 interval 执行，直到 ctx 结束
func every(ctx context.Context, interval time.Duration, fn func()) {
	fn()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// commandContext 命令的上下文，未通过 ExecuteContext 设置时为 Background
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext 在收到中断信号时取消
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
