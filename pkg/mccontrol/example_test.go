package mccontrol_test

import (
	"context"
	"fmt"
	"time"

	"city.newnan/mc-toolbox/pkg/mccontrol"
	"city.newnan/mc-toolbox/pkg/rcon/rcontest"
)

func ExampleMinecraftController_ExecuteCommand() {
	srv := rcontest.NewServer("minecraft-password", rcontest.Reply("There are 0 of a max of 20 players online: "))
	defer srv.Close()

	controller, err := mccontrol.NewMinecraftController(mccontrol.Config{
		Host:         srv.Host(),
		GamePort:     25565,
		RconPort:     srv.Port(),
		RconPassword: "minecraft-password",
	})
	if err != nil {
		fmt.Printf("创建控制器失败: %v\n", err)
		return
	}
	defer controller.Close()

	response, err := controller.ExecuteCommand("list")
	if err != nil {
		fmt.Printf("执行RCON命令失败: %v\n", err)
		return
	}
	fmt.Println(response)
	// Output: There are 0 of a max of 20 players online:
}

// 在K8s集群内运行，从Pod和Service发现服务器地址
func ExampleNewMinecraftController_inCluster() {
	controller, err := mccontrol.NewMinecraftController(mccontrol.Config{
		GamePort:     25565,
		RconPort:     25575,
		RconPassword: "minecraft-password",
		K8s: &mccontrol.K8sConfig{
			RunMode:              "InCluster",
			Namespace:            "newnancity",
			PodLabelSelector:     "app=server-main",
			ServiceLabelSelector: "app=server-main-svc",
			ContainerName:        "container-newnancity-server-main",
		},
	})
	if err != nil {
		fmt.Printf("创建控制器失败: %v\n", err)
		return
	}
	defer controller.Close()

	// Pod重建后地址会变化，后台定期更新
	controller.SetPodInfoUpdateInterval(3 * time.Minute)
	controller.StartPodInfoMonitoring(5 * time.Minute)
	controller.StartStatusMonitoring(30*time.Second, func(status mccontrol.ServerStatus) {
		fmt.Printf("在线: %v, 玩家: %d/%d\n", status.Online, status.Players, status.MaxPlayers)
	})
}

func ExampleMinecraftController_FetchLogs() {
	controller, err := mccontrol.NewMinecraftController(mccontrol.Config{
		GamePort:     25565,
		RconPort:     25575,
		RconPassword: "minecraft-password",
		K8s: &mccontrol.K8sConfig{
			RunMode:          "OutOfCluster",
			Namespace:        "minecraft",
			PodLabelSelector: "app=minecraft",
			ContainerName:    "minecraft-server",
		},
	})
	if err != nil {
		fmt.Printf("创建控制器失败: %v\n", err)
		return
	}
	defer controller.Close()

	// 一次性获取最近100行日志
	tailLines := int64(100)
	logs, err := controller.FetchLogs(context.Background(), mccontrol.LogOptions{TailLines: &tailLines}, nil)
	if err != nil {
		fmt.Printf("获取日志失败: %v\n", err)
		return
	}
	fmt.Printf("获取到%d行日志\n", len(logs))

	// 流式获取，每收集10行或最多等待500ms回调一次，ctx结束后停止
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, err = controller.FetchLogs(ctx, mccontrol.LogOptions{
		BatchSize:   10,
		MaxWaitTime: 500 * time.Millisecond,
	}, func(lines []string, message string) {
		if message != "" {
			fmt.Println(message)
		}
		fmt.Printf("收到%d行新日志\n", len(lines))
	})
	if err != nil {
		fmt.Printf("获取日志失败: %v\n", err)
		return
	}
	<-ctx.Done()
}
