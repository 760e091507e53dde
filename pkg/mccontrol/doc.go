/*
Package mccontrol 提供了与Minecraft服务器交互的功能，服务器可以运行在固定地址上，
也可以部署在Kubernetes集群中由控制器自动发现。

主要特性:

  - 服务器状态：通过Server List Ping获取在线状态、玩家数量、版本等信息
  - 命令执行：通过RCON协议执行命令，连接错误和超时会退避重试
  - 持久会话：交互式控制台使用的长连接会话，空闲后自动关闭
  - 日志：从Kubernetes获取服务器Pod的历史日志和实时日志流

基本用法:

	controller, err := mccontrol.NewMinecraftController(mccontrol.Config{
		Host:         "127.0.0.1",
		GamePort:     25565,
		RconPort:     25575,
		RconPassword: "minecraft-password",
		// K8s: &mccontrol.K8sConfig{Namespace: "minecraft", PodLabelSelector: "app=minecraft"},
	})
	if err != nil {
		// 处理错误
	}
	defer controller.Close()

	status, err := controller.CheckServerStatus()
	response, err := controller.ExecuteCommand("list")
*/
package mccontrol
