/*
Package rcon 实现了Minecraft等游戏服务器使用的RCON远程控制台协议客户端。

协议是基于TCP的小端序二进制帧，每个请求对应一个或多个响应数据包。
服务器可能把一个逻辑响应拆成多个数据包，而协议本身没有结束标记，
所以客户端在读完一个数据包后会零等待地探测套接字：如果已经有后续数据
就继续读取并拼接，否则认为响应已经完整。

基本用法:

	client, err := rcon.Dial(ctx, "127.0.0.1", rcon.DefaultPort, "password",
		rcon.WithTimeout(5*time.Second),
	)
	if err != nil {
		// errors.Is(err, rcon.ErrAuthFailed) / rcon.ErrTimeout / rcon.ErrConnection
	}
	defer client.Close()

	response, err := client.Command("list")

客户端不会自动重试或重连，任何错误都会让会话回到未连接状态，
是否重连由调用方根据 IsRetryable 决定。
*/
package rcon
