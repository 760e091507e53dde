package main

import "city.newnan/mc-toolbox/cmd"

// @title           Minecraft 工具箱 API
// @version         1.0
// @description     通过RCON管理Minecraft服务器：命令、寻宝活动、在线时长和性能报表

// @contact.name   API 支持
// @contact.url    http://www.newnan.city/support
// @contact.email  support@newnan.city

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        Authorization
// @description                 Bearer 认证, 例如: "Bearer {token}"

// @tag.name         服务器
// @tag.description  状态查询和RCON命令
// @tag.name         报表
// @tag.description  在线时长和性能报表
// @tag.name         寻宝
// @tag.description  寻宝活动

func main() {
	cmd.Execute()
}
