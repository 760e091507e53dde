package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/mcparse"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/pkg/mccontrol"
	"city.newnan/mc-toolbox/pkg/rcon"
)

// ServerBackend 查询状态和执行命令，由 mccontrol.MinecraftController 实现
type ServerBackend interface {
	CheckServerStatus() (*mccontrol.ServerStatus, error)
	ExecuteCommand(command string) (string, error)
}

// ServerController 服务器状态和命令
type ServerController struct {
	Backend ServerBackend
}

// NewServerController 创建服务器控制器
func NewServerController(backend ServerBackend) *ServerController {
	return &ServerController{Backend: backend}
}

// GetStatus 通过 Server List Ping 查询服务器状态
// @Summary 服务器状态
// @Description 服务器离线时 online 为 false，原因见 last_error
// @Tags 服务器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=mccontrol.ServerStatus} "获取成功"
// @Failure 502 {object} model.Response "无法获取服务器地址"
// @Router /api/v1/server/status [get]
func (c *ServerController) GetStatus(ctx *gin.Context) {
	status, err := c.Backend.CheckServerStatus()
	if err != nil && status == nil {
		abort(ctx, http.StatusBadGateway, "获取服务器状态失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(status))
}

// ExecuteCommand 通过RCON执行一条命令
// @Summary 执行服务器命令
// @Tags 服务器
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param command body model.CommandRequest true "命令，开头的 / 可省略"
// @Success 200 {object} model.Response{data=model.CommandResponse} "执行成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 502 {object} model.Response "RCON错误"
// @Router /api/v1/server/command [post]
func (c *ServerController) ExecuteCommand(ctx *gin.Context) {
	var req model.CommandRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}
	command := strings.TrimPrefix(strings.TrimSpace(req.Command), "/")
	if command == "" {
		abort(ctx, http.StatusBadRequest, "命令不能为空")
		return
	}

	username := middleware.GetCurrentUsername(ctx)
	output, err := c.Backend.ExecuteCommand(command)
	if err != nil {
		logger.L().Warn("执行服务器命令失败",
			zap.String("user", username), zap.String("command", command), zap.Error(err))
		code := http.StatusBadGateway
		if errors.Is(err, rcon.ErrTimeout) {
			code = http.StatusGatewayTimeout
		}
		abort(ctx, code, "命令执行失败: "+err.Error())
		return
	}

	logger.L().Info("执行服务器命令", zap.String("user", username), zap.String("command", command))
	ctx.JSON(http.StatusOK, model.SuccessResponse(model.CommandResponse{
		Command: command,
		Output:  output,
		Plain:   mcparse.StripColorCodes(output),
	}))
}
