package v1

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"city.newnan/mc-toolbox/internal/logger"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
)

// TreasureController 寻宝活动
type TreasureController struct {
	Service *service.TreasureService
}

// NewTreasureController 创建寻宝控制器
func NewTreasureController(svc *service.TreasureService) *TreasureController {
	return &TreasureController{Service: svc}
}

// StartHunt 在后台开始一次寻宝活动，进度通过 SSE 的 treasure 主题推送
// @Summary 开始寻宝
// @Tags 寻宝
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param hunt body model.HuntRequest false "force 为 true 时不做随机跳过"
// @Success 202 {object} model.Response{data=service.HuntState} "已开始"
// @Failure 409 {object} model.Response "已有活动在进行"
// @Router /api/v1/treasure/hunts [post]
func (c *TreasureController) StartHunt(ctx *gin.Context) {
	var req model.HuntRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	if err := c.Service.Start(req.Force); err != nil {
		if errors.Is(err, service.ErrHuntRunning) {
			abort(ctx, http.StatusConflict, err.Error())
			return
		}
		abort(ctx, http.StatusInternalServerError, "开始寻宝失败: "+err.Error())
		return
	}

	logger.L().Info("开始寻宝活动", zap.String("user", middleware.GetCurrentUsername(ctx)), zap.Bool("force", req.Force))
	ctx.JSON(http.StatusAccepted, model.SuccessResponse(c.Service.Current()))
}

// CurrentHunt 当前或最近一次寻宝活动的状态
// @Summary 寻宝状态
// @Tags 寻宝
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=service.HuntState} "获取成功"
// @Router /api/v1/treasure/hunts/current [get]
func (c *TreasureController) CurrentHunt(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.SuccessResponse(c.Service.Current()))
}

// StopHunt 取消正在进行的活动，宝箱会被移除
// @Summary 取消寻宝
// @Tags 寻宝
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=service.HuntState} "已取消"
// @Router /api/v1/treasure/hunts/current [delete]
func (c *TreasureController) StopHunt(ctx *gin.Context) {
	c.Service.Stop()
	logger.L().Info("取消寻宝活动", zap.String("user", middleware.GetCurrentUsername(ctx)))
	ctx.JSON(http.StatusOK, model.SuccessResponse(c.Service.Current()))
}
