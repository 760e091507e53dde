package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
	"city.newnan/mc-toolbox/internal/sse"
)

// MetricsController 性能采样
type MetricsController struct {
	Collector *metrics.Collector
	Service   *service.MetricsService
	Broker    *sse.Broker
}

// NewMetricsController 创建性能采样控制器，broker 可以为 nil
func NewMetricsController(collector *metrics.Collector, svc *service.MetricsService, broker *sse.Broker) *MetricsController {
	return &MetricsController{Collector: collector, Service: svc, Broker: broker}
}

// CollectSample 立即采样一次并保存，结果推送到 SSE 的 metrics 主题
// @Summary 采集性能样本
// @Tags 性能
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=metrics.Sample} "采集成功"
// @Failure 502 {object} model.Response "服务器命令失败"
// @Router /api/v1/metrics/samples [post]
func (c *MetricsController) CollectSample(ctx *gin.Context) {
	sample, err := c.Collector.Collect()
	if err != nil {
		abort(ctx, http.StatusBadGateway, "采集性能数据失败: "+err.Error())
		return
	}
	if err := c.Service.Save(sample); err != nil {
		abort(ctx, http.StatusInternalServerError, "保存性能数据失败: "+err.Error())
		return
	}
	if c.Broker != nil {
		c.Broker.PublishSample(sample)
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(sample))
}

// LatestSample 最近一次保存的采样，没有数据时 data 为 null
// @Summary 最近的性能样本
// @Tags 性能
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=metrics.Sample} "获取成功"
// @Router /api/v1/metrics/latest [get]
func (c *MetricsController) LatestSample(ctx *gin.Context) {
	sample, err := c.Service.Latest()
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "读取性能数据失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(sample))
}
