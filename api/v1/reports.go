package v1

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
)

// reportContentTypes 各输出格式的 Content-Type
var reportContentTypes = map[metrics.Format]string{
	metrics.FormatBox:      "text/plain; charset=utf-8",
	metrics.FormatTable:    "text/plain; charset=utf-8",
	metrics.FormatCSV:      "text/csv; charset=utf-8",
	metrics.FormatJSON:     "application/json; charset=utf-8",
	metrics.FormatYAML:     "application/yaml; charset=utf-8",
	metrics.FormatMarkdown: "text/markdown; charset=utf-8",
}

// ReportController 在线时长和性能报表
type ReportController struct {
	Playtime *service.PlaytimeService
	Metrics  *service.MetricsService

	// 查询参数缺省时使用
	Days        int
	Percentiles []int
}

// NewReportController 创建报表控制器
func NewReportController(playtime *service.PlaytimeService, metricsService *service.MetricsService, days int, percentiles []int) *ReportController {
	return &ReportController{
		Playtime:    playtime,
		Metrics:     metricsService,
		Days:        days,
		Percentiles: percentiles,
	}
}

// GetPlaytimes 玩家在线时长排行
// @Summary 在线时长排行
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=service.PlaytimeReport} "获取成功"
// @Failure 500 {object} model.Response "读取日志失败"
// @Router /api/v1/reports/playtimes [get]
func (c *ReportController) GetPlaytimes(ctx *gin.Context) {
	report, err := c.Playtime.Report(ctx.Request.Context())
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "统计在线时长失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(report))
}

// GetPlaytimesHTML 在线时长排行的HTML页面
// @Summary 在线时长页面
// @Tags 报表
// @Produce html
// @Security ApiKeyAuth
// @Success 200 {string} string "HTML页面"
// @Router /api/v1/reports/playtimes.html [get]
func (c *ReportController) GetPlaytimesHTML(ctx *gin.Context) {
	var buf bytes.Buffer
	if err := c.Playtime.WriteHTML(ctx.Request.Context(), &buf); err != nil {
		abort(ctx, http.StatusInternalServerError, "生成在线时长页面失败: "+err.Error())
		return
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

// GetPerformance 按小时汇总的 mspt 报表
// @Summary 性能报表
// @Description format 为空时返回标准JSON响应，否则按指定格式输出纯文本
// @Tags 报表
// @Produce json,plain
// @Security ApiKeyAuth
// @Param days query int false "统计最近几天" default(7)
// @Param percentiles query []int false "分位数" collectionFormat(multi)
// @Param format query string false "box, table, csv, json, yaml, markdown"
// @Success 200 {object} model.Response{data=metrics.Report} "获取成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/reports/performance [get]
func (c *ReportController) GetPerformance(ctx *gin.Context) {
	var query model.PerformanceQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}
	if query.Days == 0 {
		query.Days = c.Days
	}
	if len(query.Percentiles) == 0 {
		query.Percentiles = c.Percentiles
	}

	var format metrics.Format
	if query.Format != "" {
		f, err := metrics.ParseFormat(query.Format)
		if err != nil {
			abort(ctx, http.StatusBadRequest, err.Error())
			return
		}
		format = f
	}

	report, err := c.Metrics.HourlyReport(query.Days, query.Percentiles)
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "生成性能报表失败: "+err.Error())
		return
	}

	if format == "" {
		ctx.JSON(http.StatusOK, model.SuccessResponse(report))
		return
	}
	var buf bytes.Buffer
	if err := report.Write(&buf, format); err != nil {
		abort(ctx, http.StatusInternalServerError, "输出性能报表失败: "+err.Error())
		return
	}
	ctx.Data(http.StatusOK, reportContentTypes[format], buf.Bytes())
}
