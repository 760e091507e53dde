package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/sse"
	"city.newnan/mc-toolbox/internal/websocket"
)

// RealtimeController 网页控制台和事件流
type RealtimeController struct {
	Manager *websocket.Manager
	Handler *websocket.Handler
	Broker  *sse.Broker
}

// NewRealtimeController 创建实时通信控制器，cmd 为 nil 时网页控制台只读
func NewRealtimeController(manager *websocket.Manager, broker *sse.Broker, cmd websocket.Commander) *RealtimeController {
	return &RealtimeController{
		Manager: manager,
		Handler: websocket.NewHandler(manager, cmd),
		Broker:  broker,
	}
}

// HandleWebSocket 网页控制台
// @Summary WebSocket控制台
// @Description 发送 command 消息执行服务器命令，结果广播到所在房间（默认 console）
// @Tags 实时通信
// @Param room query string false "房间名称" default(console)
// @Param token query string false "JWT，浏览器无法设置请求头时使用"
// @Security ApiKeyAuth
// @Success 101 {string} string "切换为WebSocket协议"
// @Failure 401 {object} model.Response "未授权"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/ws [get]
func (c *RealtimeController) HandleWebSocket(ctx *gin.Context) {
	c.Handler.ServeHTTP(ctx)
}

// HandleSSE 寻宝进度和性能采样的事件流
// @Summary SSE事件流
// @Tags 实时通信
// @Param topic query string false "主题：treasure 或 metrics，为空时接收全部"
// @Param token query string false "JWT，浏览器无法设置请求头时使用"
// @Security ApiKeyAuth
// @Success 200 {string} string "SSE数据流"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/sse [get]
func (c *RealtimeController) HandleSSE(ctx *gin.Context) {
	c.Broker.ServeHTTP(ctx)
}

// BroadcastMessage 向网页控制台广播通知
// @Summary 广播WebSocket消息
// @Tags 实时通信
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param message body websocket.BroadcastMessage true "广播消息"
// @Success 200 {object} model.Response "广播成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/ws/broadcast [post]
func (c *RealtimeController) BroadcastMessage(ctx *gin.Context) {
	var message websocket.BroadcastMessage
	if err := ctx.ShouldBindJSON(&message); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}
	if message.Type == "" {
		message.Type = websocket.MessageTypeNotify
	}

	c.Manager.Broadcast(&message)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// PublishSSEEvent 发布自定义事件
// @Summary 发布SSE事件
// @Tags 实时通信
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body sse.Message true "事件消息"
// @Success 200 {object} model.Response "发布成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/sse/publish [post]
func (c *RealtimeController) PublishSSEEvent(ctx *gin.Context) {
	var message sse.Message
	if err := ctx.ShouldBindJSON(&message); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	c.Broker.Publish(&message)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetRealtimeStats 获取实时连接统计
// @Summary 获取实时连接统计
// @Tags 实时通信
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response "获取成功"
// @Router /api/v1/realtime/stats [get]
func (c *RealtimeController) GetRealtimeStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"websocket_total":   c.Manager.ClientCount(),
		"websocket_console": len(c.Manager.GetRoomClients(websocket.ConsoleRoom)),
		"sse_total":         c.Broker.GetClientCount(),
		"sse_treasure":      c.Broker.GetTopicClientCount(sse.TopicTreasure),
		"sse_metrics":       c.Broker.GetTopicClientCount(sse.TopicMetrics),
		"timestamp":         time.Now().Format(time.RFC3339),
		"username":          middleware.GetCurrentUsername(ctx),
	}))
}
