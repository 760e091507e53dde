package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
)

// abort 以统一格式返回错误
func abort(ctx *gin.Context, code int, message string) {
	ctx.AbortWithStatusJSON(code, model.ErrorResponse(code, message))
}

// pathID 解析路径中的 :id，失败时已写入 400 响应
func pathID(ctx *gin.Context, what string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		abort(ctx, http.StatusBadRequest, "无效的"+what+"ID")
		return 0, false
	}
	return uint(id), true
}

// pagination 读取分页参数
func pagination(ctx *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(ctx.DefaultQuery("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}
	return page, pageSize
}

// setTokenCookie 写入认证Cookie，maxAge<0 时删除
func setTokenCookie(ctx *gin.Context, cfg *config.Config, token string, maxAge time.Duration) {
	age := int(maxAge.Seconds())
	if maxAge < 0 {
		age = -1
	}
	ctx.SetCookie("token", token, age, "/", "", cfg.JWTCookieSecure, cfg.JWTCookieHTTPOnly)
}

// errorStatus 账号和角色错误对应的HTTP状态码
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUserNotFound), errors.Is(err, service.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrRoleNameTaken), errors.Is(err, service.ErrRoleInUse):
		return http.StatusConflict
	case errors.Is(err, service.ErrWrongPassword), errors.Is(err, service.ErrUserDisabled):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrBuiltinRole):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
