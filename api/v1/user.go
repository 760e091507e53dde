package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
)

// UserController 用户相关API控制器
type UserController struct {
	UserService *service.UserService
	Config      *config.Config
}

// NewUserController 创建用户控制器
func NewUserController(cfg *config.Config) *UserController {
	return &UserController{
		UserService: service.NewUserService(cfg),
		Config:      cfg,
	}
}

// Register 用户注册，第一个注册的用户成为管理员
// @Summary 用户注册
// @Tags 用户管理
// @Accept json
// @Produce json
// @Param user body model.UserRegister true "用户注册信息"
// @Success 200 {object} model.Response{data=map[string]interface{}} "注册成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 409 {object} model.Response "用户名或邮箱已存在"
// @Router /api/v1/user/register [post]
func (c *UserController) Register(ctx *gin.Context) {
	var req model.UserRegister
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	user, token, err := c.UserService.Register(req)
	if err != nil {
		abort(ctx, errorStatus(err), "注册失败: "+err.Error())
		return
	}

	setTokenCookie(ctx, c.Config, token, c.Config.JWTExpireTime)
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"user":  user.ToUserResponse(),
		"token": token,
	}))
}

// Login 用户登录
// @Summary 用户登录
// @Tags 用户管理
// @Accept json
// @Produce json
// @Param login body model.UserLogin true "登录信息"
// @Success 200 {object} model.Response{data=map[string]interface{}} "登录成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Failure 401 {object} model.Response "认证失败"
// @Router /api/v1/user/login [post]
func (c *UserController) Login(ctx *gin.Context) {
	var req model.UserLogin
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	user, token, err := c.UserService.Login(req)
	if err != nil {
		code := errorStatus(err)
		if code == http.StatusNotFound {
			code = http.StatusUnauthorized
		}
		abort(ctx, code, "登录失败: "+err.Error())
		return
	}

	setTokenCookie(ctx, c.Config, token, c.Config.JWTExpireTime)
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]interface{}{
		"user":  user.ToUserResponse(),
		"token": token,
	}))
}

// Logout 清除认证Cookie
// @Summary 用户登出
// @Tags 用户管理
// @Produce json
// @Success 200 {object} model.Response "登出成功"
// @Router /api/v1/user/logout [post]
func (c *UserController) Logout(ctx *gin.Context) {
	setTokenCookie(ctx, c.Config, "", -1)
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// RefreshToken 用数据库中最新的角色重新签发Token
// @Summary 刷新JWT令牌
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=map[string]string} "刷新成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/user/refresh-token [get]
func (c *UserController) RefreshToken(ctx *gin.Context) {
	user, err := c.UserService.GetUserByID(middleware.GetCurrentUserID(ctx))
	if err != nil {
		abort(ctx, http.StatusUnauthorized, "刷新令牌失败: "+err.Error())
		return
	}
	if !user.IsActive() {
		abort(ctx, http.StatusUnauthorized, service.ErrUserDisabled.Error())
		return
	}

	token, err := middleware.GenerateToken(*user, c.Config)
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "刷新令牌失败: "+err.Error())
		return
	}

	setTokenCookie(ctx, c.Config, token, c.Config.JWTExpireTime)
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]string{"token": token}))
}

// GetProfile 获取当前用户信息
// @Summary 获取当前用户信息
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} model.Response{data=model.UserResponse} "获取成功"
// @Failure 401 {object} model.Response "未授权"
// @Router /api/v1/user/profile [get]
func (c *UserController) GetProfile(ctx *gin.Context) {
	user, err := c.UserService.GetUserByID(middleware.GetCurrentUserID(ctx))
	if err != nil {
		abort(ctx, errorStatus(err), "获取用户信息失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// UpdateProfile 更新当前用户的邮箱或密码
// @Summary 更新当前用户信息
// @Tags 用户管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param update body model.UserUpdate true "用户信息更新"
// @Success 200 {object} model.Response{data=model.UserResponse} "更新成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/user/profile [put]
func (c *UserController) UpdateProfile(ctx *gin.Context) {
	c.update(ctx, middleware.GetCurrentUserID(ctx))
}

func (c *UserController) update(ctx *gin.Context, id uint) {
	var req model.UserUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	user, err := c.UserService.UpdateUser(id, req)
	if err != nil {
		abort(ctx, errorStatus(err), "更新用户信息失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// ListUsers 获取用户列表
// @Summary 获取用户列表
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(10)
// @Param query query string false "搜索关键词"
// @Success 200 {object} model.Response{data=model.Page{items=[]model.UserResponse}} "获取成功"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	users, total, err := c.UserService.ListUsers(page, pageSize, ctx.Query("query"))
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "获取用户列表失败: "+err.Error())
		return
	}

	items := make([]model.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, user.ToUserResponse())
	}
	ctx.JSON(http.StatusOK, model.PagedResponse(items, total, page, pageSize))
}

// GetUser 获取指定用户信息
// @Summary 获取指定用户信息
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response{data=model.UserResponse} "获取成功"
// @Failure 404 {object} model.Response "用户不存在"
// @Router /api/v1/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	id, ok := pathID(ctx, "用户")
	if !ok {
		return
	}

	user, err := c.UserService.GetUserByID(id)
	if err != nil {
		abort(ctx, errorStatus(err), "获取用户信息失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(user.ToUserResponse()))
}

// UpdateUser 更新指定用户信息
// @Summary 更新指定用户信息
// @Tags 用户管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param update body model.UserUpdate true "用户信息更新"
// @Success 200 {object} model.Response{data=model.UserResponse} "更新成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/users/{id} [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	if id, ok := pathID(ctx, "用户"); ok {
		c.update(ctx, id)
	}
}

// otherUserID 解析目标用户ID，不允许对自己操作
func otherUserID(ctx *gin.Context, action string) (uint, bool) {
	id, ok := pathID(ctx, "用户")
	if !ok {
		return 0, false
	}
	if id == middleware.GetCurrentUserID(ctx) {
		abort(ctx, http.StatusBadRequest, "不能"+action+"自己的账号")
		return 0, false
	}
	return id, true
}

// DeleteUser 删除用户
// @Summary 删除用户
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response "删除成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/users/{id} [delete]
func (c *UserController) DeleteUser(ctx *gin.Context) {
	id, ok := otherUserID(ctx, "删除")
	if !ok {
		return
	}
	if err := c.UserService.DeleteUser(id); err != nil {
		abort(ctx, errorStatus(err), "删除用户失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// DisableUser 禁用用户
// @Summary 禁用用户
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response "禁用成功"
// @Router /api/v1/users/{id}/disable [put]
func (c *UserController) DisableUser(ctx *gin.Context) {
	id, ok := otherUserID(ctx, "禁用")
	if !ok {
		return
	}
	if err := c.UserService.DisableUser(id); err != nil {
		abort(ctx, errorStatus(err), "禁用用户失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// EnableUser 启用用户
// @Summary 启用用户
// @Tags 用户管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} model.Response "启用成功"
// @Router /api/v1/users/{id}/enable [put]
func (c *UserController) EnableUser(ctx *gin.Context) {
	id, ok := pathID(ctx, "用户")
	if !ok {
		return
	}
	if err := c.UserService.EnableUser(id); err != nil {
		abort(ctx, errorStatus(err), "启用用户失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// ChangeUserRole 更改用户角色
// @Summary 更改用户角色
// @Tags 用户管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Param role body model.UserRoleChange true "新的角色"
// @Success 200 {object} model.Response "更改成功"
// @Router /api/v1/users/{id}/role [put]
func (c *UserController) ChangeUserRole(ctx *gin.Context) {
	id, ok := otherUserID(ctx, "修改")
	if !ok {
		return
	}

	var req model.UserRoleChange
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	if err := c.UserService.ChangeUserRole(id, req.RoleID); err != nil {
		abort(ctx, errorStatus(err), "更改用户角色失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}
