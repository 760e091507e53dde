package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/service"
)

// RoleController 角色相关API控制器
type RoleController struct {
	RoleService *service.RoleService
}

// NewRoleController 创建角色控制器
func NewRoleController() *RoleController {
	return &RoleController{
		RoleService: service.NewRoleService(),
	}
}

// permissionRequest 一条路由权限
type permissionRequest struct {
	Path   string `json:"path" binding:"required"`
	Method string `json:"method" binding:"required"`
}

// ListRoles 获取角色列表
// @Summary 获取角色列表
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param pageSize query int false "每页数量" default(10)
// @Success 200 {object} model.Response{data=model.Page{items=[]model.Role}} "获取成功"
// @Failure 403 {object} model.Response "权限不足"
// @Router /api/v1/roles [get]
func (c *RoleController) ListRoles(ctx *gin.Context) {
	page, pageSize := pagination(ctx)
	roles, total, err := c.RoleService.ListRoles(page, pageSize)
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "获取角色列表失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.PagedResponse(roles, total, page, pageSize))
}

// role 按路径中的ID查找角色，失败时已写入响应
func (c *RoleController) role(ctx *gin.Context) (*model.Role, bool) {
	id, ok := pathID(ctx, "角色")
	if !ok {
		return nil, false
	}
	role, err := c.RoleService.GetRoleByID(id)
	if err != nil {
		abort(ctx, errorStatus(err), "获取角色信息失败: "+err.Error())
		return nil, false
	}
	return role, true
}

// GetRole 获取角色详情
// @Summary 获取角色详情
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Success 200 {object} model.Response{data=model.Role} "获取成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{id} [get]
func (c *RoleController) GetRole(ctx *gin.Context) {
	if role, ok := c.role(ctx); ok {
		ctx.JSON(http.StatusOK, model.SuccessResponse(role))
	}
}

// CreateRole 创建角色
// @Summary 创建角色
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param role body model.Role true "角色信息"
// @Success 200 {object} model.Response{data=model.Role} "创建成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/roles [post]
func (c *RoleController) CreateRole(ctx *gin.Context) {
	var role model.Role
	if err := ctx.ShouldBindJSON(&role); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	created, err := c.RoleService.CreateRole(role)
	if err != nil {
		abort(ctx, errorStatus(err), "创建角色失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(created))
}

// UpdateRole 更新角色
// @Summary 更新角色
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Param role body model.Role true "角色信息"
// @Success 200 {object} model.Response{data=model.Role} "更新成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/roles/{id} [put]
func (c *RoleController) UpdateRole(ctx *gin.Context) {
	id, ok := pathID(ctx, "角色")
	if !ok {
		return
	}

	var role model.Role
	if err := ctx.ShouldBindJSON(&role); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	updated, err := c.RoleService.UpdateRole(id, role)
	if err != nil {
		abort(ctx, errorStatus(err), "更新角色失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(updated))
}

// DeleteRole 删除角色，内置角色不能删除
// @Summary 删除角色
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Success 200 {object} model.Response "删除成功"
// @Failure 400 {object} model.Response "请求参数错误"
// @Router /api/v1/roles/{id} [delete]
func (c *RoleController) DeleteRole(ctx *gin.Context) {
	id, ok := pathID(ctx, "角色")
	if !ok {
		return
	}
	if err := c.RoleService.DeleteRole(id); err != nil {
		abort(ctx, errorStatus(err), "删除角色失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(nil))
}

// GetRolePermissions 获取角色权限
// @Summary 获取角色权限
// @Tags 角色管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Success 200 {object} model.Response{data=[][]string} "获取成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{id}/permissions [get]
func (c *RoleController) GetRolePermissions(ctx *gin.Context) {
	role, ok := c.role(ctx)
	if !ok {
		return
	}

	permissions, err := c.RoleService.GetRolePermissions(role.Name)
	if err != nil {
		abort(ctx, http.StatusInternalServerError, "获取角色权限失败: "+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(permissions))
}

// AddRolePermission 添加角色权限
// @Summary 添加角色权限
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Param permission body permissionRequest true "权限信息"
// @Success 200 {object} model.Response "添加成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{id}/permissions [post]
func (c *RoleController) AddRolePermission(ctx *gin.Context) {
	c.changePermission(ctx, c.RoleService.AddRolePermission, "添加角色权限失败: ")
}

// RemoveRolePermission 删除角色权限
// @Summary 删除角色权限
// @Tags 角色管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "角色ID"
// @Param permission body permissionRequest true "权限信息"
// @Success 200 {object} model.Response "删除成功"
// @Failure 404 {object} model.Response "角色不存在"
// @Router /api/v1/roles/{id}/permissions [delete]
func (c *RoleController) RemoveRolePermission(ctx *gin.Context) {
	c.changePermission(ctx, c.RoleService.RemoveRolePermission, "删除角色权限失败: ")
}

func (c *RoleController) changePermission(ctx *gin.Context, apply func(role, path, method string) (bool, error), failure string) {
	role, ok := c.role(ctx)
	if !ok {
		return
	}

	var req permissionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		abort(ctx, http.StatusBadRequest, "无效的请求参数: "+err.Error())
		return
	}

	changed, err := apply(role.Name, req.Path, req.Method)
	if err != nil {
		abort(ctx, http.StatusInternalServerError, failure+err.Error())
		return
	}
	ctx.JSON(http.StatusOK, model.SuccessResponse(map[string]bool{"changed": changed}))
}
