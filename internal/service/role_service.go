package service

import (
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"gorm.io/gorm"

	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
)

var (
	ErrRoleNotFound     = errors.New("角色不存在")
	ErrRoleNameTaken    = errors.New("角色名已存在")
	ErrRoleInUse        = errors.New("该角色下还有用户")
	ErrBuiltinRole      = errors.New("不能修改或删除内置角色")
	ErrEnforcerNotReady = errors.New("权限系统未初始化")
)

// enforcer 返回全局的 casbin enforcer
func enforcer() (*casbin.Enforcer, error) {
	e := middleware.GetEnforcer()
	if e == nil {
		return nil, ErrEnforcerNotReady
	}
	return e, nil
}

// RoleService 提供角色相关功能
type RoleService struct{}

// NewRoleService 创建角色服务实例
func NewRoleService() *RoleService {
	return &RoleService{}
}

// CreateRole 创建新角色
func (s *RoleService) CreateRole(role model.Role) (*model.Role, error) {
	// 检查角色名是否已存在
	var existingRole model.Role
	if err := db.DB.Where("name = ?", role.Name).First(&existingRole).Error; err == nil {
		return nil, ErrRoleNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 创建新角色
	if err := db.DB.Create(&role).Error; err != nil {
		return nil, err
	}

	return &role, nil
}

// GetRoleByID 根据ID获取角色
func (s *RoleService) GetRoleByID(id uint) (*model.Role, error) {
	var role model.Role
	if err := db.DB.First(&role, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// GetRoleByName 根据名称获取角色
func (s *RoleService) GetRoleByName(name string) (*model.Role, error) {
	var role model.Role
	if err := db.DB.Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// UpdateRole 修改名称或描述，改名时权限策略随之迁移，内置角色不能改名
func (s *RoleService) UpdateRole(id uint, update model.Role) (*model.Role, error) {
	role, err := s.GetRoleByID(id)
	if err != nil {
		return nil, err
	}

	oldName := role.Name
	renamed := update.Name != "" && update.Name != oldName
	if renamed {
		if IsBuiltinRole(oldName) {
			return nil, ErrBuiltinRole
		}
		var count int64
		if err := db.DB.Model(&model.Role{}).Where("name = ? AND id <> ?", update.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrRoleNameTaken
		}
		role.Name = update.Name
	}
	if update.Description != "" {
		role.Description = update.Description
	}

	if err := db.DB.Save(role).Error; err != nil {
		return nil, err
	}
	if renamed {
		if err := movePolicies(oldName, role.Name); err != nil {
			return nil, fmt.Errorf("迁移角色权限失败: %w", err)
		}
	}
	return role, nil
}

// movePolicies 把 from 的权限策略改到 to 名下
func movePolicies(from, to string) error {
	e, err := enforcer()
	if err != nil {
		return err
	}
	perms, err := e.GetPermissionsForUser(from)
	if err != nil || len(perms) == 0 {
		return err
	}
	if _, err := e.RemoveFilteredPolicy(0, from); err != nil {
		return err
	}
	moved := make([][]string, len(perms))
	for i, p := range perms {
		moved[i] = append([]string{to}, p[1:]...)
	}
	_, err = e.AddPolicies(moved)
	return err
}

// ListRoles 获取所有角色
func (s *RoleService) ListRoles(page, pageSize int) ([]model.Role, int64, error) {
	var roles []model.Role
	var total int64

	// 获取总数
	if err := db.DB.Model(&model.Role{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	if err := db.DB.Offset((page - 1) * pageSize).Limit(pageSize).Find(&roles).Error; err != nil {
		return nil, 0, err
	}

	return roles, total, nil
}

// DeleteRole 删除没有用户的自定义角色及其权限策略
func (s *RoleService) DeleteRole(id uint) error {
	role, err := s.GetRoleByID(id)
	if err != nil {
		return err
	}
	if IsBuiltinRole(role.Name) {
		return ErrBuiltinRole
	}

	var count int64
	if err := db.DB.Model(&model.User{}).Where("role_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrRoleInUse
	}

	if err := db.DB.Delete(role).Error; err != nil {
		return err
	}
	if e, err := enforcer(); err == nil {
		if _, err := e.RemoveFilteredPolicy(0, role.Name); err != nil {
			return fmt.Errorf("删除角色权限失败: %w", err)
		}
	}
	return nil
}

// GetRolePermissions 获取角色权限
func (s *RoleService) GetRolePermissions(roleName string) ([][]string, error) {
	e, err := enforcer()
	if err != nil {
		return nil, err
	}
	return e.GetPermissionsForUser(roleName)
}

// AddRolePermission 添加角色权限
func (s *RoleService) AddRolePermission(roleName, path, method string) (bool, error) {
	e, err := enforcer()
	if err != nil {
		return false, err
	}
	return e.AddPolicy(roleName, path, method)
}

// RemoveRolePermission 移除角色权限
func (s *RoleService) RemoveRolePermission(roleName, path, method string) (bool, error) {
	e, err := enforcer()
	if err != nil {
		return false, err
	}
	return e.RemovePolicy(roleName, path, method)
}

// builtinRoles 内置角色及其描述
var builtinRoles = []model.Role{
	{Name: model.RoleAdmin, Description: "系统管理员"},
	{Name: model.RoleOperator, Description: "服务器管理员"},
	{Name: model.RoleUser, Description: "普通用户"},
}

// builtinPolicies 内置角色的权限，operator 另外继承 user 的全部权限
var builtinPolicies = [][]string{
	{model.RoleAdmin, "*", "*"},

	{model.RoleUser, "/api/v1/user/profile", "GET"},
	{model.RoleUser, "/api/v1/user/profile", "PUT"},
	{model.RoleUser, "/api/v1/user/refresh-token", "GET"},
	{model.RoleUser, "/api/v1/server/status", "GET"},
	{model.RoleUser, "/api/v1/reports/*", "GET"},
	{model.RoleUser, "/api/v1/treasure/hunts/current", "GET"},
	{model.RoleUser, "/api/v1/metrics/latest", "GET"},
	{model.RoleUser, "/api/v1/sse", "GET"},

	{model.RoleOperator, "/api/v1/server/command", "POST"},
	{model.RoleOperator, "/api/v1/treasure/hunts", "POST"},
	{model.RoleOperator, "/api/v1/treasure/hunts/current", "DELETE"},
	{model.RoleOperator, "/api/v1/metrics/samples", "POST"},
	{model.RoleOperator, "/api/v1/ws", "GET"},
}

// ensureRole 角色不存在时创建
func (s *RoleService) ensureRole(role model.Role) error {
	if _, err := s.GetRoleByName(role.Name); err == nil {
		return nil
	} else if !errors.Is(err, ErrRoleNotFound) {
		return fmt.Errorf("检查角色 %s 失败: %w", role.Name, err)
	}
	if _, err := s.CreateRole(role); err != nil {
		return fmt.Errorf("创建角色 %s 失败: %w", role.Name, err)
	}
	return nil
}

// SetupInitialRoles 设置初始角色和权限
func (s *RoleService) SetupInitialRoles() error {
	for _, role := range builtinRoles {
		if err := s.ensureRole(role); err != nil {
			return err
		}
	}

	e, err := enforcer()
	if err != nil {
		return err
	}

	// 内置角色的策略每次启动时重建，自定义角色的策略保持不变
	for _, role := range builtinRoles {
		if _, err := e.RemoveFilteredPolicy(0, role.Name); err != nil {
			return err
		}
	}
	if _, err := e.AddPolicies(builtinPolicies); err != nil {
		return err
	}
	if _, err := e.AddGroupingPolicy(model.RoleOperator, model.RoleUser); err != nil {
		return err
	}
	return e.SavePolicy()
}

// IsBuiltinRole 内置角色不能删除或改名
func IsBuiltinRole(name string) bool {
	for _, role := range builtinRoles {
		if role.Name == name {
			return true
		}
	}
	return false
}
