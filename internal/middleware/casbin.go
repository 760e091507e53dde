package middleware

import (
	"net/http"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"city.newnan/mc-toolbox/internal/model"
)

// rbacModel 角色可以继承另一个角色的权限，路径支持 keyMatch2 通配
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || keyMatch2(r.obj, p.obj)) && (p.act == "*" || r.act == p.act)
`

var (
	enforcer *casbin.Enforcer
)

// NewEnforcer 创建使用数据库保存策略的执行器
func NewEnforcer(conn *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(conn)
	if err != nil {
		return nil, err
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, err
	}
	return e, nil
}

// InitCasbin 初始化全局执行器
func InitCasbin(conn *gorm.DB) error {
	e, err := NewEnforcer(conn)
	if err != nil {
		return err
	}
	enforcer = e
	return nil
}

// GetEnforcer 获取Casbin执行器
func GetEnforcer() *casbin.Enforcer {
	return enforcer
}

// Authorize 授权中间件，以角色名为主体检查 路径+方法
func Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if enforcer == nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限系统未初始化"))
			c.Abort()
			return
		}

		roleName, exists := c.Get("role_name")
		if !exists {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse(401, "未授权: 无法获取用户角色"))
			c.Abort()
			return
		}

		ok, err := enforcer.Enforce(roleName, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.JSON(http.StatusInternalServerError, model.ErrorResponse(500, "权限检查失败: "+err.Error()))
			c.Abort()
			return
		}
		if !ok {
			c.JSON(http.StatusForbidden, model.ErrorResponse(403, "权限不足: 无权访问此资源"))
			c.Abort()
			return
		}

		c.Next()
	}
}
