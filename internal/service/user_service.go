package service

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
)

var (
	ErrUsernameTaken = errors.New("用户名已存在")
	ErrEmailTaken    = errors.New("邮箱已被使用")
	ErrUserNotFound  = errors.New("用户不存在")
	ErrWrongPassword = errors.New("密码错误")
	ErrUserDisabled  = errors.New("账号已禁用")
)

// UserService 账号注册、登录和管理
type UserService struct {
	Config *config.Config
}

func NewUserService(cfg *config.Config) *UserService {
	return &UserService{Config: cfg}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// taken 判断字段值是否已被 excludeID 之外的账号使用
func taken(tx *gorm.DB, column, value string, excludeID uint) (bool, error) {
	var count int64
	q := tx.Model(&model.User{}).Where(column+" = ?", value)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Register 创建账号并签发Token，数据库里还没有账号时新账号为管理员
func (s *UserService) Register(req model.UserRegister) (*model.User, string, error) {
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	user := model.User{
		Username:  req.Username,
		Password:  hashed,
		Email:     req.Email,
		LastLogin: time.Now(),
		Status:    model.UserActive,
	}
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if ok, err := taken(tx, "username", req.Username, 0); err != nil {
			return err
		} else if ok {
			return ErrUsernameTaken
		}
		if ok, err := taken(tx, "email", req.Email, 0); err != nil {
			return err
		} else if ok {
			return ErrEmailTaken
		}

		var count int64
		if err := tx.Model(&model.User{}).Count(&count).Error; err != nil {
			return err
		}
		roleName := model.RoleUser
		if count == 0 {
			roleName = model.RoleAdmin
		}
		if err := tx.Where(model.Role{Name: roleName}).FirstOrCreate(&user.Role).Error; err != nil {
			return err
		}
		user.RoleID = user.Role.ID
		return tx.Omit("Role").Create(&user).Error
	})
	if err != nil {
		return nil, "", err
	}

	token, err := middleware.GenerateToken(user, s.Config)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

// Login 校验密码，成功后记录登录时间并签发Token
func (s *UserService) Login(req model.UserLogin) (*model.User, string, error) {
	var user model.User
	if err := db.DB.Preload("Role").Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, "", ErrWrongPassword
	}
	if !user.IsActive() {
		return nil, "", ErrUserDisabled
	}

	user.LastLogin = time.Now()
	if err := db.DB.Model(&user).Update("last_login", user.LastLogin).Error; err != nil {
		return nil, "", err
	}

	token, err := middleware.GenerateToken(user, s.Config)
	if err != nil {
		return nil, "", err
	}
	return &user, token, nil
}

func (s *UserService) GetUserByID(id uint) (*model.User, error) {
	var user model.User
	if err := db.DB.Preload("Role").First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 修改邮箱或密码，空字段不变
func (s *UserService) UpdateUser(id uint, update model.UserUpdate) (*model.User, error) {
	user, err := s.GetUserByID(id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if update.Email != "" && update.Email != user.Email {
		if ok, err := taken(db.DB, "email", update.Email, id); err != nil {
			return nil, err
		} else if ok {
			return nil, ErrEmailTaken
		}
		changes["email"] = update.Email
		user.Email = update.Email
	}
	if update.Password != "" {
		hashed, err := hashPassword(update.Password)
		if err != nil {
			return nil, err
		}
		changes["password"] = hashed
		user.Password = hashed
	}
	if len(changes) == 0 {
		return user, nil
	}

	if err := db.DB.Model(&model.User{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// ChangeUserRole 角色变化在用户重新登录或刷新Token后生效
func (s *UserService) ChangeUserRole(userID, roleID uint) error {
	if _, err := s.GetUserByID(userID); err != nil {
		return err
	}
	var role model.Role
	if err := db.DB.First(&role, roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoleNotFound
		}
		return err
	}
	return db.DB.Model(&model.User{}).Where("id = ?", userID).Update("role_id", roleID).Error
}

// ListUsers 按用户名或邮箱模糊搜索，page 从1开始
func (s *UserService) ListUsers(page, pageSize int, query string) ([]model.User, int64, error) {
	q := db.DB.Model(&model.User{})
	if query != "" {
		like := "%" + query + "%"
		q = q.Where("username LIKE ? OR email LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []model.User
	if err := q.Preload("Role").Order("id").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *UserService) DeleteUser(id uint) error {
	res := db.DB.Delete(&model.User{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *UserService) DisableUser(id uint) error {
	return s.setStatus(id, model.UserDisabled)
}

func (s *UserService) EnableUser(id uint) error {
	return s.setStatus(id, model.UserActive)
}

func (s *UserService) setStatus(id uint, status int) error {
	if _, err := s.GetUserByID(id); err != nil {
		return err
	}
	return db.DB.Model(&model.User{}).Where("id = ?", id).Update("status", status).Error
}
