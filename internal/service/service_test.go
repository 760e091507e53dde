package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/mcparse"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/model"
	"city.newnan/mc-toolbox/internal/playtime"
	"city.newnan/mc-toolbox/internal/treasure"
)

// setupDB 使用临时目录中的SQLite替换全局连接
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	saved := db.DB
	db.DB = conn
	t.Cleanup(func() {
		db.DB = saved
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, db.AutoMigrate(db.Models()...))
	require.NoError(t, middleware.InitCasbin(conn))
	return conn
}

func TestMetricsServiceSaveAndReport(t *testing.T) {
	conn := setupDB(t)
	s := NewMetricsService(conn)
	s.loc = time.UTC
	now := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	save := func(at time.Time, avg float64, players ...string) {
		require.NoError(t, s.Save(&metrics.Sample{
			Timestamp: at.Unix(),
			Players:   players,
			MSPT:      mcparse.TickTimes{Avg: avg, Min: avg / 2, Max: avg * 2},
		}))
	}
	save(now.Add(-8*24*time.Hour), 99) // 超出默认的7天
	save(time.Date(2024, 5, 8, 10, 5, 0, 0, time.UTC), 10, "Alice", "Bob")
	save(time.Date(2024, 5, 8, 10, 35, 0, 0, time.UTC), 20, "Alice")
	save(time.Date(2024, 5, 8, 11, 0, 0, 0, time.UTC), 30)

	var players int64
	require.NoError(t, conn.Model(&model.PlayerSample{}).Count(&players).Error)
	assert.Equal(t, int64(3), players)

	report, err := s.HourlyReport(0, nil)
	require.NoError(t, err)
	assert.Equal(t, metrics.DefaultPercentiles, report.Percentiles)
	require.Len(t, report.Rows, 2)

	row := report.Rows[0]
	assert.Equal(t, "2024-05-08 10:00", row.Hour)
	assert.Equal(t, 1.5, row.Players)
	assert.Equal(t, 5.0, row.Min)
	assert.Equal(t, 40.0, row.Max)
	// 两个样本，p50 的下标为 1
	assert.Equal(t, 20.0, row.Percentiles[0])

	assert.Equal(t, 0.0, report.Rows[1].Players)

	report, err = s.HourlyReport(10, []int{50})
	require.NoError(t, err)
	assert.Len(t, report.Rows, 3)
}

func TestMetricsServiceDuplicateTimestamp(t *testing.T) {
	conn := setupDB(t)
	s := NewMetricsService(conn)

	sample := &metrics.Sample{Timestamp: 1700000000, Players: []string{"Alice"}}
	require.NoError(t, s.Save(sample))
	// 主键冲突时整个事务回滚
	assert.Error(t, s.Save(&metrics.Sample{Timestamp: 1700000000, Players: []string{"Bob"}}))

	var names []string
	require.NoError(t, conn.Model(&model.PlayerSample{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"Alice"}, names)

	assert.Error(t, s.Save(nil))
}

func TestMetricsServiceLatest(t *testing.T) {
	conn := setupDB(t)
	s := NewMetricsService(conn)

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, s.Save(&metrics.Sample{Timestamp: 100, Players: []string{"Zed"}}))
	require.NoError(t, s.Save(&metrics.Sample{
		Timestamp: 200,
		Players:   []string{"Bob", "Alice", "Bob"},
		MSPT:      mcparse.TickTimes{Avg: 2, Min: 1, Max: 3},
	}))

	latest, err = s.Latest()
	require.NoError(t, err)
	assert.Equal(t, int64(200), latest.Timestamp)
	assert.Equal(t, []string{"Alice", "Bob"}, latest.Players)
	assert.Equal(t, mcparse.TickTimes{Avg: 2, Min: 1, Max: 3}, latest.MSPT)
}

func TestSetupInitialRoles(t *testing.T) {
	setupDB(t)
	s := NewRoleService()
	require.NoError(t, s.SetupInitialRoles())
	// 重复执行不会出错
	require.NoError(t, s.SetupInitialRoles())

	e := middleware.GetEnforcer()
	cases := []struct {
		role, path, method string
		allowed            bool
	}{
		{model.RoleAdmin, "/api/v1/users", "GET", true},
		{model.RoleAdmin, "/api/v1/roles/3/permissions", "DELETE", true},
		{model.RoleOperator, "/api/v1/server/command", "POST", true},
		{model.RoleOperator, "/api/v1/reports/playtimes.html", "GET", true},
		{model.RoleOperator, "/api/v1/ws", "GET", true},
		{model.RoleOperator, "/api/v1/users", "GET", false},
		{model.RoleUser, "/api/v1/reports/performance", "GET", true},
		{model.RoleUser, "/api/v1/sse", "GET", true},
		{model.RoleUser, "/api/v1/server/command", "POST", false},
		{model.RoleUser, "/api/v1/treasure/hunts", "POST", false},
	}
	for _, c := range cases {
		ok, err := e.Enforce(c.role, c.path, c.method)
		require.NoError(t, err)
		assert.Equal(t, c.allowed, ok, "%s %s %s", c.role, c.method, c.path)
	}

	roles, total, err := s.ListRoles(1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, roles, 3)

	_, err = s.GetRoleByName("nobody")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}

func TestCustomRoleLifecycle(t *testing.T) {
	setupDB(t)
	s := NewRoleService()
	require.NoError(t, s.SetupInitialRoles())

	role, err := s.CreateRole(model.Role{Name: "builder", Description: "建筑师"})
	require.NoError(t, err)
	_, err = s.CreateRole(model.Role{Name: "builder"})
	assert.ErrorIs(t, err, ErrRoleNameTaken)

	added, err := s.AddRolePermission("builder", "/api/v1/server/command", "POST")
	require.NoError(t, err)
	assert.True(t, added)

	// 改名后权限跟着走
	renamed, err := s.UpdateRole(role.ID, model.Role{Name: "architect"})
	require.NoError(t, err)
	assert.Equal(t, "architect", renamed.Name)
	assert.Equal(t, "建筑师", renamed.Description)

	e := middleware.GetEnforcer()
	ok, err := e.Enforce("architect", "/api/v1/server/command", "POST")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Enforce("builder", "/api/v1/server/command", "POST")
	require.NoError(t, err)
	assert.False(t, ok)

	admin, err := s.GetRoleByName(model.RoleAdmin)
	require.NoError(t, err)
	_, err = s.UpdateRole(admin.ID, model.Role{Name: "root"})
	assert.ErrorIs(t, err, ErrBuiltinRole)
	assert.ErrorIs(t, s.DeleteRole(admin.ID), ErrBuiltinRole)

	steve := model.User{Username: "steve", Password: "x", Email: "steve@example.com", RoleID: role.ID}
	require.NoError(t, db.DB.Create(&steve).Error)
	assert.ErrorIs(t, s.DeleteRole(role.ID), ErrRoleInUse)
	require.NoError(t, db.DB.Unscoped().Delete(&steve).Error)

	require.NoError(t, s.DeleteRole(role.ID))
	perms, err := s.GetRolePermissions("architect")
	require.NoError(t, err)
	assert.Empty(t, perms)
	assert.ErrorIs(t, s.DeleteRole(role.ID), ErrRoleNotFound)
}

func TestRegisterAndLogin(t *testing.T) {
	setupDB(t)
	require.NoError(t, NewRoleService().SetupInitialRoles())

	cfg := config.Default()
	s := NewUserService(cfg)

	first, token, err := s.Register(model.UserRegister{Username: "steve", Password: "diamond", Email: "steve@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, model.RoleAdmin, first.Role.Name)

	second, _, err := s.Register(model.UserRegister{Username: "alex", Password: "emerald", Email: "alex@example.com"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, second.Role.Name)

	_, _, err = s.Register(model.UserRegister{Username: "alex", Password: "emerald", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	_, _, err = s.Register(model.UserRegister{Username: "herobrine", Password: "emerald", Email: "alex@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	user, token, err := s.Login(model.UserLogin{Username: "alex", Password: "emerald"})
	require.NoError(t, err)
	assert.Equal(t, "alex", user.Username)

	claims, err := middleware.ParseToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, claims.RoleName)

	_, _, err = s.Login(model.UserLogin{Username: "alex", Password: "wrong"})
	assert.ErrorIs(t, err, ErrWrongPassword)
	_, _, err = s.Login(model.UserLogin{Username: "nobody", Password: "emerald"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, s.DisableUser(user.ID))
	_, _, err = s.Login(model.UserLogin{Username: "alex", Password: "emerald"})
	assert.ErrorIs(t, err, ErrUserDisabled)
	require.NoError(t, s.EnableUser(user.ID))
	require.NoError(t, s.EnableUser(user.ID))
	assert.ErrorIs(t, s.DisableUser(999), ErrUserNotFound)

	updated, err := s.UpdateUser(user.ID, model.UserUpdate{Email: "steve@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Nil(t, updated)
	updated, err = s.UpdateUser(user.ID, model.UserUpdate{Password: "redstone"})
	require.NoError(t, err)
	assert.Equal(t, "alex@example.com", updated.Email)
	_, _, err = s.Login(model.UserLogin{Username: "alex", Password: "redstone"})
	require.NoError(t, err)

	users, total, err := s.ListUsers(1, 10, "ale")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, model.RoleUser, users[0].Role.Name)
}

// listCommander 只响应 list，可以让调用阻塞
type listCommander struct {
	reply string
	block chan struct{}
	calls atomic.Int32
}

func (c *listCommander) ExecuteCommand(cmd string) (string, error) {
	c.calls.Add(1)
	if c.block != nil {
		<-c.block
	}
	if cmd != "list" {
		return "", errors.New("unexpected command " + cmd)
	}
	return c.reply, nil
}

func newTreasureService(cmd *listCommander, sink treasure.EventSink) *TreasureService {
	factory := func() *treasure.Hunt {
		world := treasure.NewWorld(cmd, treasure.WithProbeInterval(0))
		return treasure.NewHunt(cmd, world, nil, nil)
	}
	return NewTreasureService(context.Background(), factory, sink, nil)
}

func TestTreasureServiceNoPlayers(t *testing.T) {
	cmd := &listCommander{reply: "There are 0 of a max of 20 players online: "}
	var published atomic.Int32
	s := newTreasureService(cmd, treasure.EventSinkFunc(func(treasure.Event) { published.Add(1) }))

	require.NoError(t, s.Start(true))
	s.Wait()

	state := s.Current()
	assert.False(t, state.Running)
	require.NotNil(t, state.Last)
	assert.Equal(t, treasure.OutcomeNoPlayers, state.Last.Outcome)
	require.Len(t, state.Events, 1)
	assert.Equal(t, treasure.StageFinished, state.Events[0].Stage)
	assert.Equal(t, int32(1), published.Load())
}

func TestTreasureServiceSingleRun(t *testing.T) {
	cmd := &listCommander{reply: "There are 0 of a max of 20 players online: ", block: make(chan struct{})}
	s := newTreasureService(cmd, nil)

	require.NoError(t, s.Start(true))
	assert.True(t, s.Current().Running)
	assert.ErrorIs(t, s.Start(true), ErrHuntRunning)

	close(cmd.block)
	s.Wait()
	assert.False(t, s.Current().Running)

	// 结束之后可以再次开始
	require.NoError(t, s.Start(true))
	s.Wait()
	assert.Equal(t, int32(2), cmd.calls.Load())
}

func TestTreasureServiceRecordsError(t *testing.T) {
	s := NewTreasureService(context.Background(), func() *treasure.Hunt {
		failing := errCommander{}
		return treasure.NewHunt(failing, treasure.NewWorld(failing), nil, nil)
	}, nil, nil)

	require.NoError(t, s.Start(true))
	s.Wait()
	assert.Contains(t, s.Current().LastError, "connection lost")
}

type errCommander struct{}

func (errCommander) ExecuteCommand(string) (string, error) {
	return "", errors.New("connection lost")
}

type countingSource struct {
	lines []playtime.Line
	calls int
}

func (s *countingSource) Lines(context.Context) ([]playtime.Line, error) {
	s.calls++
	return s.lines, nil
}

func TestPlaytimeService(t *testing.T) {
	src := &countingSource{lines: []playtime.Line{
		{Date: "2024-01-05", Text: "[10:00:00] [Server thread/INFO]: Alice joined the game"},
		{Date: "2024-01-05", Text: "[10:45:00] [Server thread/INFO]: Alice left the game"},
	}}
	s := NewPlaytimeService(src, time.Minute)
	now := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	report, err := s.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []playtime.Entry{{Player: "Alice", Duration: 45 * time.Minute}}, report.Entries)

	_, err = s.Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	var buf bytes.Buffer
	require.NoError(t, s.WriteHTML(context.Background(), &buf))
	assert.Equal(t, 2, src.calls)
	assert.Contains(t, buf.String(), "Alice")

	path := filepath.Join(t.TempDir(), "playtimes.html")
	require.NoError(t, s.Publish(context.Background(), path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "0:45:00")
}
