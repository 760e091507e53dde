package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/db"
	"city.newnan/mc-toolbox/internal/metrics"
	"city.newnan/mc-toolbox/internal/middleware"
	"city.newnan/mc-toolbox/internal/playtime"
	"city.newnan/mc-toolbox/internal/service"
	"city.newnan/mc-toolbox/internal/sse"
	"city.newnan/mc-toolbox/internal/treasure"
	"city.newnan/mc-toolbox/internal/websocket"
	"city.newnan/mc-toolbox/pkg/mccontrol"
)

const msptReply = "§6Server tick times §e(§7avg§e/§7min§e/§7max§e)§6 from last 5s, 10s, 1m:\n" +
	"§6◴ §a1.0§6/§a0.5§6/§a2.0§6, §a1.0§6/§a0.5§6/§a2.0§6, §a12.5§6/§a3.0§6/§a40.0"

type fakeBackend struct {
	mu       sync.Mutex
	commands []string
}

func (f *fakeBackend) CheckServerStatus() (*mccontrol.ServerStatus, error) {
	return &mccontrol.ServerStatus{Online: true, Players: 1, MaxPlayers: 20, Version: "1.20.4"}, nil
}

func (f *fakeBackend) ExecuteCommand(cmd string) (string, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()
	switch cmd {
	case "list":
		return "There are 1 of a max of 20 players online: Alice", nil
	case "mspt":
		return msptReply, nil
	}
	return "", nil
}

type testEnv struct {
	router  http.Handler
	backend *fakeBackend
}

func setup(t *testing.T) *testEnv {
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
	require.NoError(t, service.NewRoleService().SetupInitialRoles())

	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "latest.log"), []byte(
		"[10:00:00] [Server thread/INFO]: Alice joined the game\n"+
			"[10:30:00] [Server thread/INFO]: Alice left the game\n"), 0o644))

	cfg := config.Default()
	cfg.Mode = "test"
	cfg.JWTSecret = "test-secret"

	backend := &fakeBackend{}
	broker := sse.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	factory := func() *treasure.Hunt {
		return treasure.NewHunt(backend, treasure.NewWorld(backend), nil, nil)
	}

	deps := Deps{
		Backend:   backend,
		Collector: metrics.NewCollector(backend),
		Metrics:   service.NewMetricsService(conn),
		Playtime:  service.NewPlaytimeService(&playtime.DirSource{Dir: logDir}, time.Minute),
		Treasure:  service.NewTreasureService(ctx, factory, broker.TreasureSink(), nil),
		Broker:    broker,
		Manager:   websocket.NewManager(),
	}
	return &testEnv{router: SetupRouter(cfg, deps), backend: backend}
}

type result struct {
	code int
	body map[string]interface{}
	raw  string
	resp *httptest.ResponseRecorder
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) result {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	res := result{code: w.Code, raw: w.Body.String(), resp: w}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		_ = sonic.Unmarshal(w.Body.Bytes(), &res.body)
	}
	return res
}

func (e *testEnv) register(t *testing.T, name string) string {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/v1/user/register", "", map[string]string{
		"username": name,
		"password": "secret123",
		"email":    name + "@example.com",
	})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	data := res.body["data"].(map[string]interface{})
	return data["token"].(string)
}

func TestHealthAndAuth(t *testing.T) {
	env := setup(t)

	res := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "ok", res.body["status"])

	res = env.do(t, http.MethodGet, "/api/v1/server/status", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)

	res = env.do(t, http.MethodGet, "/api/v1/server/status", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.code)
}

func TestRolesAndServerCommand(t *testing.T) {
	env := setup(t)
	admin := env.register(t, "alice")
	user := env.register(t, "bob")

	res := env.do(t, http.MethodGet, "/api/v1/server/status", user, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	status := res.body["data"].(map[string]interface{})
	assert.Equal(t, true, status["online"])

	res = env.do(t, http.MethodPost, "/api/v1/server/command", user, map[string]string{"command": "list"})
	assert.Equal(t, http.StatusForbidden, res.code)

	res = env.do(t, http.MethodPost, "/api/v1/server/command", admin, map[string]string{"command": "/list"})
	require.Equal(t, http.StatusOK, res.code, res.raw)
	data := res.body["data"].(map[string]interface{})
	assert.Equal(t, "list", data["command"])
	assert.Contains(t, data["plain"], "Alice")

	res = env.do(t, http.MethodPost, "/api/v1/server/command", admin, map[string]string{"command": "  "})
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = env.do(t, http.MethodGet, "/api/v1/users", user, nil)
	assert.Equal(t, http.StatusForbidden, res.code)
	res = env.do(t, http.MethodGet, "/api/v1/users", admin, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.EqualValues(t, 2, res.body["data"].(map[string]interface{})["total"])

	res = env.do(t, http.MethodGet, "/api/v1/user/profile", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Equal(t, "user", res.body["data"].(map[string]interface{})["role_name"])

	res = env.do(t, http.MethodDelete, "/api/v1/roles/1", admin, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)
}

func TestMetricsAndReports(t *testing.T) {
	env := setup(t)
	admin := env.register(t, "alice")
	user := env.register(t, "bob")

	res := env.do(t, http.MethodGet, "/api/v1/metrics/latest", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Nil(t, res.body["data"])

	res = env.do(t, http.MethodPost, "/api/v1/metrics/samples", user, nil)
	assert.Equal(t, http.StatusForbidden, res.code)
	res = env.do(t, http.MethodPost, "/api/v1/metrics/samples", admin, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)

	res = env.do(t, http.MethodGet, "/api/v1/metrics/latest", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	sample := res.body["data"].(map[string]interface{})
	assert.Equal(t, []interface{}{"Alice"}, sample["players"])

	res = env.do(t, http.MethodGet, "/api/v1/reports/performance?format=csv&percentiles=50", user, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	assert.Equal(t, "text/csv; charset=utf-8", res.resp.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(res.raw), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hour,players,min,p50,max", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",1.0,3,12.5,40"), lines[1])

	res = env.do(t, http.MethodGet, "/api/v1/reports/performance", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	report := res.body["data"].(map[string]interface{})
	assert.Len(t, report["percentiles"], 5)

	res = env.do(t, http.MethodGet, "/api/v1/reports/performance?format=xml", user, nil)
	assert.Equal(t, http.StatusBadRequest, res.code)

	res = env.do(t, http.MethodGet, "/api/v1/reports/playtimes", user, nil)
	require.Equal(t, http.StatusOK, res.code, res.raw)
	entries := res.body["data"].(map[string]interface{})["entries"].([]interface{})
	require.Len(t, entries, 1)

	res = env.do(t, http.MethodGet, "/api/v1/reports/playtimes.html", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	assert.Contains(t, res.raw, "Alice")
	assert.Contains(t, res.raw, "0:30:00")
}

func TestTreasurePermissions(t *testing.T) {
	env := setup(t)
	env.register(t, "alice")
	user := env.register(t, "bob")

	res := env.do(t, http.MethodPost, "/api/v1/treasure/hunts", user, map[string]bool{"force": true})
	assert.Equal(t, http.StatusForbidden, res.code)

	res = env.do(t, http.MethodGet, "/api/v1/treasure/hunts/current", user, nil)
	require.Equal(t, http.StatusOK, res.code)
	state := res.body["data"].(map[string]interface{})
	assert.Equal(t, false, state["running"])
}
