package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city.newnan/mc-toolbox/internal/config"
	"city.newnan/mc-toolbox/internal/treasure"
	"city.newnan/mc-toolbox/pkg/rcon/rcontest"
)

const listReply = "§6There are §c1§6 of a max of §c20§6 players online: §fAlice"

const msptReply = "§6Server tick times §e(§7avg§e/§7min§e/§7max§e)§6 from last 5s, 10s, 1m:\n" +
	"§6◴ §a1.0§6/§a0.5§6/§a2.0§6, §a1.0§6/§a0.5§6/§a2.0§6, §a12.5§6/§a3.0§6/§a40.0"

// writeConfig 写入指向 srv 的配置文件，srv 为 nil 时不配置RCON密码
func writeConfig(t *testing.T, srv *rcontest.Server, extra string) string {
	t.Helper()
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("log_level: error\n")
	fmt.Fprintf(&b, "db_path: %s\n", filepath.Join(dir, "test.db"))
	fmt.Fprintf(&b, "playtime_output: %s\n", filepath.Join(dir, "playtimes.html"))
	if srv != nil {
		fmt.Fprintf(&b, "rcon_host: %s\nrcon_port: %d\nrcon_password: secret\n", srv.Host(), srv.Port())
	}
	b.WriteString(extra)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExecCommand(t *testing.T) {
	srv := rcontest.NewServer("secret", rcontest.Script(map[string]string{"list": listReply}))
	defer srv.Close()
	cfg := writeConfig(t, srv, "")

	out, err := runCLI(t, "exec", "-c", cfg, "--color=false", "/list")
	require.NoError(t, err)
	assert.Equal(t, "There are 1 of a max of 20 players online: Alice\n", out)

	out, err = runCLI(t, "exec", "-c", cfg, "--raw", "list")
	require.NoError(t, err)
	assert.Equal(t, listReply+"\n", out)

	assert.Equal(t, []string{"list", "list"}, srv.Commands())
}

func TestExecRequiresPassword(t *testing.T) {
	_, err := runCLI(t, "exec", "-c", writeConfig(t, nil, ""), "list")
	var fieldErr *config.FieldError
	require.True(t, errors.As(err, &fieldErr), "%v", err)
	assert.Equal(t, "rcon_password", fieldErr.Field)
}

func TestInvalidConfig(t *testing.T) {
	_, err := runCLI(t, "exec", "-c", writeConfig(t, nil, "metrics_percentiles: [50, 100]\n"), "list")
	var fieldErr *config.FieldError
	require.True(t, errors.As(err, &fieldErr), "%v", err)
	assert.Equal(t, "metrics_percentiles", fieldErr.Field)
}

func TestMetricsCollectAndReport(t *testing.T) {
	srv := rcontest.NewServer("secret", rcontest.Script(map[string]string{
		"mspt": msptReply,
		"list": listReply,
	}))
	defer srv.Close()
	cfg := writeConfig(t, srv, "")

	out, err := runCLI(t, "metrics", "collect", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "mspt 12.5/3.0/40.0")
	assert.Contains(t, out, "在线(1): Alice")
	assert.Equal(t, []string{"mspt", "list"}, srv.Commands())

	out, err = runCLI(t, "metrics", "report", "-c", cfg, "-o", "csv", "--percentiles", "50")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "hour,players,min,p50,max", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",1.0,3,12.5,40"), lines[1])

	_, err = runCLI(t, "metrics", "report", "-c", cfg, "-o", "xml")
	assert.Error(t, err)
}

func TestPlaytimes(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "latest.log"), []byte(
		"[10:00:00] [Server thread/INFO]: Alice joined the game\n"+
			"[10:30:00] [Server thread/INFO]: Alice left the game\n"), 0o644))
	cfg := writeConfig(t, nil, fmt.Sprintf("mc_log_dir: %s\n", logDir))

	out, err := runCLI(t, "playtimes", "-c", cfg, "-f", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "0:30:00")

	page := filepath.Join(t.TempDir(), "index.html")
	_, err = runCLI(t, "playtimes", "-c", cfg, "-o", page)
	require.NoError(t, err)
	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Alice")

	_, err = runCLI(t, "playtimes", "-c", cfg, "-f", "pdf")
	assert.Error(t, err)
}

func TestStatusOffline(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := writeConfig(t, nil, fmt.Sprintf("rcon_host: 127.0.0.1\ngame_port: %d\n", port))
	out, err := runCLI(t, "status", "-c", cfg, "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"online": false`)
	assert.Contains(t, out, "Ping服务器失败")
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResponse(&buf, "§aok", outputPlain))
	assert.Equal(t, "ok\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResponse(&buf, "§aok\n", outputRaw))
	assert.Equal(t, "§aok\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResponse(&buf, "§aok", outputColor))
	assert.Equal(t, "\x1b[37m\x1b[32mok\x1b[0m\n", buf.String())

	buf.Reset()
	require.NoError(t, writeResponse(&buf, "", outputPlain))
	assert.Empty(t, buf.String())
}

func TestDescribeResult(t *testing.T) {
	assert.Equal(t, "本次随机跳过", describeResult(&treasure.Result{Outcome: treasure.OutcomeSkipped}))

	r := &treasure.Result{
		Outcome:  treasure.OutcomeEmptied,
		Item:     "diamond",
		Position: &treasure.Position{X: 10, Y: 64, Z: -20},
	}
	assert.Equal(t, "宝藏 diamond 已被找到，位置 10, 64, -20 (Above ground)", describeResult(r))
}
