package rcon_test

import (
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city.newnan/mc-toolbox/pkg/rcon"
	"city.newnan/mc-toolbox/pkg/rcon/rcontest"
)

const password = "secret"

func dial(t *testing.T, srv *rcontest.Server, opts ...rcon.Option) *rcon.Client {
	t.Helper()
	opts = append([]rcon.Option{rcon.WithPacing(0), rcon.WithTimeout(2 * time.Second)}, opts...)
	client, err := rcon.Dial(context.Background(), srv.Host(), srv.Port(), password, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestCommandReassemblesFragments(t *testing.T) {
	srv := rcontest.NewServer(password, rcontest.Reply("5 players onl", "ine: Alice, Bob"))
	defer srv.Close()

	client := dial(t, srv)
	response, err := client.Command("list")
	require.NoError(t, err)
	assert.Equal(t, "5 players online: Alice, Bob", response)

	requests := srv.Requests()
	require.Len(t, requests, 2)
	assert.Equal(t, rcon.TypeLogin, requests[0].Type)
	assert.Equal(t, password, string(requests[0].Body))
	assert.Equal(t, rcon.TypeCommand, requests[1].Type)
	assert.Equal(t, "list", string(requests[1].Body))
}

func TestCommandArbitrarySplits(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz ,:§0123456789"

	wants := make(chan string, 1)
	splitRng := rand.New(rand.NewSource(7))
	srv := rcontest.NewServer(password, func(req *rcon.Packet) []byte {
		rest := <-wants
		parts := []string{}
		for len(rest) > 0 {
			n := splitRng.Intn(len(rest)) + 1
			parts = append(parts, rest[:n])
			rest = rest[n:]
		}
		if len(parts) == 0 {
			parts = append(parts, "")
		}
		return rcontest.Fragments(req.ID, parts...)
	})
	defer srv.Close()

	rng := rand.New(rand.NewSource(42))
	client := dial(t, srv)
	for i := 0; i < 50; i++ {
		var sb strings.Builder
		for j := rng.Intn(300); j > 0; j-- {
			sb.WriteByte(alphabet[rng.Intn(len(alphabet))])
		}
		want := sb.String()
		wants <- want

		got, err := client.Command("echo")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCommandMultiByteText(t *testing.T) {
	text := "§a欢迎 §bWelcome"
	raw := []byte(text)
	// 在多字节字符中间切开
	srv := rcontest.NewServer(password, rcontest.Reply(string(raw[:4]), string(raw[4:])))
	defer srv.Close()

	client := dial(t, srv)
	got, err := client.Command("motd")
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestConnectAuthFailed(t *testing.T) {
	srv := rcontest.NewServer(password, nil)
	defer srv.Close()

	client := rcon.NewClient(srv.Host(), srv.Port(), "wrong", rcon.WithPacing(0))
	err := client.Connect(context.Background())
	assert.ErrorIs(t, err, rcon.ErrAuthFailed)
	assert.False(t, client.IsConnected())
	assert.False(t, rcon.IsRetryable(err))
}

func TestCommandAuthFailedMidSession(t *testing.T) {
	srv := rcontest.NewServer(password, func(req *rcon.Packet) []byte {
		return rcontest.Frame(rcon.AuthFailedID, rcon.TypeResponse, "")
	})
	defer srv.Close()

	client := dial(t, srv)
	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrAuthFailed)
	assert.False(t, client.IsConnected())
}

func TestCommandBadPadding(t *testing.T) {
	srv := rcontest.NewServer(password, func(req *rcon.Packet) []byte {
		frame := rcontest.Frame(req.ID, rcon.TypeResponse, "broken")
		frame[len(frame)-2] = 'x'
		return frame
	})
	defer srv.Close()

	client := dial(t, srv)
	response, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrMalformedResponse)
	assert.Empty(t, response)
	assert.False(t, client.IsConnected())
}

func TestCommandShortDeclaredLength(t *testing.T) {
	srv := rcontest.NewServer(password, func(req *rcon.Packet) []byte {
		frame := make([]byte, 4)
		binary.LittleEndian.PutUint32(frame, 4)
		return frame
	})
	defer srv.Close()

	client := dial(t, srv)
	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrMalformedResponse)
}

func TestCommandTimeout(t *testing.T) {
	srv := rcontest.NewServer(password, func(req *rcon.Packet) []byte { return nil })
	defer srv.Close()

	client := dial(t, srv, rcon.WithTimeout(100*time.Millisecond))
	start := time.Now()
	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrTimeout)
	assert.True(t, rcon.IsRetryable(err))
	assert.False(t, client.IsConnected())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommandNotConnected(t *testing.T) {
	client := rcon.NewClient("192.0.2.1", rcon.DefaultPort, password)
	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrNotConnected)
	assert.False(t, client.IsConnected())
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().(*net.TCPAddr)
	listener.Close()

	client := rcon.NewClient("127.0.0.1", addr.Port, password)
	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, rcon.ErrConnection)

	var connErr *rcon.ConnError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)
}

func TestCommandAfterServerClosed(t *testing.T) {
	srv := rcontest.NewServer(password, nil)
	client := dial(t, srv)
	srv.Close()

	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrConnection)
	assert.False(t, client.IsConnected())

	_, err = client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrNotConnected)
}

func TestResponseSizeLimit(t *testing.T) {
	srv := rcontest.NewServer(password, rcontest.Reply(strings.Repeat("a", 30), strings.Repeat("b", 30)))
	defer srv.Close()

	client := dial(t, srv, rcon.WithMaxResponseSize(40))
	_, err := client.Command("list")
	assert.ErrorIs(t, err, rcon.ErrResponseTooLarge)
	assert.ErrorIs(t, err, rcon.ErrMalformedResponse)
	assert.False(t, client.IsConnected())
}

func TestDisconnectIdempotent(t *testing.T) {
	srv := rcontest.NewServer(password, nil)
	defer srv.Close()

	client := dial(t, srv)
	assert.True(t, client.IsConnected())
	assert.NoError(t, client.Disconnect())
	assert.NoError(t, client.Disconnect())
	assert.False(t, client.IsConnected())

	// 断开后可以重新连接
	require.NoError(t, client.Connect(context.Background()))
	response, err := client.Command("again")
	require.NoError(t, err)
	assert.Equal(t, "again", response)
}

func TestPacingDelay(t *testing.T) {
	srv := rcontest.NewServer(password, nil)
	defer srv.Close()

	client := dial(t, srv, rcon.WithPacing(50*time.Millisecond))
	start := time.Now()
	_, err := client.Command("a")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestPollFallbackOverPipe(t *testing.T) {
	// net.Pipe 没有文件描述符，走短窗口回退路径
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()

	go func() {
		for {
			req, err := rcon.ReadPacket(serverSide, 0)
			if err != nil {
				return
			}
			switch req.Type {
			case rcon.TypeLogin:
				serverSide.Write(rcontest.Frame(req.ID, rcon.TypeLogin, ""))
			default:
				serverSide.Write(rcontest.Frame(req.ID, rcon.TypeResponse, "part1 "))
				serverSide.Write(rcontest.Frame(req.ID, rcon.TypeResponse, "part2"))
			}
		}
	}()

	client, err := rcon.Dial(context.Background(), "pipe", 0, password,
		rcon.WithPacing(0),
		rcon.WithPollWindow(200*time.Millisecond),
		rcon.WithDialFunc(func(context.Context, string, string) (net.Conn, error) {
			return clientSide, nil
		}),
	)
	require.NoError(t, err)
	defer client.Close()

	response, err := client.Command("list")
	require.NoError(t, err)
	assert.Equal(t, "part1 part2", response)
}
