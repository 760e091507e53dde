package rcon

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	// DefaultPort Minecraft服务器默认的RCON端口
	DefaultPort = 25575
	// DefaultTimeout 每次阻塞读写的默认超时时间
	DefaultTimeout = 5 * time.Second
	// DefaultPacing 每条命令之后的默认间隔，避免压垮服务器单线程的命令处理（MC-72390）
	DefaultPacing = 3 * time.Millisecond
	// DefaultPollWindow 无法直接探测套接字时，判断是否还有后续数据的等待窗口
	DefaultPollWindow = time.Millisecond
	// DefaultMaxResponseSize 单次响应重组后的默认上限
	DefaultMaxResponseSize = 1 << 20
)

// requestID 客户端请求使用的固定ID，协议是严格的一问一答，不需要区分并发请求
const requestID int32 = 0

// Option 客户端配置项
type Option func(*Client)

// WithTimeout 设置每次阻塞读写的超时时间
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPacing 设置每条命令之后的休眠间隔，0 表示不休眠
func WithPacing(d time.Duration) Option {
	return func(c *Client) {
		if d < 0 {
			d = 0
		}
		c.pacing = d
	}
}

// WithPollWindow 设置回退探测方式的等待窗口
func WithPollWindow(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollWindow = d
		}
	}
}

// WithMaxResponseSize 设置单次响应的大小上限，<=0 表示不限制
func WithMaxResponseSize(n int) Option {
	return func(c *Client) {
		c.maxResponseSize = n
	}
}

// DialFunc 建立到服务器的连接
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// WithDialer 使用指定的 net.Dialer 建立连接
func WithDialer(d *net.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d.DialContext
		}
	}
}

// WithDialFunc 使用自定义函数建立连接，例如经过代理或者测试用的内存管道
func WithDialFunc(f DialFunc) Option {
	return func(c *Client) {
		if f != nil {
			c.dial = f
		}
	}
}

// Client 表示一个RCON会话
//
// 会话持有至多一个TCP连接，请求与响应严格交替。Client 不是并发安全的，
// 多个goroutine共享时需要调用方自行加锁。
type Client struct {
	host     string
	port     int
	password string

	timeout         time.Duration
	pacing          time.Duration
	pollWindow      time.Duration
	maxResponseSize int
	dial            DialFunc

	conn   net.Conn
	reader *bufio.Reader
}

// NewClient 创建一个未连接的RCON客户端
func NewClient(host string, port int, password string, opts ...Option) *Client {
	c := &Client{
		host:            host,
		port:            port,
		password:        password,
		timeout:         DefaultTimeout,
		pacing:          DefaultPacing,
		pollWindow:      DefaultPollWindow,
		maxResponseSize: DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = (&net.Dialer{Timeout: c.timeout}).DialContext
	}
	return c
}

// Dial 创建客户端并完成连接与认证
func Dial(ctx context.Context, host string, port int, password string, opts ...Option) (*Client, error) {
	c := NewClient(host, port, password, opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Addr 返回服务器地址 host:port
func (c *Client) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// Timeout 返回每次阻塞读写的超时时间
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// IsConnected 是否持有已认证的连接
func (c *Client) IsConnected() bool {
	return c.conn != nil
}

// Connect 建立TCP连接并发送登录请求
// 认证失败时先关闭连接再返回 ErrAuthFailed
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := c.dial(ctx, "tcp", c.Addr())
	if err != nil {
		return classify("dial", c.Addr(), err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if _, err := c.exchange(TypeLogin, c.password); err != nil {
		c.Disconnect()
		return err
	}
	return nil
}

// Command 发送一条命令并返回重组后的完整响应
func (c *Client) Command(command string) (string, error) {
	if c.conn == nil {
		return "", ErrNotConnected
	}

	response, err := c.exchange(TypeCommand, command)
	if err != nil {
		// 出错后会话状态不确定，直接视为断开
		c.Disconnect()
		return "", err
	}

	if c.pacing > 0 {
		time.Sleep(c.pacing)
	}
	return response, nil
}

// Disconnect 关闭连接，可重复调用
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

// Close 等同于 Disconnect，便于 defer client.Close()
func (c *Client) Close() error {
	return c.Disconnect()
}

// exchange 发送一个请求并读取其全部响应数据包
func (c *Client) exchange(kind PacketType, payload string) (string, error) {
	request := &Packet{ID: requestID, Type: kind, Body: []byte(payload)}
	frame, err := request.MarshalBinary()
	if err != nil {
		return "", err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", classify("write", c.Addr(), err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		return "", classify("write", c.Addr(), err)
	}

	var response bytes.Buffer
	for {
		packet, err := c.readPacket(response.Len())
		if err != nil {
			return "", err
		}

		if packet.ID == AuthFailedID {
			return "", fmt.Errorf("%w: %s", ErrAuthFailed, c.Addr())
		}

		response.Write(packet.Body)

		// 协议没有"最后一个包"的标记，只能看是否还有立即可读的数据
		more, err := c.pending()
		if err != nil {
			return "", classify("read", c.Addr(), err)
		}
		if !more {
			return response.String(), nil
		}
	}
}

// readPacket 在超时限制内读取一个响应数据包
// accumulated 为本次响应已经收到的负载字节数，用于检查响应大小上限
func (c *Client) readPacket(accumulated int) (*Packet, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, classify("read", c.Addr(), err)
	}
	length, err := readLength(c.reader)
	if err != nil {
		return nil, classify("read", c.Addr(), err)
	}
	if length < minPacketLength {
		return nil, fmt.Errorf("%w: 声明长度 %d", ErrMalformedResponse, length)
	}
	if c.maxResponseSize > 0 && accumulated+int(length)-minPacketLength > c.maxResponseSize {
		return nil, fmt.Errorf("%w: 超过 %d 字节", ErrResponseTooLarge, c.maxResponseSize)
	}

	body := make([]byte, length)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, classify("read", c.Addr(), err)
	}
	if _, err := io.ReadFull(c.reader, body); err != nil {
		return nil, classify("read", c.Addr(), err)
	}

	packet := &Packet{}
	if err := packet.decodeBody(body); err != nil {
		return nil, err
	}
	return packet, nil
}

// pending 零等待地判断是否还有后续数据可读
func (c *Client) pending() (bool, error) {
	if c.reader.Buffered() > 0 {
		return true, nil
	}

	more, err := peekSocket(c.conn)
	if !errors.Is(err, errPollUnsupported) {
		return more, err
	}

	// 无法直接探测套接字（例如 net.Pipe），退化为极短的读等待
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pollWindow)); err != nil {
		return false, err
	}
	_, err = c.reader.Peek(1)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, io.EOF):
		return false, nil
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false, nil
		}
		return false, err
	}
}
