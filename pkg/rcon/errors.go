package rcon

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrConnection 传输层错误（连接被拒绝、重置、提前关闭等），所有 *ConnError 都匹配它
	ErrConnection = errors.New("rcon: 连接错误")
	// ErrAuthFailed 服务器以ID -1 响应，密码错误
	ErrAuthFailed = errors.New("rcon: 认证失败")
	// ErrMalformedResponse 响应数据包格式错误（结尾填充不是 0x00 0x00 等）
	ErrMalformedResponse = errors.New("rcon: 响应格式错误")
	// ErrTimeout 阻塞读写超过了配置的超时时间
	ErrTimeout = errors.New("rcon: 操作超时")
	// ErrNotConnected 尚未连接就发送命令
	ErrNotConnected = errors.New("rcon: 未连接")
	// ErrResponseTooLarge 重组后的响应超过上限，同时匹配 ErrMalformedResponse
	ErrResponseTooLarge = fmt.Errorf("%w: 响应过大", ErrMalformedResponse)
)

// ConnError 表示一次网络操作失败
type ConnError struct {
	Op   string // "dial", "read", "write"
	Addr string // 服务器地址
	Err  error  // 底层错误
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("rcon: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrConnection) 对所有 ConnError 成立
func (e *ConnError) Is(target error) bool { return target == ErrConnection }

// IsRetryable 判断调用方是否值得重连后重试
// 只有连接错误和超时可以重试，认证失败和格式错误应当直接放弃
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrTimeout)
}

// classify 将底层I/O错误转换为本包的错误类型
func classify(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s %s: %v", ErrTimeout, op, addr, err)
	}
	// 本包已经分类过的错误原样返回
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrAuthFailed) {
		return err
	}
	return &ConnError{Op: op, Addr: addr, Err: err}
}
