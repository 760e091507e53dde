//go:build !unix

package rcon

import "net"

// peekSocket 非unix平台没有 MSG_PEEK 探测，交给读等待窗口处理
func peekSocket(net.Conn) (bool, error) {
	return false, errPollUnsupported
}
