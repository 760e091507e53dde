//go:build unix

package rcon

import (
	"errors"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peekSocket 对套接字做一次非阻塞的 MSG_PEEK，不消费任何数据
// 对端已关闭（读到0字节）视为没有更多数据
func peekSocket(conn net.Conn) (bool, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return false, errPollUnsupported
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return false, errPollUnsupported
	}

	var (
		n       int
		peekErr error
		buf     [1]byte
	)
	err = raw.Read(func(fd uintptr) bool {
		n, _, peekErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return false, err
	}
	if errors.Is(peekErr, unix.EAGAIN) || errors.Is(peekErr, unix.EWOULDBLOCK) || errors.Is(peekErr, unix.EINTR) {
		return false, nil
	}
	if peekErr != nil {
		return false, peekErr
	}
	return n > 0, nil
}
