package rcon

import "errors"

// errPollUnsupported 当前连接无法做零等待探测
var errPollUnsupported = errors.New("rcon: 不支持套接字探测")
