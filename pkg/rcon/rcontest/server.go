// Package rcontest 提供用于测试的RCON服务器桩，用法类似 net/http/httptest。
package rcontest

import (
	"bytes"
	"net"
	"strconv"
	"sync"

	"city.newnan/mc-toolbox/pkg/rcon"
)

// HandlerFunc 处理一个命令请求，返回要写回客户端的原始字节
// 返回nil表示不响应（用于模拟超时）
type HandlerFunc func(req *rcon.Packet) []byte

// Server 一个只监听本地回环地址的RCON服务器桩
type Server struct {
	Password string

	// LoginHandler 覆盖默认的登录处理，为nil时按Password校验
	LoginHandler HandlerFunc
	// Handler 处理命令请求，为nil时原样回显命令
	Handler HandlerFunc

	listener net.Listener
	mutex    sync.Mutex
	requests []*rcon.Packet
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// NewServer 启动一个服务器桩
func NewServer(password string, handler HandlerFunc) *Server {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("rcontest: 监听失败: " + err.Error())
	}
	s := &Server{
		Password: password,
		Handler:  handler,
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	return s
}

// Addr 返回监听地址 host:port
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host 返回监听的主机
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port 返回监听的端口
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Requests 返回收到的全部请求
func (s *Server) Requests() []*rcon.Packet {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]*rcon.Packet(nil), s.requests...)
}

// Commands 返回收到的命令文本
func (s *Server) Commands() []string {
	var commands []string
	for _, req := range s.Requests() {
		if req.Type == rcon.TypeCommand {
			commands = append(commands, string(req.Body))
		}
	}
	return commands
}

// Close 关闭监听和所有连接
func (s *Server) Close() {
	s.listener.Close()
	s.mutex.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mutex.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mutex.Lock()
		s.conns[conn] = struct{}{}
		s.mutex.Unlock()

		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mutex.Lock()
		delete(s.conns, conn)
		s.mutex.Unlock()
	}()

	for {
		req, err := rcon.ReadPacket(conn, 0)
		if err != nil {
			// 客户端断开或服务器关闭
			return
		}

		s.mutex.Lock()
		s.requests = append(s.requests, req)
		s.mutex.Unlock()

		var reply []byte
		switch req.Type {
		case rcon.TypeLogin:
			if s.LoginHandler != nil {
				reply = s.LoginHandler(req)
			} else if string(req.Body) == s.Password {
				reply = Frame(req.ID, rcon.TypeLogin, "")
			} else {
				reply = Frame(rcon.AuthFailedID, rcon.TypeCommand, "")
			}
		default:
			if s.Handler != nil {
				reply = s.Handler(req)
			} else {
				reply = Frame(req.ID, rcon.TypeResponse, string(req.Body))
			}
		}

		if reply == nil {
			continue
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
	}
}

// Frame 编码一个完整的响应帧
func Frame(id int32, kind rcon.PacketType, payload string) []byte {
	frame, _ := (&rcon.Packet{ID: id, Type: kind, Body: []byte(payload)}).MarshalBinary()
	return frame
}

// Fragments 把一个响应拆成多个数据包，拼接成一次写出的字节
func Fragments(id int32, parts ...string) []byte {
	var buf bytes.Buffer
	for _, part := range parts {
		buf.Write(Frame(id, rcon.TypeResponse, part))
	}
	return buf.Bytes()
}

// Reply 返回一个总是以给定分片响应的处理函数
func Reply(parts ...string) HandlerFunc {
	return func(req *rcon.Packet) []byte {
		return Fragments(req.ID, parts...)
	}
}

// Script 按命令文本查表响应，未知命令返回空响应
func Script(responses map[string]string) HandlerFunc {
	return func(req *rcon.Packet) []byte {
		return Frame(req.ID, rcon.TypeResponse, responses[string(req.Body)])
	}
}
