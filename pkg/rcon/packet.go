package rcon

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PacketType 数据包类型
type PacketType int32

const (
	// TypeResponse 服务器返回的命令响应
	TypeResponse PacketType = 0
	// TypeCommand 执行命令请求
	TypeCommand PacketType = 2
	// TypeLogin 登录认证请求
	TypeLogin PacketType = 3
)

func (t PacketType) String() string {
	switch t {
	case TypeResponse:
		return "RESPONSE"
	case TypeCommand:
		return "COMMAND"
	case TypeLogin:
		return "LOGIN"
	default:
		return fmt.Sprintf("TYPE(%d)", int32(t))
	}
}

const (
	lengthFieldSize = 4                              // 长度字段，不计入长度本身
	headerSize      = 8                              // id + type
	paddingSize     = 2                              // 结尾的两个0字节
	minPacketLength = headerSize + paddingSize       // 空负载数据包的声明长度
	minFrameSize    = lengthFieldSize + minPacketLength
)

// AuthFailedID 认证失败时服务器回传的请求ID
const AuthFailedID int32 = -1

// Packet 表示一个RCON数据包
//
// 线上格式（小端序）：
//
//	length:int32 | id:int32 | type:int32 | body | 0x00 0x00
//
// length 不包括自身的4个字节。
type Packet struct {
	ID   int32      // 请求ID，由客户端选择，认证失败时服务器返回-1
	Type PacketType // 数据包类型
	Body []byte     // UTF-8负载，不包括结尾填充
}

// Length 返回数据包的声明长度
func (p *Packet) Length() int32 {
	return int32(headerSize + len(p.Body) + paddingSize)
}

// MarshalBinary 将数据包编码为完整的线上帧（含长度前缀）
func (p *Packet) MarshalBinary() ([]byte, error) {
	frame := make([]byte, lengthFieldSize+int(p.Length()))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(p.Length()))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(p.ID))
	binary.LittleEndian.PutUint32(frame[8:12], uint32(p.Type))
	copy(frame[12:], p.Body)
	// 最后两个字节保持为0
	return frame, nil
}

// UnmarshalBinary 解析一个完整的线上帧（含长度前缀）
func (p *Packet) UnmarshalBinary(frame []byte) error {
	if len(frame) < minFrameSize {
		return fmt.Errorf("%w: 帧长度 %d 小于最小长度 %d", ErrMalformedResponse, len(frame), minFrameSize)
	}
	length := int32(binary.LittleEndian.Uint32(frame[0:4]))
	if int(length) != len(frame)-lengthFieldSize {
		return fmt.Errorf("%w: 声明长度 %d 与实际长度 %d 不符", ErrMalformedResponse, length, len(frame)-lengthFieldSize)
	}
	return p.decodeBody(frame[lengthFieldSize:])
}

// decodeBody 解析去掉长度前缀之后的数据包内容
func (p *Packet) decodeBody(body []byte) error {
	if len(body) < minPacketLength {
		return fmt.Errorf("%w: 数据包长度 %d 过短", ErrMalformedResponse, len(body))
	}

	padding := body[len(body)-paddingSize:]
	if padding[0] != 0 || padding[1] != 0 {
		return fmt.Errorf("%w: 错误的结尾填充 %#x", ErrMalformedResponse, padding)
	}

	p.ID = int32(binary.LittleEndian.Uint32(body[0:4]))
	p.Type = PacketType(binary.LittleEndian.Uint32(body[4:8]))
	p.Body = append([]byte(nil), body[headerSize:len(body)-paddingSize]...)
	return nil
}

// readLength 读取下一个数据包的声明长度
func readLength(r io.Reader) (int32, error) {
	var buf [lengthFieldSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

// ReadPacket 从r中读取一个完整的数据包
// 传输层的部分读取会被循环补齐，maxLength<=0 表示不限制单个数据包大小
func ReadPacket(r io.Reader, maxLength int) (*Packet, error) {
	length, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if length < minPacketLength {
		return nil, fmt.Errorf("%w: 声明长度 %d", ErrMalformedResponse, length)
	}
	if maxLength > 0 && int(length) > maxLength {
		return nil, fmt.Errorf("%w: 声明长度 %d 超过上限 %d", ErrResponseTooLarge, length, maxLength)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	packet := &Packet{}
	if err := packet.decodeBody(body); err != nil {
		return nil, err
	}
	return packet, nil
}

// WritePacket 将数据包一次性写入w
func WritePacket(w io.Writer, p *Packet) error {
	frame, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
