package traci

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// 命令
const (
	CMD_GETVERSION  = 0x00
	CMD_SIMSTEP     = 0x02
	CMD_CLOSE       = 0x7F
	CMD_GET_VEHICLE = 0xa4
	RES_GET_VEHICLE = 0xb4
	CMD_SET_VEHICLE = 0xc4
	CMD_GET_SIM     = 0xab
	RES_GET_SIM     = 0xbb
)

// 变量
const (
	VAR_ID_LIST    = 0x00
	VAR_SPEED      = 0x40
	VAR_LENGTH     = 0x44
	VAR_LANE_INDEX = 0x52
	VAR_TIME       = 0x66
	VAR_LEADER     = 0x68
	VAR_NEXT_TLS   = 0x70
	VAR_DISTANCE   = 0x84
	CMD_CHANGELANE = 0x13
)

// 数据类型
const (
	TYPE_UBYTE      = 0x07
	TYPE_BYTE       = 0x08
	TYPE_INTEGER    = 0x09
	TYPE_DOUBLE     = 0x0B
	TYPE_STRING     = 0x0C
	TYPE_STRINGLIST = 0x0E
	TYPE_COMPOUND   = 0x0F
)

// 命令执行结果
const (
	RTYPE_OK     = 0x00
	RTYPE_NOTIMP = 0x01
	RTYPE_ERR    = 0xFF
)

// storage TraCI消息的序列化缓冲区，大端序
type storage struct {
	bytes.Buffer
}

func (s *storage) ubyte(v byte) {
	s.WriteByte(v)
}

func (s *storage) int(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	s.Write(b[:])
}

func (s *storage) double(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.Write(b[:])
}

func (s *storage) string(v string) {
	s.int(int32(len(v)))
	s.WriteString(v)
}

// command 追加一条命令，长度超过255时使用扩展长度格式
func (s *storage) command(id byte, content []byte) {
	if n := 1 + 1 + len(content); n <= 255 {
		s.ubyte(byte(n))
	} else {
		s.ubyte(0)
		s.int(int32(1 + 4 + 1 + len(content)))
	}
	s.ubyte(id)
	s.Write(content)
}

// reader TraCI消息的反序列化
type reader struct {
	*bytes.Reader
}

func newReader(b []byte) *reader {
	return &reader{bytes.NewReader(b)}
}

func (r *reader) ubyte() (byte, error) {
	return r.ReadByte()
}

func (r *reader) int() (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

func (r *reader) double() (float64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b[:])), nil
}

func (r *reader) string() (string, error) {
	n, err := r.int()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > r.Len() {
		return "", fmt.Errorf("bad string length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// commandHeader 读取命令头
// 返回：命令ID与命令内容的长度
func (r *reader) commandHeader() (byte, int, error) {
	n, err := r.ubyte()
	if err != nil {
		return 0, 0, err
	}
	headerLen := 2
	length := int(n)
	if n == 0 {
		l, err := r.int()
		if err != nil {
			return 0, 0, err
		}
		length = int(l)
		headerLen = 6
	}
	id, err := r.ubyte()
	if err != nil {
		return 0, 0, err
	}
	if length < headerLen {
		return 0, 0, fmt.Errorf("bad command length %d", length)
	}
	return id, length - headerLen, nil
}

// typed 读取带类型标记的值
// 返回：byte、int32、float64、string、[]string，复合类型展开为[]any
func (r *reader) typed() (any, error) {
	t, err := r.ubyte()
	if err != nil {
		return nil, err
	}
	switch t {
	case TYPE_UBYTE, TYPE_BYTE:
		return r.ubyte()
	case TYPE_INTEGER:
		return r.int()
	case TYPE_DOUBLE:
		return r.double()
	case TYPE_STRING:
		return r.string()
	case TYPE_STRINGLIST:
		n, err := r.int()
		if err != nil {
			return nil, err
		}
		res := make([]string, 0, max(n, 0))
		for range n {
			s, err := r.string()
			if err != nil {
				return nil, err
			}
			res = append(res, s)
		}
		return res, nil
	case TYPE_COMPOUND:
		n, err := r.int()
		if err != nil {
			return nil, err
		}
		res := make([]any, 0, max(n, 0))
		for range n {
			v, err := r.typed()
			if err != nil {
				return nil, err
			}
			res = append(res, v)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unsupported type 0x%02x", t)
	}
}

// as 类型断言，失败时返回错误
func as[T any](v any) (T, error) {
	res, ok := v.(T)
	if !ok {
		return res, fmt.Errorf("unexpected value %v (%T)", v, v)
	}
	return res, nil
}
