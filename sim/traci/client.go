package traci

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"time"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

var _ entity.ISimulator = (*Client)(nil)

// DEFAULT_LOOKAHEAD 查询前车时的最大距离（米）
const DEFAULT_LOOKAHEAD = 100.0

// Client SUMO TraCI客户端
// 功能：通过TCP连接SUMO，实现控制循环所需的仿真查询与控制
// 说明：一次请求一个命令，只由控制循环所在的协程使用
type Client struct {
	conn      net.Conn
	proc      *exec.Cmd // 由本客户端启动的SUMO进程
	r         *bufio.Reader
	Lookahead float64 // 查询前车的距离
}

// Dial 连接TraCI服务
// 参数：ctx-上下文，addr-host:port，retries-连接失败时的重试次数
// 说明：SUMO刚启动时端口可能尚未监听，按1秒间隔重试
func Dial(ctx context.Context, addr string, retries int) (*Client, error) {
	var d net.Dialer
	var lastErr error
	for i := 0; i <= retries; i++ {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			log.Infof("connected to %s", addr)
			return NewClient(conn), nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("%w: connect traci %s: %v", entity.ErrConfiguration, addr, lastErr)
}

// NewClient 使用已建立的连接创建客户端
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn, r: bufio.NewReader(conn), Lookahead: DEFAULT_LOOKAHEAD}
}

// roundTrip 发送一条命令并读取完整的响应消息
// 返回：已读过状态响应的reader
func (c *Client) roundTrip(cmd byte, content []byte) (*reader, error) {
	var s storage
	s.command(cmd, content)
	msg := make([]byte, 4, 4+s.Len())
	binary.BigEndian.PutUint32(msg, uint32(4+s.Len()))
	msg = append(msg, s.Bytes()...)
	if _, err := c.conn.Write(msg); err != nil {
		return nil, fmt.Errorf("%w: send 0x%02x: %v", entity.ErrSensing, cmd, err)
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(c.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: receive 0x%02x: %v", entity.ErrSensing, cmd, err)
	}
	total := int(binary.BigEndian.Uint32(lenBuf[:]))
	if total < 4 {
		return nil, fmt.Errorf("%w: bad message length %d", entity.ErrSensing, total)
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return nil, fmt.Errorf("%w: receive 0x%02x: %v", entity.ErrSensing, cmd, err)
	}

	r := newReader(body)
	id, _, err := r.commandHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: status of 0x%02x: %v", entity.ErrSensing, cmd, err)
	}
	result, err := r.ubyte()
	if err != nil {
		return nil, fmt.Errorf("%w: status of 0x%02x: %v", entity.ErrSensing, cmd, err)
	}
	desc, err := r.string()
	if err != nil {
		return nil, fmt.Errorf("%w: status of 0x%02x: %v", entity.ErrSensing, cmd, err)
	}
	if id != cmd {
		return nil, fmt.Errorf("%w: status for 0x%02x, expect 0x%02x", entity.ErrSensing, id, cmd)
	}
	if result != RTYPE_OK {
		// SUMO对不存在的车辆返回"Vehicle 'x' is not known"
		if strings.Contains(desc, "is not known") {
			return nil, fmt.Errorf("%w: %s", entity.ErrVehicleAbsent, desc)
		}
		return nil, fmt.Errorf("%w: command 0x%02x failed (%d): %s", entity.ErrSensing, cmd, result, desc)
	}
	return r, nil
}

// get 查询变量
// 参数：cmd-查询命令，variable-变量，id-对象ID，param-附加参数（已带类型标记）
func (c *Client) get(cmd, variable byte, id string, param []byte) (any, error) {
	var s storage
	s.ubyte(variable)
	s.string(id)
	s.Write(param)
	r, err := c.roundTrip(cmd, s.Bytes())
	if err != nil {
		return nil, err
	}
	resID, _, err := r.commandHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: response of 0x%02x: %v", entity.ErrSensing, cmd, err)
	}
	if resID != cmd+0x10 {
		return nil, fmt.Errorf("%w: response 0x%02x for 0x%02x", entity.ErrSensing, resID, cmd)
	}
	if v, err := r.ubyte(); err != nil || v != variable {
		return nil, fmt.Errorf("%w: response variable 0x%02x for 0x%02x", entity.ErrSensing, v, variable)
	}
	if _, err := r.string(); err != nil {
		return nil, fmt.Errorf("%w: response id: %v", entity.ErrSensing, err)
	}
	v, err := r.typed()
	if err != nil {
		return nil, fmt.Errorf("%w: response value: %v", entity.ErrSensing, err)
	}
	return v, nil
}

// set 设置变量
func (c *Client) set(cmd, variable byte, id string, value []byte) error {
	var s storage
	s.ubyte(variable)
	s.string(id)
	s.Write(value)
	_, err := c.roundTrip(cmd, s.Bytes())
	return err
}

func getAs[T any](c *Client, cmd, variable byte, id string) (T, error) {
	v, err := c.get(cmd, variable, id, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	res, err := as[T](v)
	if err != nil {
		return res, fmt.Errorf("%w: %v", entity.ErrSensing, err)
	}
	return res, nil
}

// Step 推进一个仿真步
func (c *Client) Step() error {
	var s storage
	s.double(0)
	r, err := c.roundTrip(CMD_SIMSTEP, s.Bytes())
	if err != nil {
		return err
	}
	// 没有订阅，结果数应为0
	if n, err := r.int(); err != nil || n != 0 {
		return fmt.Errorf("%w: unexpected subscription results %d", entity.ErrSensing, n)
	}
	return nil
}

func (c *Client) Time() (float64, error) {
	return getAs[float64](c, CMD_GET_SIM, VAR_TIME, "")
}

func (c *Client) VehicleIDs() ([]string, error) {
	return getAs[[]string](c, CMD_GET_VEHICLE, VAR_ID_LIST, "")
}

func (c *Client) Speed(id string) (float64, error) {
	return getAs[float64](c, CMD_GET_VEHICLE, VAR_SPEED, id)
}

func (c *Client) Distance(id string) (float64, error) {
	return getAs[float64](c, CMD_GET_VEHICLE, VAR_DISTANCE, id)
}

func (c *Client) Length(id string) (float64, error) {
	return getAs[float64](c, CMD_GET_VEHICLE, VAR_LENGTH, id)
}

func (c *Client) LaneIndex(id string) (int32, error) {
	return getAs[int32](c, CMD_GET_VEHICLE, VAR_LANE_INDEX, id)
}

// Leader 前车
// 说明：SUMO在没有前车时返回空ID
func (c *Client) Leader(id string) (*entity.Leader, error) {
	var param storage
	param.ubyte(TYPE_DOUBLE)
	param.double(c.Lookahead)
	v, err := c.get(CMD_GET_VEHICLE, VAR_LEADER, id, param.Bytes())
	if err != nil {
		return nil, err
	}
	items, err := as[[]any](v)
	if err != nil || len(items) != 2 {
		return nil, fmt.Errorf("%w: leader of %s: %v", entity.ErrSensing, id, v)
	}
	leaderID, err1 := as[string](items[0])
	gap, err2 := as[float64](items[1])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("%w: leader of %s: %v", entity.ErrSensing, id, v)
	}
	if leaderID == "" {
		return nil, nil
	}
	return &entity.Leader{ID: leaderID, Gap: gap}, nil
}

// NextSignals 前方信号灯
// 说明：复合值依次为信号灯数量与每个信号灯的(ID, 链路索引, 距离, 灯色)
func (c *Client) NextSignals(id string) ([]entity.Signal, error) {
	v, err := c.get(CMD_GET_VEHICLE, VAR_NEXT_TLS, id, nil)
	if err != nil {
		return nil, err
	}
	bad := func() error {
		return fmt.Errorf("%w: next signals of %s: %v", entity.ErrSensing, id, v)
	}
	items, err := as[[]any](v)
	if err != nil || len(items) == 0 {
		return nil, bad()
	}
	n, err := as[int32](items[0])
	if err != nil || len(items) != 1+4*int(n) {
		return nil, bad()
	}
	res := make([]entity.Signal, 0, n)
	for i := 0; i < int(n); i++ {
		base := 1 + 4*i
		sid, e1 := as[string](items[base])
		idx, e2 := as[int32](items[base+1])
		dist, e3 := as[float64](items[base+2])
		state, e4 := as[byte](items[base+3])
		if e1 != nil || e2 != nil || e3 != nil || e4 != nil {
			return nil, bad()
		}
		res = append(res, entity.Signal{ID: sid, Index: idx, Distance: dist, State: state})
	}
	return res, nil
}

func (c *Client) SetSpeed(id string, speed float64) error {
	var s storage
	s.ubyte(TYPE_DOUBLE)
	s.double(speed)
	return c.set(CMD_SET_VEHICLE, VAR_SPEED, id, s.Bytes())
}

func (c *Client) ChangeLane(id string, targetLane int32, duration float64) error {
	if targetLane < 0 || targetLane > 255 {
		return fmt.Errorf("%w: lane %d out of range", entity.ErrSensing, targetLane)
	}
	var s storage
	s.ubyte(TYPE_COMPOUND)
	s.int(2)
	s.ubyte(TYPE_BYTE)
	s.ubyte(byte(targetLane))
	s.ubyte(TYPE_DOUBLE)
	s.double(duration)
	return c.set(CMD_SET_VEHICLE, CMD_CHANGELANE, id, s.Bytes())
}

// Close 通知SUMO结束仿真并断开连接
func (c *Client) Close() error {
	_, err := c.roundTrip(CMD_CLOSE, nil)
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	if c.proc != nil {
		if werr := c.proc.Wait(); werr != nil {
			log.Warnf("sumo exited: %v", werr)
		}
	}
	return err
}
