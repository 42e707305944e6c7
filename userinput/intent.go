package userinput

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

const (
	INITIAL_SPEED = 13.0 // 初始期望速度（米/秒）
	SPEED_UP      = 0.2  // 加速键按住时每步增加的速度
	SPEED_DOWN    = 0.5  // 减速键按住时每步减少的速度
)

// Key 按键
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyQuit
)

var keyNames = map[string]Key{
	"up":    KeyUp,
	"u":     KeyUp,
	"down":  KeyDown,
	"d":     KeyDown,
	"left":  KeyLeft,
	"l":     KeyLeft,
	"right": KeyRight,
	"r":     KeyRight,
	"quit":  KeyQuit,
	"q":     KeyQuit,
}

// ParseKey 解析按键名（大小写不敏感）
func ParseKey(s string) (Key, error) {
	if k, ok := keyNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return KeyNone, fmt.Errorf("unknown key %q", s)
}

// Frame 一步内的按键状态
type Frame struct {
	Up, Down bool  // 按住的调速键
	Lane     int32 // 本步按下的变道键：+1左，-1右
	Quit     bool
}

// press 将一次按键合并到本步状态
// 说明：同一步内后按下的变道键覆盖先按下的
func (f *Frame) press(k Key) {
	switch k {
	case KeyUp:
		f.Up = true
	case KeyDown:
		f.Down = true
	case KeyLeft:
		f.Lane = entity.LANE_LEFT
	case KeyRight:
		f.Lane = entity.LANE_RIGHT
	case KeyQuit:
		f.Quit = true
	}
}

// Driver 用户意图状态
// 功能：把逐步的按键状态累积成期望速度，并产生单步的变道请求
// 说明：加速与减速同时按住时两者都生效
type Driver struct {
	targetSpeed float64
	minSpeed    float64
	maxSpeed    float64
}

// NewDriver 创建用户意图状态，期望速度从INITIAL_SPEED开始
func NewDriver(minSpeed, maxSpeed float64) *Driver {
	if minSpeed > maxSpeed {
		log.Panicf("invalid speed bounds [%v, %v]", minSpeed, maxSpeed)
	}
	return &Driver{
		targetSpeed: lo.Clamp(INITIAL_SPEED, minSpeed, maxSpeed),
		minSpeed:    minSpeed,
		maxSpeed:    maxSpeed,
	}
}

// TargetSpeed 当前期望速度
func (d *Driver) TargetSpeed() float64 {
	return d.targetSpeed
}

// Apply 应用一步的按键状态
// 返回：本步的用户意图
func (d *Driver) Apply(f Frame) entity.Intent {
	if f.Up {
		d.targetSpeed += SPEED_UP
	}
	if f.Down {
		d.targetSpeed -= SPEED_DOWN
	}
	d.targetSpeed = lo.Clamp(d.targetSpeed, d.minSpeed, d.maxSpeed)
	return entity.Intent{
		TargetSpeed: d.targetSpeed,
		LaneRequest: f.Lane,
		Quit:        f.Quit,
	}
}
