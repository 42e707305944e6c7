package agent

import (
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/safety"
)

// Role 受控车辆的角色
type Role int

const (
	RoleLeader   Role = iota // 规则控制的头车，受安全包络约束
	RoleFollower             // 预测控制的跟驰车
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "leader"
	case RoleFollower:
		return "follower"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// VehicleState 受控车辆的运行时状态
// 功能：把窗口、冷却计数、差分前值和上次下发的速度绑定到一辆车上
// 说明：每辆受控车辆恰好一个实例，车辆出现时创建，离开仿真时销毁；
// 只由控制循环所在的协程访问
type VehicleState struct {
	ID   string
	Role Role

	Adapter  *feature.Adapter // 差分前值
	Window   *feature.Window  // 仅跟驰车持有
	Cooldown *safety.Cooldown // 仅头车持有

	lastSpeed    float64 // 上次下发的速度
	hasLastSpeed bool    // 是否下发过速度
}

// NewLeaderState 创建头车状态
func NewLeaderState(id string, dt float64, cooldown int) *VehicleState {
	return &VehicleState{
		ID:       id,
		Role:     RoleLeader,
		Adapter:  feature.NewAdapter(dt),
		Cooldown: safety.NewCooldown(cooldown),
	}
}

// NewFollowerState 创建跟驰车状态
func NewFollowerState(id string, dt float64, window int) *VehicleState {
	return &VehicleState{
		ID:      id,
		Role:    RoleFollower,
		Adapter: feature.NewAdapter(dt),
		Window:  feature.NewWindow(window),
	}
}

// LastSpeed 上次下发的速度
func (s *VehicleState) LastSpeed() (float64, bool) {
	return s.lastSpeed, s.hasLastSpeed
}

// recordDispatch 记录已下发的速度
func (s *VehicleState) recordDispatch(v float64) {
	s.lastSpeed = v
	s.hasLastSpeed = true
}

func (s *VehicleState) String() string {
	return fmt.Sprintf("VehicleState{%v(%v), last=%v/%v}", s.ID, s.Role, s.lastSpeed, s.hasLastSpeed)
}
