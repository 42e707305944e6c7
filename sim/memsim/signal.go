package memsim

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

// phase 固定相位信号灯的一个相位
type phase struct {
	state    mapv2.LightState
	duration float64
}

// signal 固定相位信号灯
// 功能：按绿、黄、红的顺序循环切换，控制所有车道
type signal struct {
	id       string
	position float64 // 停止线位置（米）

	phases    []phase
	step      int     // 当前相位
	remaining float64 // 当前相位剩余时间（秒）
}

func newSignal(c config.MemSignal) *signal {
	s := &signal{
		id:       c.ID,
		position: c.Position,
	}
	for _, p := range []phase{
		{mapv2.LightState_LIGHT_STATE_GREEN, c.Green},
		{mapv2.LightState_LIGHT_STATE_YELLOW, c.Yellow},
		{mapv2.LightState_LIGHT_STATE_RED, c.Red},
	} {
		if p.duration > 0 {
			s.phases = append(s.phases, p)
		}
	}
	if len(s.phases) == 0 {
		return s
	}
	s.remaining = s.phases[0].duration
	s.update(c.Offset)
	return s
}

// update 推进信号灯时间并切换相位
// 说明：一次推进可以跨越多个相位
func (s *signal) update(dt float64) {
	if len(s.phases) == 0 {
		return
	}
	s.remaining -= dt
	for s.remaining <= 0 {
		s.step = (s.step + 1) % len(s.phases)
		s.remaining += s.phases[s.step].duration
	}
}

// state 当前灯色，没有相位时常绿
func (s *signal) state() mapv2.LightState {
	if len(s.phases) == 0 {
		return mapv2.LightState_LIGHT_STATE_GREEN
	}
	return s.phases[s.step].state
}

// stateChar 与TraCI一致的灯色字符
func (s *signal) stateChar() byte {
	switch s.state() {
	case mapv2.LightState_LIGHT_STATE_RED:
		return 'r'
	case mapv2.LightState_LIGHT_STATE_YELLOW:
		return 'y'
	default:
		return 'G'
	}
}

// blocking 是否禁止通行
func (s *signal) blocking() bool {
	return s.state() != mapv2.LightState_LIGHT_STATE_GREEN
}
