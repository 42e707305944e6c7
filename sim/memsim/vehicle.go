package memsim

import (
	"math"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
)

const (
	DEFAULT_LENGTH = 5.0 // 默认车长（米）

	maxA          = 2.6  // 最大加速度
	usualBrakingA = -4.5 // 常用制动加速度
	maxBrakingA   = -9.0 // 最大制动加速度
	minGap        = 2.5  // 最小车距
	headway       = 1.5  // 安全车头时距
	idmTheta      = 4.0  // IDM速度指数
)

// vehicle 内置仿真器中的车辆
type vehicle struct {
	id     string
	length float64
	maxV   float64

	x        float64 // 车头在道路上的位置（米）
	distance float64 // 出发以来行驶的距离（米）
	v        float64
	lane     int32

	command     float64 // 外部设置的速度，<0表示由跟车模型控制
	pendingLane int32   // 下一步生效的目标车道，<0表示无

	nextV float64 // 本步计算出的新速度
}

// followImpl 智能驾驶模型(IDM)
// 参数：selfV-本车速度，targetV-目标速度，aheadV-前车速度，distance-车距，headway-安全车头时距
// 返回：加速度（米/秒²）
func followImpl(selfV, targetV, aheadV, distance, headway float64) float64 {
	var acc float64
	if distance <= 0 {
		acc = -mathutil.INF
	} else {
		// https://en.wikipedia.org/wiki/Intelligent_driver_model
		sStar := minGap + math.Max(
			0,
			selfV*headway+selfV*(selfV-aheadV)/2/math.Sqrt(-usualBrakingA*maxA),
		)
		acc = maxA * (1 - math.Pow(selfV/targetV, idmTheta) - math.Pow(sStar/distance, 2))
	}
	return lo.Clamp(acc, maxBrakingA, maxA)
}

// plan 计算本步的新速度
// 参数：aheadV-前方障碍速度，gap-与前方障碍的净距离（无障碍时为INF），laneMaxV-限速，dt-步长，noise-速度扰动
// 说明：外部设置了速度时按加减速能力逼近设定值，否则使用IDM；两种情况都不会越过前方障碍
func (v *vehicle) plan(aheadV, gap, laneMaxV, dt, noise float64) {
	var next float64
	if v.command >= 0 {
		next = lo.Clamp(v.command, v.v+maxBrakingA*dt, v.v+maxA*dt)
	} else {
		acc := followImpl(v.v, math.Min(v.maxV, laneMaxV), aheadV, gap, headway)
		next = v.v + acc*dt + noise
	}
	if gap < mathutil.INF {
		next = math.Min(next, math.Max(0, gap)/dt)
	}
	v.nextV = math.Max(0, next)
}

// move 应用新速度与变道并前进
func (v *vehicle) move(dt float64) {
	v.v = v.nextV
	v.x += v.v * dt
	v.distance += v.v * dt
	if v.pendingLane >= 0 {
		v.lane = v.pendingLane
		v.pendingLane = -1
	}
}
