package safety

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

// Config 安全包络参数
type Config struct {
	SafeDistance       float64 // 跟车安全距离（米），小于该值开始限速
	StopDistance       float64 // 强制停车距离（米），小于该值速度上限为0
	FollowRatio        float64 // 跟车时速度上限相对前车速度的比例
	SignalDistance     float64 // 开始响应信号灯的距离（米）
	LaneCount          int32   // 道路车道数，合法车道编号为[0, LaneCount-1]
	LaneChangeDuration float64 // 变道持续时间（秒）
}

// DefaultConfig 默认参数
func DefaultConfig() Config {
	return Config{
		SafeDistance:       15,
		StopDistance:       5,
		FollowRatio:        0.9,
		SignalDistance:     40,
		LaneCount:          3,
		LaneChangeDuration: 2,
	}
}

// LeaderState 前车感知结果
type LeaderState struct {
	ID    string  // 前车ID
	Gap   float64 // 净距离（米）
	Speed float64 // 前车速度（米/秒）
}

// Situation 头车的单步感知结果
// 说明：直接来自仿真器原始读数，不经过特征窗口
type Situation struct {
	Speed   float64         // 本车速度
	Leader  *LeaderState    // 前车，nil表示无前车
	Lane    int32           // 当前车道编号
	Signals []entity.Signal // 前方信号灯
}

// Request 用户请求
type Request struct {
	TargetSpeed float64 // 用户期望速度
	LaneRequest int32   // 变道请求：-1/0/+1
}

// Envelope 安全包络
// 功能：确定性规则栈，给出头车不可超越的速度上限并裁决变道请求
// 说明：本身无状态，可变的冷却计数由车辆状态持有并传入
type Envelope struct {
	cfg Config
}

// New 创建安全包络
func New(cfg Config) *Envelope {
	if cfg.StopDistance > cfg.SafeDistance {
		log.Panicf("stop distance %v exceeds safe distance %v", cfg.StopDistance, cfg.SafeDistance)
	}
	if cfg.LaneCount <= 0 {
		log.Panicf("lane count must be positive, got %d", cfg.LaneCount)
	}
	return &Envelope{cfg: cfg}
}

// Config 返回参数
func (e *Envelope) Config() Config {
	return e.cfg
}

// Sense 读取头车本步的感知数据
// 功能：查询本车速度、前车及前车速度、所在车道、前方信号灯
// 参数：sim-仿真器，id-头车ID
// 返回：感知结果；任何查询失败都返回错误（车辆不存在时包装entity.ErrVehicleAbsent，
// 其余包装entity.ErrSensing），此时本步没有判定结果
func (e *Envelope) Sense(sim entity.ISimulator, id string) (Situation, error) {
	var s Situation
	var err error
	if s.Speed, err = sim.Speed(id); err != nil {
		return Situation{}, sensingError(id, "speed", err)
	}
	leader, err := sim.Leader(id)
	if err != nil {
		return Situation{}, sensingError(id, "leader", err)
	}
	if leader != nil {
		v, err := sim.Speed(leader.ID)
		if err != nil {
			return Situation{}, fmt.Errorf("sense %v: leader %v speed: %w: %w", id, leader.ID, entity.ErrSensing, err)
		}
		s.Leader = &LeaderState{ID: leader.ID, Gap: leader.Gap, Speed: v}
	}
	if s.Lane, err = sim.LaneIndex(id); err != nil {
		return Situation{}, sensingError(id, "lane index", err)
	}
	if s.Signals, err = sim.NextSignals(id); err != nil {
		return Situation{}, sensingError(id, "next signals", err)
	}
	return s, nil
}

func sensingError(id, what string, err error) error {
	if errors.Is(err, entity.ErrVehicleAbsent) {
		return fmt.Errorf("sense %v: %s: %w", id, what, err)
	}
	return fmt.Errorf("sense %v: %s: %w: %w", id, what, entity.ErrSensing, err)
}

// Evaluate 按固定优先级执行规则
// 功能：由感知结果、用户请求和冷却计数得到本步判定
// 参数：s-感知结果，req-用户请求，cd-头车的变道冷却计数
// 返回：判定结果
// 算法说明：
//  1. 基线：上限 = 用户期望速度
//  2. 跟车：前车距离 < SafeDistance时，上限取min(上限, 前车速度*FollowRatio)；
//     距离 < StopDistance时上限为0
//  3. 信号灯：只看最近的信号灯，距离 < SignalDistance且为红/黄灯（不区分大小写）时，
//     上限为0并标记路口阻断；绿灯或无近处信号灯不改变上限
//  4. 变道：冷却计数先递减；非零请求只有在冷却为0且目标车道合法时才放行，
//     放行后重置冷却；被拒绝的请求只体现在状态文本中，不影响速度上限
//
// 说明：每条规则只能收紧上限，不能放宽
func (e *Envelope) Evaluate(s Situation, req Request, cd *Cooldown) Verdict {
	v := Verdict{
		SpeedCeiling: math.Max(req.TargetSpeed, 0),
		Reason:       "Cruising",
		rank:         reasonCruising,
	}
	e.policyFollow(&v, s.Leader)
	e.policySignal(&v, s.Signals)
	e.policyLaneChange(&v, s.Lane, req.LaneRequest, cd)
	return v
}

// policyFollow 规则2：跟车
func (e *Envelope) policyFollow(v *Verdict, leader *LeaderState) {
	if leader == nil || leader.Gap >= e.cfg.SafeDistance {
		return
	}
	reason := fmt.Sprintf("ACC: Following %v", leader.ID)
	if leader.Gap < e.cfg.StopDistance {
		v.tighten(0, reasonFollowing, reason)
		return
	}
	v.tighten(math.Max(leader.Speed*e.cfg.FollowRatio, 0), reasonFollowing, reason)
}

// policySignal 规则3：信号灯
func (e *Envelope) policySignal(v *Verdict, signals []entity.Signal) {
	if len(signals) == 0 {
		return
	}
	sorted := slices.Clone(signals)
	slices.SortStableFunc(sorted, func(a, b entity.Signal) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	next := sorted[0]
	if next.Distance >= e.cfg.SignalDistance {
		return
	}
	switch next.State {
	case 'r', 'R':
		v.tighten(0, reasonIntersection, "Intersection: Red Light")
		v.IntersectionBlocked = true
	case 'y', 'Y':
		v.tighten(0, reasonIntersection, "Intersection: Yellow Light")
		v.IntersectionBlocked = true
	default:
		// 绿灯或其他状态，通行
	}
}

// policyLaneChange 规则4：变道
func (e *Envelope) policyLaneChange(v *Verdict, lane int32, request int32, cd *Cooldown) {
	cd.tick()
	if request == entity.LANE_KEEP {
		return
	}
	if !cd.Ready() {
		v.LaneNote = fmt.Sprintf("Lane Change Cooldown (%d)", cd.Remaining())
		return
	}
	target := lane + request
	if target < 0 || target > e.cfg.LaneCount-1 {
		v.LaneNote = "Lane Invalid"
		return
	}
	v.LaneChange = &entity.LaneChange{TargetLane: target, Duration: e.cfg.LaneChangeDuration}
	v.LaneNote = "Changing Lane"
	cd.reset()
}

// Step 感知并判定
// 返回：判定结果；感知失败时返回错误，冷却计数不变，调用方本步不得下发头车指令
func (e *Envelope) Step(sim entity.ISimulator, id string, req Request, cd *Cooldown) (Verdict, error) {
	s, err := e.Sense(sim, id)
	if err != nil {
		return Verdict{}, err
	}
	v := e.Evaluate(s, req, cd)
	log.Debugf("%v: %+v -> %v", id, s, v)
	return v, nil
}
