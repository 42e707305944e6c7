package agent

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"github.com/tsinghua-fib-lab/safedrive-agent/safety"
)

// Command 单车的最终执行指令
type Command struct {
	VehicleID  string
	Speed      float64            // 目标速度（米/秒）
	LaneChange *entity.LaneChange // 变道指令，nil表示不变道
	Source     string             // 指令来源
	Status     string             // 显示用状态
}

// 指令来源
const (
	SourceEnvelope  = "envelope"  // 安全包络上限
	SourcePredictor = "predictor" // 本步预测
	SourceHold      = "hold"      // 沿用上一次的指令
)

// ArbitrateLeader 头车仲裁
// 功能：头车的最终速度即安全包络的速度上限，包络已把用户期望速度作为基线
// 参数：st-头车状态，v-本步判定，nil表示本步没有判定
// 返回：执行指令
// 说明：没有判定时调用本函数属于编程错误，直接panic
func ArbitrateLeader(st *VehicleState, v *safety.Verdict) Command {
	if st.Role != RoleLeader {
		log.Panicf("arbitrate leader on %v", st)
	}
	if v == nil {
		log.Panicf("arbitrate %v without verdict", st.ID)
	}
	return Command{
		VehicleID:  st.ID,
		Speed:      v.SpeedCeiling,
		LaneChange: v.LaneChange,
		Source:     SourceEnvelope,
		Status:     v.Status(),
	}
}

// ArbitrateFollower 跟驰车仲裁
// 功能：有本步预测时使用截断后的预测速度，否则沿用上一次下发的速度
// 参数：st-跟驰车状态，res-本步预测，nil表示本步没有预测
// 返回：执行指令与是否需要下发；沿用时不重复下发，仿真器保持上一次设置的速度
// 说明：跟驰车不受安全包络约束
func ArbitrateFollower(st *VehicleState, res *predictor.Result) (Command, bool) {
	if st.Role != RoleFollower {
		log.Panicf("arbitrate follower on %v", st)
	}
	if res != nil {
		return Command{
			VehicleID: st.ID,
			Speed:     res.NextSpeed,
			Source:    SourcePredictor,
			Status:    fmt.Sprintf("LSTM: %.2f m/s", res.NextSpeed),
		}, true
	}
	if v, ok := st.LastSpeed(); ok {
		return Command{
			VehicleID: st.ID,
			Speed:     v,
			Source:    SourceHold,
			Status:    fmt.Sprintf("Hold: %.2f m/s", v),
		}, false
	}
	return Command{VehicleID: st.ID, Source: SourceHold, Status: "Warming Up"}, false
}

// Dispatch 下发指令
// 功能：分别下发速度与变道，速度下发成功后记录为上次下发的速度
// 返回：仿真器返回的错误，两项都失败时合并返回
// 说明：变道的冷却在判定时已经开始计数，因此速度下发失败时仍然下发变道
func Dispatch(sim entity.ISimulator, st *VehicleState, cmd Command) error {
	var speedErr, laneErr error
	if err := sim.SetSpeed(cmd.VehicleID, cmd.Speed); err != nil {
		speedErr = fmt.Errorf("dispatch %v speed: %w", cmd.VehicleID, err)
	} else {
		st.recordDispatch(cmd.Speed)
	}
	if cmd.LaneChange != nil {
		if err := sim.ChangeLane(cmd.VehicleID, cmd.LaneChange.TargetLane, cmd.LaneChange.Duration); err != nil {
			laneErr = fmt.Errorf("dispatch %v lane change: %w", cmd.VehicleID, err)
		}
	}
	return errors.Join(speedErr, laneErr)
}
