package safety

import (
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

// 规则名，按叙述优先级从低到高
const (
	reasonCruising = iota
	reasonFollowing
	reasonIntersection
)

// Verdict 安全包络的单步判定结果
// 功能：速度上限、路口阻断标志、状态原因，以及本步放行的变道指令
// 说明：每步重新生成，不持久化
type Verdict struct {
	SpeedCeiling        float64            // 速度上限（米/秒），非负
	IntersectionBlocked bool               // 前方路口信号灯为红/黄且距离过近
	Reason              string             // 触发的最具体的速度规则
	LaneChange          *entity.LaneChange // 放行的变道指令，nil表示本步不变道
	LaneNote            string             // 变道请求的处理结果，仅用于显示

	rank int // 当前Reason的优先级
}

// Status 显示用状态文本
func (v Verdict) Status() string {
	if v.LaneNote == "" {
		return v.Reason
	}
	return v.Reason + " | " + v.LaneNote
}

func (v Verdict) String() string {
	return fmt.Sprintf(
		"Verdict{ceiling=%.2f, blocked=%v, status=%q, lc=%+v}",
		v.SpeedCeiling, v.IntersectionBlocked, v.Status(), v.LaneChange,
	)
}

// tighten 收紧速度上限
// 功能：采用取最小的方式合并规则结果，任何规则都不能放宽之前的上限
// 参数：ceiling-本规则给出的上限，rank-规则优先级，reason-规则原因
// 说明：原因按优先级覆盖，与上限是否真正变小无关
func (v *Verdict) tighten(ceiling float64, rank int, reason string) {
	if ceiling < v.SpeedCeiling {
		v.SpeedCeiling = ceiling
	}
	if rank >= v.rank {
		v.rank = rank
		v.Reason = reason
	}
}
