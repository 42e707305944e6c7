package feature

import "fmt"

// 特征列顺序，与预测模型训练时的输入列一致
const (
	COL_POSITION = iota
	COL_SPEED
	COL_ACCELERATION
	COL_JERK
	COL_LENGTH
	COL_TIME

	N_FEATURES
)

// Record 单步运动学特征
// 功能：由Adapter在每一步根据仿真器读数生成，作为预测器输入窗口的一行
// 说明：值类型，生成后不再修改
type Record struct {
	Position     float64 // 出发以来行驶距离（米）
	Speed        float64 // 速度（米/秒）
	Acceleration float64 // 加速度（米/秒²）
	Jerk         float64 // 加加速度（米/秒³）
	Length       float64 // 车长（米）
	T            float64 // 仿真时间（秒）
}

// Values 按特征列顺序展开
func (r Record) Values() []float64 {
	return []float64{r.Position, r.Speed, r.Acceleration, r.Jerk, r.Length, r.T}
}

// FromValues 按特征列顺序构造Record
func FromValues(v []float64) Record {
	if len(v) != N_FEATURES {
		log.Panicf("feature: expect %d values, got %d", N_FEATURES, len(v))
	}
	return Record{
		Position:     v[COL_POSITION],
		Speed:        v[COL_SPEED],
		Acceleration: v[COL_ACCELERATION],
		Jerk:         v[COL_JERK],
		Length:       v[COL_LENGTH],
		T:            v[COL_TIME],
	}
}

func (r Record) String() string {
	return fmt.Sprintf(
		"Record{s=%.2f, v=%.2f, a=%.2f, j=%.2f, l=%.2f, t=%.1f}",
		r.Position, r.Speed, r.Acceleration, r.Jerk, r.Length, r.T,
	)
}
