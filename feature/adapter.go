package feature

import (
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

// Adapter 观测适配器
// 功能：把仿真器读数转换为Record，用有限差分计算加速度与加加速度
// 说明：持有上一次观测的速度与加速度，车辆创建后首次调用时二者视为0
type Adapter struct {
	dt        float64 // 差分时间间隔（秒）
	prevSpeed float64 // 上一次观测的速度
	prevAcc   float64 // 上一次观测的加速度
}

// NewAdapter 创建观测适配器
// 参数：dt-仿真步长（秒），必须为正
func NewAdapter(dt float64) *Adapter {
	if dt <= 0 {
		log.Panicf("adapter: dt must be positive, got %v", dt)
	}
	return &Adapter{dt: dt}
}

// Observe 读取一步观测
// 功能：从仿真器读取车辆的位置、速度、车长与仿真时间，生成Record
// 参数：sim-仿真器，id-车辆ID
// 返回：特征记录；车辆不存在时返回包装了entity.ErrVehicleAbsent的错误，
// 其他查询失败返回包装了entity.ErrSensing的错误
// 算法说明：
// 1. 先完成全部查询，任何一项失败都直接返回，不修改内部状态
// 2. acc = (v - prevV) / dt，jerk = (acc - prevAcc) / dt
// 3. 更新prevV与prevAcc
func (a *Adapter) Observe(sim entity.ISimulator, id string) (Record, error) {
	pos, err := sim.Distance(id)
	if err != nil {
		return Record{}, wrap(id, err)
	}
	v, err := sim.Speed(id)
	if err != nil {
		return Record{}, wrap(id, err)
	}
	length, err := sim.Length(id)
	if err != nil {
		return Record{}, wrap(id, err)
	}
	t, err := sim.Time()
	if err != nil {
		return Record{}, fmt.Errorf("observe %v: %w: %w", id, entity.ErrSensing, err)
	}
	return a.Update(pos, v, length, t), nil
}

// Update 用一组原始读数推进差分状态
// 说明：Observe的纯计算部分，便于离线回放
func (a *Adapter) Update(pos, v, length, t float64) Record {
	acc := (v - a.prevSpeed) / a.dt
	jerk := (acc - a.prevAcc) / a.dt
	a.prevSpeed = v
	a.prevAcc = acc
	return Record{
		Position:     pos,
		Speed:        v,
		Acceleration: acc,
		Jerk:         jerk,
		Length:       length,
		T:            t,
	}
}

// Prev 返回当前保存的上一步速度与加速度
func (a *Adapter) Prev() (speed, acc float64) {
	return a.prevSpeed, a.prevAcc
}

func wrap(id string, err error) error {
	if errors.Is(err, entity.ErrVehicleAbsent) {
		return fmt.Errorf("observe %v: %w", id, err)
	}
	return fmt.Errorf("observe %v: %w: %w", id, entity.ErrSensing, err)
}
