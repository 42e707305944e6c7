package entity

import (
	"errors"
	"fmt"
)

// 车道方向常量，与变道请求的取值一致
const (
	LANE_RIGHT = -1 // 向右变道（车道编号减小）
	LANE_KEEP  = 0  // 保持车道
	LANE_LEFT  = 1  // 向左变道（车道编号增大）
)

// 下发速度的物理范围（米/秒），任何配置都不能放宽
const (
	SPEED_MIN = 0.0
	SPEED_MAX = 30.0
)

// 错误分类
// 功能：区分可降级的瞬时错误与必须中止运行的错误
// 说明：调用方使用errors.Is判断类别，具体原因通过%w包装保留
var (
	ErrVehicleAbsent = errors.New("vehicle absent")        // 车辆当前不在仿真中（未出发或已到达）
	ErrSensing       = errors.New("sensing failure")       // 仿真器查询失败
	ErrPrediction    = errors.New("prediction failure")    // 预测器调用失败或输出形状不正确
	ErrConfiguration = errors.New("configuration failure") // 启动时配置或模型文件缺失、不可读
)

// Leader 前车信息
// 功能：描述本车所在车道上最近的前方车辆
type Leader struct {
	ID  string  // 前车ID
	Gap float64 // 与前车的净距离（米）
}

// Signal 前方信号灯信息
// 功能：对应仿真器next TLS查询的一项结果
type Signal struct {
	ID       string  // 信号灯ID
	Index    int32   // 控制本车道的信号灯链路索引
	Distance float64 // 距离（米）
	State    byte    // 状态字符，r/y/g（大小写均可能出现）
}

func (s Signal) String() string {
	return fmt.Sprintf("Signal{ID=%v, Index=%v, Distance=%.1f, State=%c}", s.ID, s.Index, s.Distance, s.State)
}

// LaneChange 变道指令
type LaneChange struct {
	TargetLane int32   // 目标车道编号
	Duration   float64 // 变道持续时间（秒）
}

// Status 每步输出给显示模块的状态
// 功能：显示模块被动渲染的数据，不会反馈到控制决策中
type Status struct {
	Step           int32   // 当前步数
	T              float64 // 仿真时间（秒）
	RequestedSpeed float64 // 用户请求速度（米/秒）
	ActuatedSpeed  float64 // 实际下发给头车的安全速度（米/秒）
	Acceleration   float64 // 头车加速度（米/秒²）
	Jerk           float64 // 头车加加速度（米/秒³）
	FollowerSpeed  float64 // 下发给跟驰车的预测速度（米/秒），无则为负
	Text           string  // 头车状态文本
	FollowerText   string  // 跟驰车状态文本
}
