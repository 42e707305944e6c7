package entity

// 仿真器依赖倒置
// 所有查询均可能因车辆不存在而失败，此时返回包装了ErrVehicleAbsent的错误，
// 调用方应跳过该车辆本步的处理
type ISimulator interface {
	Step() error                         // 推进一个仿真步
	Time() (float64, error)              // 当前仿真时间（秒）
	VehicleIDs() ([]string, error)       // 当前在网车辆ID
	Speed(id string) (float64, error)    // 车速（米/秒）
	Distance(id string) (float64, error) // 出发以来行驶的距离（米）
	Length(id string) (float64, error)   // 车长（米）
	LaneIndex(id string) (int32, error)  // 所在车道编号（最右侧为0）
	// 前车，不存在前车时返回nil
	Leader(id string) (*Leader, error)
	// 前方信号灯列表，顺序由仿真器决定
	NextSignals(id string) ([]Signal, error)

	SetSpeed(id string, v float64) error                            // 设置车速
	ChangeLane(id string, targetLane int32, duration float64) error // 请求变道
	Close() error
}

// 显示模块依赖倒置，只接收状态，不返回任何影响控制的结果
type IDisplay interface {
	Show(status Status)
}

// Intent 用户意图
type Intent struct {
	TargetSpeed float64 // 用户期望速度（米/秒）
	LaneRequest int32   // 变道请求：-1/0/+1
	Quit        bool    // 用户请求退出
}

// 用户输入依赖倒置，每步轮询一次
type IInputSource interface {
	Poll(step int32) Intent
}
