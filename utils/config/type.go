package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 功能：定义数据输入路径的配置结构，支持MongoDB与文件两种数据源
// 说明：File优先级高于MongoDB
type InputPath struct {
	DB   string `yaml:"db,omitempty"`   // 数据库名
	Col  string `yaml:"col,omitempty"`  // 集合名
	ID   string `yaml:"id,omitempty"`   // 文档的name字段，为空则取集合中的第一条
	File string `yaml:"file,omitempty"` // 文件路径（优先级高于MongoDB）
}

// GetDb 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// GetColl 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// Empty 是否未配置任何来源
func (p InputPath) Empty() bool {
	return p.File == "" && (p.DB == "" || p.Col == "")
}

// Predictor 轨迹预测器后端配置
// 功能：选择预测器实现
// 说明：linear从权重文件加载，remote通过connect RPC调用外部推理服务
type Predictor struct {
	Backend  string    `yaml:"backend"`            // linear | remote
	Artifact InputPath `yaml:"artifact,omitempty"` // linear权重文件
	Address  string    `yaml:"address,omitempty"`  // remote服务地址（http://host:port）
}

// Input 指定控制器所有输入数据的配置项
type Input struct {
	URI           string    `yaml:"uri,omitempty"` // MongoDB连接字符串
	Normalization InputPath `yaml:"normalization"` // 归一化参数
	Predictor     Predictor `yaml:"predictor"`     // 预测器
}

// ControlStep 指定控制循环时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数，为0时使用默认步数上限
	Interval float64 `yaml:"interval"` // 每步的时间间隔（秒）
}

// Shape 预测器输入输出形状
type Shape struct {
	SeqLength    int  `yaml:"seq_length"`              // 窗口长度N
	PredHorizon  int  `yaml:"pred_horizon"`            // 预测步数H
	NTargets     int  `yaml:"n_targets"`               // 每步预测量个数T
	HorizonIndex *int `yaml:"horizon_index,omitempty"` // 取用的预测步，未设置时预测步数大于1取1，否则取0
	SpeedTarget  *int `yaml:"speed_target,omitempty"`  // 速度所在的列，规则同上
}

// Control 控制循环配置
// 功能：定义时间控制、受控车辆与预测形状
type Control struct {
	Step     ControlStep `yaml:"step"`
	Leader   string      `yaml:"leader"`   // 规则控制车（用户驾驶）
	Follower string      `yaml:"follower"` // 预测控制车
	Shape    Shape       `yaml:"shape"`
}

// Agent 安全包络与速度边界配置
type Agent struct {
	SafeDistance       float64 `yaml:"safe_distance,omitempty"`
	StopDistance       float64 `yaml:"stop_distance,omitempty"`
	FollowRatio        float64 `yaml:"follow_ratio,omitempty"`
	SignalDistance     float64 `yaml:"signal_distance,omitempty"`
	LaneCount          int32   `yaml:"lane_count,omitempty"`
	LaneChangeDuration float64 `yaml:"lane_change_duration,omitempty"`
	Cooldown           int32   `yaml:"cooldown,omitempty"`
	MinSpeed           float64 `yaml:"min_speed,omitempty"`
	MaxSpeed           float64 `yaml:"max_speed,omitempty"`
}

// Traci SUMO TraCI连接配置
type Traci struct {
	Address string   `yaml:"address"`          // host:port
	Binary  string   `yaml:"binary,omitempty"` // 非空时先启动SUMO进程
	Args    []string `yaml:"args,omitempty"`   // 启动参数
	Retries int      `yaml:"retries,omitempty"`
}

// Memory 内置仿真器配置
type Memory struct {
	Seed       uint64       `yaml:"seed"`
	Lanes      int32        `yaml:"lanes"`
	RoadLength float64      `yaml:"road_length"`
	SpeedLimit float64      `yaml:"speed_limit"`
	Signals    []MemSignal  `yaml:"signals,omitempty"`
	Vehicles   []MemVehicle `yaml:"vehicles"`
	SpeedNoise float64      `yaml:"speed_noise,omitempty"`
}

// MemSignal 内置仿真器中的固定相位信号灯
type MemSignal struct {
	ID       string  `yaml:"id"`
	Position float64 `yaml:"position"`
	Green    float64 `yaml:"green"`
	Yellow   float64 `yaml:"yellow"`
	Red      float64 `yaml:"red"`
	Offset   float64 `yaml:"offset,omitempty"`
}

// MemVehicle 内置仿真器中的车辆
type MemVehicle struct {
	ID       string  `yaml:"id"`
	Depart   float64 `yaml:"depart"` // 出发时间（秒）
	Position float64 `yaml:"position"`
	Lane     int32   `yaml:"lane"`
	Speed    float64 `yaml:"speed"`
	MaxSpeed float64 `yaml:"max_speed,omitempty"`
	Length   float64 `yaml:"length,omitempty"`
}

// Simulator 仿真器后端配置
type Simulator struct {
	Backend string  `yaml:"backend"` // memory | traci
	Traci   *Traci  `yaml:"traci,omitempty"`
	Memory  *Memory `yaml:"memory,omitempty"`
}

// ScriptEvent 脚本化用户输入事件
type ScriptEvent struct {
	Step  int32  `yaml:"step"`
	Key   string `yaml:"key"`             // up | down | left | right | quit
	Steps int32  `yaml:"steps,omitempty"` // 按住的步数，默认1
}

// User 用户输入配置
type User struct {
	Source string        `yaml:"source"` // none | script | stdin
	Script []ScriptEvent `yaml:"script,omitempty"`
}

// MQTT 状态发布配置
type MQTT struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Output 输出配置
type Output struct {
	LogInterval int32  `yaml:"log_interval,omitempty"` // 状态日志间隔（步）
	MQTT        *MQTT  `yaml:"mqtt,omitempty"`
	SQLite      string `yaml:"sqlite,omitempty"` // 记录文件路径
}

// Config YAML配置文件的根结构
type Config struct {
	Input     Input     `yaml:"input"`
	Control   Control   `yaml:"control"`
	Agent     Agent     `yaml:"agent,omitempty"`
	Simulator Simulator `yaml:"simulator"`
	User      User      `yaml:"user,omitempty"`
	Output    Output    `yaml:"output,omitempty"`
}
