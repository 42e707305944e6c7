package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"gopkg.in/yaml.v2"
)

const (
	// 默认步数上限
	DEFAULT_TOTAL_STEPS = 3600
	// 默认步长（秒）
	DEFAULT_INTERVAL = 0.1
	// 默认换道冷却步数
	DEFAULT_COOLDOWN = 50
	// 默认状态日志间隔
	DEFAULT_LOG_INTERVAL = 10

	ENV_MONGO_URI     = "SAFEDRIVE_MONGO_URI"
	ENV_MQTT_PASSWORD = "SAFEDRIVE_MQTT_PASSWORD"
)

// RuntimeConfig 运行时配置
// 功能：存储补全默认值并校验后的配置
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
	A   Agent   // 安全包络配置
}

// Parse 解析YAML配置
// 说明：使用严格模式，未知字段视为错误
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return c, fmt.Errorf("%w: parse config: %v", entity.ErrConfiguration, err)
	}
	return c, nil
}

// LoadEnv 读取.env文件并用环境变量覆盖配置中的密钥
// 参数：config-待覆盖的配置，files-.env文件列表，为空时读取当前目录下的.env
// 说明：.env文件不存在不是错误
func LoadEnv(config *Config, files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warnf("failed to load env file %s: %v", f, err)
		}
	}
	if uri := os.Getenv(ENV_MONGO_URI); uri != "" {
		config.Input.URI = uri
	}
	if pw := os.Getenv(ENV_MQTT_PASSWORD); pw != "" && config.Output.MQTT != nil {
		config.Output.MQTT.Password = pw
	}
}

// NewRuntimeConfig 根据配置初始化运行时配置
// 功能：补全默认值并校验
// 参数：config-原始配置对象
// 返回：运行时配置指针；配置无效时返回包装了entity.ErrConfiguration的错误
func NewRuntimeConfig(config Config) (*RuntimeConfig, error) {
	step := &config.Control.Step
	if step.Interval == 0 {
		step.Interval = DEFAULT_INTERVAL
	}
	if step.Total == 0 {
		step.Total = DEFAULT_TOTAL_STEPS
	}
	shape := &config.Control.Shape
	if shape.HorizonIndex == nil {
		shape.HorizonIndex = lo.ToPtr(lo.Ternary(shape.PredHorizon > 1, 1, 0))
	}
	if shape.SpeedTarget == nil {
		shape.SpeedTarget = lo.ToPtr(lo.Ternary(shape.NTargets > 1, 1, 0))
	}
	a := &config.Agent
	if a.SafeDistance == 0 {
		a.SafeDistance = 15
	}
	if a.StopDistance == 0 {
		a.StopDistance = 5
	}
	if a.FollowRatio == 0 {
		a.FollowRatio = 0.9
	}
	if a.SignalDistance == 0 {
		a.SignalDistance = 40
	}
	if a.LaneCount == 0 {
		a.LaneCount = 3
	}
	if a.LaneChangeDuration == 0 {
		a.LaneChangeDuration = 2
	}
	if a.Cooldown == 0 {
		a.Cooldown = DEFAULT_COOLDOWN
	}
	if a.MaxSpeed == 0 {
		a.MaxSpeed = entity.SPEED_MAX
	}
	if config.Output.LogInterval == 0 {
		config.Output.LogInterval = DEFAULT_LOG_INTERVAL
	}
	if config.User.Source == "" {
		config.User.Source = "none"
	}
	if config.Input.Predictor.Backend == "" {
		config.Input.Predictor.Backend = "linear"
	}
	if config.Simulator.Backend == "" {
		config.Simulator.Backend = "memory"
	}

	if err := validate(config); err != nil {
		return nil, err
	}
	return &RuntimeConfig{
		All: config,
		C:   config.Control,
		A:   config.Agent,
	}, nil
}

func validate(c Config) error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", entity.ErrConfiguration, fmt.Sprintf(format, args...))
	}
	if c.Control.Step.Interval < 0 || c.Control.Step.Total < 0 || c.Control.Step.Start < 0 {
		return bad("invalid control.step %+v", c.Control.Step)
	}
	if c.Control.Leader == "" || c.Control.Follower == "" {
		return bad("control.leader and control.follower must be set")
	}
	if c.Control.Leader == c.Control.Follower {
		return bad("control.leader and control.follower must differ")
	}
	s := c.Control.Shape
	if s.SeqLength <= 0 || s.PredHorizon <= 0 || s.NTargets <= 0 {
		return bad("invalid control.shape %+v", s)
	}
	if *s.HorizonIndex < 0 || *s.HorizonIndex >= s.PredHorizon {
		return bad("horizon_index %d out of range [0, %d)", *s.HorizonIndex, s.PredHorizon)
	}
	if *s.SpeedTarget < 0 || *s.SpeedTarget >= s.NTargets {
		return bad("speed_target %d out of range [0, %d)", *s.SpeedTarget, s.NTargets)
	}
	if c.Agent.StopDistance > c.Agent.SafeDistance {
		return bad("stop_distance %v greater than safe_distance %v", c.Agent.StopDistance, c.Agent.SafeDistance)
	}
	if c.Agent.Cooldown < 0 || c.Agent.LaneCount < 1 {
		return bad("invalid agent %+v", c.Agent)
	}
	if c.Agent.MinSpeed < entity.SPEED_MIN || c.Agent.MaxSpeed > entity.SPEED_MAX || c.Agent.MinSpeed > c.Agent.MaxSpeed {
		return bad("speed bounds [%v, %v] outside [%v, %v]", c.Agent.MinSpeed, c.Agent.MaxSpeed, entity.SPEED_MIN, entity.SPEED_MAX)
	}
	if c.Input.Normalization.Empty() {
		return bad("input.normalization needs a file or db/col")
	}
	switch c.Input.Predictor.Backend {
	case "linear":
		if c.Input.Predictor.Artifact.Empty() {
			return bad("linear predictor needs an artifact")
		}
	case "remote":
		if c.Input.Predictor.Address == "" {
			return bad("remote predictor needs an address")
		}
	default:
		return bad("unknown predictor backend %q", c.Input.Predictor.Backend)
	}
	fromMongo := c.Input.Normalization.File == "" ||
		(c.Input.Predictor.Backend == "linear" && c.Input.Predictor.Artifact.File == "")
	if fromMongo && c.Input.URI == "" {
		return bad("input.uri is required when loading from MongoDB")
	}
	switch c.Simulator.Backend {
	case "memory":
		if c.Simulator.Memory == nil {
			return bad("simulator.memory must be set for the memory backend")
		}
	case "traci":
		if c.Simulator.Traci == nil || c.Simulator.Traci.Address == "" {
			return bad("simulator.traci.address must be set for the traci backend")
		}
	default:
		return bad("unknown simulator backend %q", c.Simulator.Backend)
	}
	switch c.User.Source {
	case "none", "script", "stdin":
	default:
		return bad("unknown user source %q", c.User.Source)
	}
	if c.Output.MQTT != nil && (c.Output.MQTT.Broker == "" || c.Output.MQTT.Topic == "") {
		return bad("output.mqtt needs broker and topic")
	}
	return nil
}
