package memsim

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/randengine"
)

var _ entity.ISimulator = (*Sim)(nil)

// Sim 进程内的多车道直路仿真器
// 功能：车辆按出发时间进入道路，未被外部控制的车辆使用IDM跟车并在红黄灯前停车，驶出道路末端即到达
// 说明：每步先根据上一步的快照计算所有车辆的新速度，再统一移动，车辆更新顺序不影响结果
type Sim struct {
	dt         float64
	lanes      int32
	roadLength float64
	speedLimit float64
	speedNoise float64

	t        float64
	pending  []*vehicle // 尚未出发，按出发时间排序
	departAt map[string]float64
	active   map[string]*vehicle
	signals  []*signal
	rng      *randengine.Engine
	closed   bool
}

// New 根据配置创建仿真器
// 参数：c-仿真器配置，dt-步长（秒）
// 返回：配置无效时返回包装了entity.ErrConfiguration的错误
func New(c config.Memory, dt float64) (*Sim, error) {
	if dt <= 0 || c.RoadLength <= 0 || c.SpeedLimit <= 0 {
		return nil, fmt.Errorf("%w: invalid memory simulator dt=%v road_length=%v speed_limit=%v",
			entity.ErrConfiguration, dt, c.RoadLength, c.SpeedLimit)
	}
	lanes := c.Lanes
	if lanes <= 0 {
		lanes = 1
	}
	s := &Sim{
		dt:         dt,
		lanes:      lanes,
		roadLength: c.RoadLength,
		speedLimit: c.SpeedLimit,
		speedNoise: c.SpeedNoise,
		departAt:   make(map[string]float64),
		active:     make(map[string]*vehicle),
		rng:        randengine.New(c.Seed),
	}
	for _, vc := range c.Vehicles {
		if _, ok := s.departAt[vc.ID]; ok || vc.ID == "" {
			return nil, fmt.Errorf("%w: duplicated or empty vehicle id %q", entity.ErrConfiguration, vc.ID)
		}
		if vc.Lane < 0 || vc.Lane >= lanes {
			return nil, fmt.Errorf("%w: vehicle %s lane %d out of range", entity.ErrConfiguration, vc.ID, vc.Lane)
		}
		v := &vehicle{
			id:          vc.ID,
			length:      lo.Ternary(vc.Length > 0, vc.Length, DEFAULT_LENGTH),
			maxV:        lo.Ternary(vc.MaxSpeed > 0, vc.MaxSpeed, c.SpeedLimit),
			x:           vc.Position,
			v:           vc.Speed,
			lane:        vc.Lane,
			command:     -1,
			pendingLane: -1,
		}
		s.departAt[vc.ID] = vc.Depart
		s.pending = append(s.pending, v)
	}
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.departAt[s.pending[i].id] < s.departAt[s.pending[j].id]
	})
	for _, sc := range c.Signals {
		s.signals = append(s.signals, newSignal(sc))
	}
	sort.Slice(s.signals, func(i, j int) bool {
		return s.signals[i].position < s.signals[j].position
	})
	return s, nil
}

// Step 推进一个仿真步
// 算法说明：
// 1. 出发时间已到的车辆进入道路
// 2. 根据快照计算每辆车的新速度（前车或红黄灯停止线作为障碍）
// 3. 统一移动车辆，更新信号灯
// 4. 驶出道路末端的车辆到达并移除
func (s *Sim) Step() error {
	if s.closed {
		return fmt.Errorf("%w: simulator closed", entity.ErrSensing)
	}
	s.t += s.dt
	for len(s.pending) > 0 && s.departAt[s.pending[0].id] <= s.t {
		v := s.pending[0]
		s.pending = s.pending[1:]
		s.active[v.id] = v
		log.Debugf("vehicle %s departed at %.1f", v.id, s.t)
	}
	for _, id := range s.sortedIDs() {
		v := s.active[id]
		aheadV, gap := 0.0, mathutil.INF
		if l := s.leaderOf(v); l != nil {
			aheadV, gap = l.v, l.x-l.length-v.x
		}
		if sg := s.nextSignal(v); sg != nil && sg.blocking() {
			if d := sg.position - v.x; d < gap {
				aheadV, gap = 0, d
			}
		}
		v.plan(aheadV, gap, s.speedLimit, s.dt, s.rng.Noise(s.speedNoise)*s.dt)
	}
	for _, id := range s.sortedIDs() {
		v := s.active[id]
		v.move(s.dt)
		if v.x > s.roadLength {
			delete(s.active, id)
			log.Debugf("vehicle %s arrived at %.1f", id, s.t)
		}
	}
	for _, sg := range s.signals {
		sg.update(s.dt)
	}
	return nil
}

// sortedIDs 在网车辆ID，按字典序
func (s *Sim) sortedIDs() []string {
	ids := lo.Keys(s.active)
	sort.Strings(ids)
	return ids
}

// leaderOf 同车道最近的前车
func (s *Sim) leaderOf(v *vehicle) *vehicle {
	var leader *vehicle
	for _, o := range s.active {
		if o == v || o.lane != v.lane || o.x <= v.x {
			continue
		}
		if leader == nil || o.x < leader.x {
			leader = o
		}
	}
	return leader
}

// nextSignal 前方最近的信号灯
func (s *Sim) nextSignal(v *vehicle) *signal {
	for _, sg := range s.signals {
		if sg.position > v.x {
			return sg
		}
	}
	return nil
}

func (s *Sim) get(id string) (*vehicle, error) {
	if v, ok := s.active[id]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrVehicleAbsent, id)
}

func (s *Sim) Time() (float64, error) {
	return s.t, nil
}

func (s *Sim) VehicleIDs() ([]string, error) {
	return s.sortedIDs(), nil
}

func (s *Sim) Speed(id string) (float64, error) {
	v, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return v.v, nil
}

func (s *Sim) Distance(id string) (float64, error) {
	v, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return v.distance, nil
}

func (s *Sim) Length(id string) (float64, error) {
	v, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return v.length, nil
}

func (s *Sim) LaneIndex(id string) (int32, error) {
	v, err := s.get(id)
	if err != nil {
		return 0, err
	}
	return v.lane, nil
}

func (s *Sim) Leader(id string) (*entity.Leader, error) {
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	l := s.leaderOf(v)
	if l == nil {
		return nil, nil
	}
	return &entity.Leader{ID: l.id, Gap: l.x - l.length - v.x}, nil
}

func (s *Sim) NextSignals(id string) ([]entity.Signal, error) {
	v, err := s.get(id)
	if err != nil {
		return nil, err
	}
	res := make([]entity.Signal, 0, len(s.signals))
	for _, sg := range s.signals {
		if sg.position <= v.x {
			continue
		}
		res = append(res, entity.Signal{
			ID:       sg.id,
			Index:    v.lane,
			Distance: sg.position - v.x,
			State:    sg.stateChar(),
		})
	}
	return res, nil
}

// SetSpeed 设置车速，之后车辆不再由跟车模型控制
// 说明：新速度在下一步按车辆的加减速能力逼近，负值恢复跟车模型控制
func (s *Sim) SetSpeed(id string, speed float64) error {
	v, err := s.get(id)
	if err != nil {
		return err
	}
	v.command = speed
	return nil
}

// ChangeLane 请求变道，在下一步生效
// 说明：没有自主换道行为，持续时间只做合法性检查
func (s *Sim) ChangeLane(id string, targetLane int32, duration float64) error {
	v, err := s.get(id)
	if err != nil {
		return err
	}
	if targetLane < 0 || targetLane >= s.lanes || duration < 0 {
		return fmt.Errorf("%w: invalid lane change of %s to %d", entity.ErrSensing, id, targetLane)
	}
	v.pendingLane = targetLane
	return nil
}

// Lanes 车道数
func (s *Sim) Lanes() int32 {
	return s.lanes
}

func (s *Sim) Close() error {
	s.closed = true
	return nil
}
