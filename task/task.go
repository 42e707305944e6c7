package task

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/safedrive-agent/agent"
	"github.com/tsinghua-fib-lab/safedrive-agent/clock"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"github.com/tsinghua-fib-lab/safedrive-agent/safety"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
)

// WaitForServerReady 等待服务器就绪
// 功能：通过HTTP请求检查服务器是否已经启动并可以响应
// 参数：addr-服务器地址，retryCount-重试次数，interval-重试间隔
// 返回：错误信息，如果服务器就绪则返回nil
func WaitForServerReady(addr string, retryCount int, interval time.Duration) error {
	client := &http.Client{
		Timeout: interval,
	}
	for range retryCount {
		resp, err := client.Get(addr)
		if err == nil {
			resp.Body.Close()
			return nil
		}
		time.Sleep(interval)
	}
	return fmt.Errorf("server `%v` did not become ready after %d retries", addr, retryCount)
}

// State 控制循环状态
type State int

const (
	STATE_WAITING_FOR_VEHICLES State = iota // 头车或跟驰车不在仿真中
	STATE_RUNNING                           // 两车都在仿真中，每步执行控制
	STATE_FINISHED                          // 到达步数上限、头车离开或用户退出
)

func (s State) String() string {
	switch s {
	case STATE_WAITING_FOR_VEHICLES:
		return "WAITING_FOR_VEHICLES"
	case STATE_RUNNING:
		return "RUNNING"
	case STATE_FINISHED:
		return "FINISHED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Deps 控制循环的外部依赖
type Deps struct {
	Simulator entity.ISimulator
	Input     entity.IInputSource
	Display   entity.IDisplay
	Gateway   *predictor.Gateway
}

// Context 控制任务上下文
// 功能：包含一次控制任务的所有组件和运行状态
// 说明：所有字段只由运行控制循环的协程访问，closed除外
type Context struct {
	// 任务名
	job string
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，分布式模式下与syncer交互并对外提供RPC，为nil时独立运行
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	// sidecar是否由本上下文启动服务
	serving bool

	// 运行时配置
	runtimeConfig *config.RuntimeConfig

	sim      entity.ISimulator
	input    entity.IInputSource
	display  entity.IDisplay
	gateway  *predictor.Gateway
	envelope *safety.Envelope

	// 受控车辆状态，车辆不在仿真中时为nil
	leader   *agent.VehicleState
	follower *agent.VehicleState

	state  State
	hasRun bool          // 是否进入过RUNNING
	intent entity.Intent // 本步用户意图
}

// NewContext 创建新的控制任务上下文
// 参数：
//   - job: 任务名称
//   - rc: 运行时配置
//   - deps: 仿真器、用户输入、显示与预测网关
//   - sidecar: sidecar实例，为nil时不注册RPC也不与syncer同步
//   - startSidecarServe: 是否启动sidecar服务
func NewContext(
	job string,
	rc *config.RuntimeConfig,
	deps Deps,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	if deps.Simulator == nil || deps.Input == nil || deps.Display == nil || deps.Gateway == nil {
		log.Panicf("task %s: missing dependency %+v", job, deps)
	}
	ctx := &Context{
		job:            job,
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  rc,
		sim:            deps.Simulator,
		input:          deps.Input,
		display:        deps.Display,
		gateway:        deps.Gateway,
		envelope: safety.New(safety.Config{
			SafeDistance:       rc.A.SafeDistance,
			StopDistance:       rc.A.StopDistance,
			FollowRatio:        rc.A.FollowRatio,
			SignalDistance:     rc.A.SignalDistance,
			LaneCount:          rc.A.LaneCount,
			LaneChangeDuration: rc.A.LaneChangeDuration,
		}),
	}
	ctx.clock = clock.New(rc.C.Step)

	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		// sidecar协程，用于提供RPC服务
		if startSidecarServe {
			ctx.serving = true
			go func() {
				err := ctx.sidecar.Serve()
				if err != nil {
					log.Panicf("failed to serve: %v", err)
				}
				ctx.sidecarCloseCh <- struct{}{}
			}()
		}
	}
	return ctx
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// State 当前控制循环状态
func (ctx *Context) State() State {
	return ctx.state
}

// Leader 头车状态，不在仿真中时为nil
func (ctx *Context) Leader() *agent.VehicleState {
	return ctx.leader
}

// Follower 跟驰车状态，不在仿真中时为nil
func (ctx *Context) Follower() *agent.VehicleState {
	return ctx.follower
}

// Stop 请求控制循环在当前步结束后退出，可从其他协程调用
func (ctx *Context) Stop() {
	ctx.closed.Store(true)
}

// Close 关闭仿真器与sidecar
func (ctx *Context) Close() {
	if err := ctx.sim.Close(); err != nil {
		log.Warnf("close simulator: %v", err)
	}
	if ctx.sidecar == nil {
		return
	}
	ctx.sidecar.Close()
	if ctx.serving {
		// wait for graceful stop
		<-ctx.sidecarCloseCh
	}
}
