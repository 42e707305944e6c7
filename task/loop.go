package task

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safedrive-agent/agent"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"github.com/tsinghua-fib-lab/safedrive-agent/safety"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils"
)

const (
	SelfName = "safedrive" // 本程序在模拟任务集群中的名字

	waitingLogInterval = 100 // 等待车辆日志间隔步数
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 功能：推进仿真器与时钟，轮询用户输入，并根据车辆是否在网更新状态
// 返回：仿真器推进失败时返回错误
// 算法说明：
// 1. 推进仿真器一步，更新时钟，定期输出心跳日志
// 2. 轮询一次用户输入
// 3. 查询在网车辆：车辆出现时创建状态，离开时销毁
// 4. 头车在运行后离开则结束；两车任一不在网则等待
func (ctx *Context) prepare() error {
	if err := ctx.sim.Step(); err != nil {
		return fmt.Errorf("simulator step %d: %w", ctx.clock.Step, err)
	}
	ctx.clock.Tick()
	if *heartBeatInterval > 0 && ctx.clock.Step%int32(*heartBeatInterval) == 0 {
		log.Infof("STEP: %d(%v) state=%v", ctx.clock.Step, ctx.clock, ctx.state)
	}

	ctx.intent = ctx.input.Poll(ctx.clock.Step)
	if ctx.intent.Quit {
		log.Info("user requested quit")
		ctx.state = STATE_FINISHED
		return nil
	}

	ids, err := ctx.sim.VehicleIDs()
	if err != nil {
		// 本步无法确认车辆是否在网，跳过控制
		log.Warnf("step %d: %v", ctx.clock.Step, err)
		ctx.state = STATE_WAITING_FOR_VEHICLES
		return nil
	}
	c := ctx.runtimeConfig
	missing := utils.Missing(ids, c.C.Leader, c.C.Follower)
	leaderIn := !lo.Contains(missing, c.C.Leader)
	followerIn := !lo.Contains(missing, c.C.Follower)

	switch {
	case leaderIn && ctx.leader == nil:
		ctx.leader = agent.NewLeaderState(c.C.Leader, ctx.clock.DT, int(c.A.Cooldown))
		log.Infof("leader %s appeared at step %d", c.C.Leader, ctx.clock.Step)
	case !leaderIn && ctx.leader != nil:
		ctx.leader = nil
		log.Infof("leader %s left at step %d", c.C.Leader, ctx.clock.Step)
	}
	switch {
	case followerIn && ctx.follower == nil:
		ctx.follower = agent.NewFollowerState(c.C.Follower, ctx.clock.DT, c.C.Shape.SeqLength)
		log.Infof("follower %s appeared at step %d", c.C.Follower, ctx.clock.Step)
	case !followerIn && ctx.follower != nil:
		ctx.follower = nil
		log.Infof("follower %s left at step %d", c.C.Follower, ctx.clock.Step)
	}

	switch {
	case ctx.hasRun && !leaderIn:
		log.Info("leader vehicle exited network")
		ctx.state = STATE_FINISHED
	case leaderIn && followerIn:
		if !ctx.hasRun {
			log.Infof("both vehicles present, start control at step %d", ctx.clock.Step)
		}
		ctx.state = STATE_RUNNING
		ctx.hasRun = true
	default:
		ctx.state = STATE_WAITING_FOR_VEHICLES
		if elapsed := ctx.clock.Elapsed(); elapsed > waitingLogInterval && elapsed%waitingLogInterval == 0 {
			log.Infof("waiting for vehicles %v... step %d", missing, ctx.clock.Step)
		}
	}
	return nil
}

// update 控制阶段，仅在RUNNING状态下每步执行一次
// 功能：观测两车、更新跟驰车窗口、计算头车安全包络、仲裁并下发指令，最后输出状态
// 说明：任一车辆观测失败只跳过该车辆本步的控制，循环继续
func (ctx *Context) update(rctx context.Context) {
	status := entity.Status{
		Step:           ctx.clock.Step,
		T:              ctx.clock.T,
		RequestedSpeed: ctx.intent.TargetSpeed,
		ActuatedSpeed:  -1,
		FollowerSpeed:  -1,
	}
	if t, err := ctx.sim.Time(); err == nil {
		status.T = t
	}

	// 观测两车
	leaderRec, leaderErr := ctx.leader.Adapter.Observe(ctx.sim, ctx.leader.ID)
	if leaderErr != nil {
		log.Debugf("step %d: skip leader: %v", ctx.clock.Step, leaderErr)
		status.Text = "Sensing Failure"
	} else {
		status.Acceleration = leaderRec.Acceleration
		status.Jerk = leaderRec.Jerk
	}
	rec, followerErr := ctx.follower.Adapter.Observe(ctx.sim, ctx.follower.ID)
	if followerErr != nil {
		log.Debugf("step %d: skip follower: %v", ctx.clock.Step, followerErr)
		status.FollowerText = "Sensing Failure"
	} else {
		// 更新跟驰车窗口
		ctx.follower.Window.Push(rec)
	}

	// 头车安全包络
	var verdict *safety.Verdict
	if leaderErr == nil {
		v, err := ctx.envelope.Step(ctx.sim, ctx.leader.ID, safety.Request{
			TargetSpeed: ctx.intent.TargetSpeed,
			LaneRequest: ctx.intent.LaneRequest,
		}, ctx.leader.Cooldown)
		if err != nil {
			log.Debugf("step %d: no verdict for leader: %v", ctx.clock.Step, err)
			status.Text = "Sensing Failure"
		} else {
			verdict = &v
		}
	}

	// 仲裁
	var leaderCmd, followerCmd *agent.Command
	if verdict != nil {
		cmd := agent.ArbitrateLeader(ctx.leader, verdict)
		leaderCmd = &cmd
	}
	if followerErr == nil {
		var res *predictor.Result
		r, err := ctx.gateway.Predict(rctx, ctx.follower.Window)
		switch {
		case err == nil:
			res = &r
		case errors.Is(err, predictor.ErrNotReady):
		default:
			log.Warnf("step %d: %v", ctx.clock.Step, err)
		}
		cmd, dispatch := agent.ArbitrateFollower(ctx.follower, res)
		status.FollowerText = cmd.Status
		if dispatch {
			followerCmd = &cmd
		} else if v, ok := ctx.follower.LastSpeed(); ok {
			status.FollowerSpeed = v
		}
	}

	// 下发
	if leaderCmd != nil {
		if err := agent.Dispatch(ctx.sim, ctx.leader, *leaderCmd); err != nil {
			log.Warnf("step %d: %v", ctx.clock.Step, err)
			status.Text = leaderCmd.Status + " | Dispatch Failed"
		} else {
			status.Text = leaderCmd.Status
			status.ActuatedSpeed = leaderCmd.Speed
		}
	}
	if followerCmd != nil {
		if err := agent.Dispatch(ctx.sim, ctx.follower, *followerCmd); err != nil {
			log.Warnf("step %d: %v", ctx.clock.Step, err)
		} else {
			status.FollowerSpeed = followerCmd.Speed
		}
	}

	ctx.display.Show(status)
}

// Run 运行控制循环
// 功能：逐步执行prepare与update，直到结束、上下文取消或收到关闭指令
// 返回：仿真器推进失败时返回错误，其余情况返回nil
func (ctx *Context) Run(rctx context.Context) error {
	ctx.clock.Init()
	ctx.state = STATE_WAITING_FOR_VEHICLES
	if ctx.sidecar != nil {
		// init syncer
		ctx.sidecar.Step(false)
	}
	defer ctx.Close()

	for !ctx.clock.Done() {
		if err := rctx.Err(); err != nil {
			log.Infof("stopped at step %d: %v", ctx.clock.Step, err)
			return nil
		}
		if err := ctx.prepare(); err != nil {
			ctx.state = STATE_FINISHED
			return err
		}
		if ctx.sidecar != nil {
			ctx.sidecar.NotifyStepReady()
		}
		if ctx.state == STATE_FINISHED {
			break
		}
		if ctx.state == STATE_RUNNING {
			ctx.update(rctx)
		}
		close := false
		if ctx.sidecar != nil {
			close = ctx.sidecar.Step(ctx.clock.Step+1 >= ctx.clock.END_STEP)
		}
		if close || ctx.closed.Load() {
			break
		}
	}
	ctx.state = STATE_FINISHED
	log.Infof("control loop complete at step %d", ctx.clock.Step)
	return nil
}
