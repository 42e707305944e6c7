package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/normalize"
	"gonum.org/v1/gonum/mat"
)

// ErrNotReady 窗口未满，不允许请求预测
var ErrNotReady = errors.New("window not ready")

// Predictor 预测器依赖倒置
// 功能：输入N×F的模型空间窗口，输出H×T的模型空间预测序列
// 说明：预测器不保存跨调用的状态，可在测试中用桩替换
type Predictor interface {
	Predict(ctx context.Context, window *mat.Dense) (*mat.Dense, error)
}

// Shape 预测器输入输出的形状
type Shape struct {
	SeqLength int // 输入窗口长度N
	Features  int // 输入特征数F
	Horizon   int // 预测步数H
	Targets   int // 每步预测目标数T
}

// GatewayOption 网关配置
type GatewayOption struct {
	HorizonIndex int     // 使用的预测步下标
	SpeedTarget  int     // 速度所在的目标列
	MinSpeed     float64 // 下发速度下限（米/秒）
	MaxSpeed     float64 // 下发速度上限（米/秒）
}

// Result 一次预测的结果
type Result struct {
	Horizon   *mat.Dense // 物理单位的H×T预测序列
	RawSpeed  float64    // 截断前的预测速度
	NextSpeed float64    // 截断到[MinSpeed, MaxSpeed]后的预测速度
}

// Gateway 预测网关
// 功能：隔离预测器的数值表示，对外只暴露物理单位的结果
// 说明：预测器是统计模型，没有安全义务，网关负责校验输出形状并截断速度
type Gateway struct {
	model Predictor
	norm  *normalize.Normalizer
	shape Shape
	opt   GatewayOption

	calls int // 已调用预测器的次数
}

// NewGateway 创建预测网关
// 参数：model-预测器，norm-归一化器，shape-预测器形状，opt-网关配置
// 返回：网关指针，配置不一致时返回包装了entity.ErrConfiguration的错误
func NewGateway(model Predictor, norm *normalize.Normalizer, shape Shape, opt GatewayOption) (*Gateway, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil predictor", entity.ErrConfiguration)
	}
	if norm.Features() != shape.Features || norm.Targets() != shape.Targets {
		return nil, fmt.Errorf(
			"%w: normalization has %d features/%d targets, predictor expects %d/%d",
			entity.ErrConfiguration, norm.Features(), norm.Targets(), shape.Features, shape.Targets,
		)
	}
	if opt.HorizonIndex < 0 || opt.HorizonIndex >= shape.Horizon {
		return nil, fmt.Errorf("%w: horizon index %d out of [0, %d)", entity.ErrConfiguration, opt.HorizonIndex, shape.Horizon)
	}
	if opt.SpeedTarget < 0 || opt.SpeedTarget >= shape.Targets {
		return nil, fmt.Errorf("%w: speed target %d out of [0, %d)", entity.ErrConfiguration, opt.SpeedTarget, shape.Targets)
	}
	if opt.MinSpeed < entity.SPEED_MIN || opt.MaxSpeed > entity.SPEED_MAX || opt.MinSpeed > opt.MaxSpeed {
		return nil, fmt.Errorf("%w: speed range [%v, %v]", entity.ErrConfiguration, opt.MinSpeed, opt.MaxSpeed)
	}
	return &Gateway{model: model, norm: norm, shape: shape, opt: opt}, nil
}

// Calls 已调用预测器的次数
func (g *Gateway) Calls() int {
	return g.calls
}

// Predict 对就绪窗口进行一次预测
// 功能：归一化窗口、调用预测器、反归一化并选出下一目标速度
// 参数：ctx-上下文，w-输入窗口
// 返回：预测结果；窗口未满返回ErrNotReady且不调用预测器；
// 预测器失败或输出形状不对返回包装了entity.ErrPrediction的错误
// 算法说明：
// 1. 窗口必须就绪且长度等于预测器的SeqLength
// 2. 将窗口批量映射为N×F模型输入矩阵，调用一次预测器
// 3. 校验输出为H×T且不含NaN/Inf
// 4. 反归一化后取[HorizonIndex][SpeedTarget]，截断到[MinSpeed, MaxSpeed]
func (g *Gateway) Predict(ctx context.Context, w *feature.Window) (Result, error) {
	if !w.Ready() {
		return Result{}, ErrNotReady
	}
	if w.Cap() != g.shape.SeqLength {
		log.Panicf("gateway: window length %d mismatches predictor sequence length %d", w.Cap(), g.shape.SeqLength)
	}
	in := g.norm.WindowToModel(w.Snapshot())
	g.calls++
	out, err := g.model.Predict(ctx, in)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", entity.ErrPrediction, err)
	}
	if out == nil {
		return Result{}, fmt.Errorf("%w: empty output", entity.ErrPrediction)
	}
	if r, c := out.Dims(); r != g.shape.Horizon || c != g.shape.Targets {
		return Result{}, fmt.Errorf("%w: output shape %dx%d, expect %dx%d", entity.ErrPrediction, r, c, g.shape.Horizon, g.shape.Targets)
	}
	horizon := g.norm.HorizonFromModel(out)
	raw := horizon.At(g.opt.HorizonIndex, g.opt.SpeedTarget)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return Result{}, fmt.Errorf("%w: non-finite speed %v", entity.ErrPrediction, raw)
	}
	return Result{
		Horizon:   horizon,
		RawSpeed:  raw,
		NextSpeed: lo.Clamp(raw, g.opt.MinSpeed, g.opt.MaxSpeed),
	}, nil
}
