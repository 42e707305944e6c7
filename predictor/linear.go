package predictor

import (
	"context"
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"gonum.org/v1/gonum/mat"
)

// LinearArtifact 线性预测模型文件
// 功能：离线训练得到的线性回归权重，按行展开
// 说明：Weights为(H*T)×(N*F)，输入窗口按行展开后与之相乘，再加上Bias
type LinearArtifact struct {
	SeqLength   int         `json:"seq_length" bson:"seq_length"`
	NFeatures   int         `json:"n_features" bson:"n_features"`
	PredHorizon int         `json:"pred_horizon" bson:"pred_horizon"`
	NTargets    int         `json:"n_targets" bson:"n_targets"`
	Weights     [][]float64 `json:"weights" bson:"weights"`
	Bias        []float64   `json:"bias" bson:"bias"`
}

// Linear 进程内线性预测器
type Linear struct {
	shape Shape
	w     *mat.Dense
	b     *mat.VecDense
}

// NewLinear 根据模型文件创建线性预测器
// 返回：预测器指针，维度不一致时返回包装了entity.ErrConfiguration的错误
func NewLinear(a LinearArtifact) (*Linear, error) {
	shape := Shape{
		SeqLength: a.SeqLength,
		Features:  a.NFeatures,
		Horizon:   a.PredHorizon,
		Targets:   a.NTargets,
	}
	in := shape.SeqLength * shape.Features
	out := shape.Horizon * shape.Targets
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("%w: linear model shape %+v", entity.ErrConfiguration, shape)
	}
	if len(a.Weights) != out {
		return nil, fmt.Errorf("%w: linear model has %d weight rows, expect %d", entity.ErrConfiguration, len(a.Weights), out)
	}
	if len(a.Bias) != out {
		return nil, fmt.Errorf("%w: linear model has %d bias values, expect %d", entity.ErrConfiguration, len(a.Bias), out)
	}
	w := mat.NewDense(out, in, nil)
	for i, row := range a.Weights {
		if len(row) != in {
			return nil, fmt.Errorf("%w: linear model weight row %d has %d values, expect %d", entity.ErrConfiguration, i, len(row), in)
		}
		w.SetRow(i, row)
	}
	return &Linear{
		shape: shape,
		w:     w,
		b:     mat.NewVecDense(out, append([]float64(nil), a.Bias...)),
	}, nil
}

// Shape 模型形状
func (l *Linear) Shape() Shape {
	return l.shape
}

// Predict 计算W·x+b并重排为H×T
func (l *Linear) Predict(_ context.Context, window *mat.Dense) (*mat.Dense, error) {
	r, c := window.Dims()
	if r != l.shape.SeqLength || c != l.shape.Features {
		return nil, fmt.Errorf("linear: input shape %dx%d, expect %dx%d", r, c, l.shape.SeqLength, l.shape.Features)
	}
	x := mat.NewVecDense(r*c, nil)
	for i := range r {
		for j := range c {
			x.SetVec(i*c+j, window.At(i, j))
		}
	}
	var y mat.VecDense
	y.MulVec(l.w, x)
	y.AddVec(&y, l.b)
	return mat.NewDense(l.shape.Horizon, l.shape.Targets, y.RawVector().Data), nil
}
