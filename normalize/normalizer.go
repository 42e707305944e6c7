package normalize

import (
	"slices"

	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"gonum.org/v1/gonum/mat"
)

// Scaler 逐列仿射变换
// 功能：transform为(x-mean)/scale，inverse为x*scale+mean，二者互为逆变换
type Scaler struct {
	mean  []float64
	scale []float64
}

// NewScaler 创建缩放器，复制传入的向量
func NewScaler(mean, scale []float64) Scaler {
	return Scaler{mean: slices.Clone(mean), scale: slices.Clone(scale)}
}

// Width 列数
func (s Scaler) Width() int {
	return len(s.mean)
}

// Transform 映射到模型空间
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out
}

// Inverse 映射回物理空间
func (s Scaler) Inverse(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v*s.scale[i] + s.mean[i]
	}
	return out
}

// TransformDense 对矩阵的每一行执行Transform，结果写入新矩阵
func (s Scaler) TransformDense(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.mean[j]) / s.scale[j]
	}, m)
	return out
}

// InverseDense 对矩阵的每一行执行Inverse，结果写入新矩阵
func (s Scaler) InverseDense(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*s.scale[j] + s.mean[j]
	}, m)
	return out
}

// Normalizer 归一化器
// 功能：输入特征使用X参数，预测输出使用Y参数
// 说明：无状态，可被多个组件只读共享
type Normalizer struct {
	x Scaler
	y Scaler
}

// New 根据参数创建归一化器
// 说明：调用方应先执行Params.Validate
func New(p Params) *Normalizer {
	return &Normalizer{
		x: NewScaler(p.XMean, p.XScale),
		y: NewScaler(p.YMean, p.YScale),
	}
}

// Features 输入特征数
func (n *Normalizer) Features() int {
	return n.x.Width()
}

// Targets 输出目标数
func (n *Normalizer) Targets() int {
	return n.y.Width()
}

// ToModelSpace 单条记录映射到模型输入空间
func (n *Normalizer) ToModelSpace(r feature.Record) []float64 {
	return n.x.Transform(r.Values())
}

// FromModelSpace 模型输出向量映射回物理单位
func (n *Normalizer) FromModelSpace(v []float64) []float64 {
	return n.y.Inverse(v)
}

// FromInputSpace 模型输入向量映射回Record，是ToModelSpace的逆
func (n *Normalizer) FromInputSpace(v []float64) feature.Record {
	return feature.FromValues(n.x.Inverse(v))
}

// WindowToModel 将窗口批量映射为N×F的模型输入矩阵
func (n *Normalizer) WindowToModel(records []feature.Record) *mat.Dense {
	raw := mat.NewDense(len(records), n.x.Width(), nil)
	for i, r := range records {
		raw.SetRow(i, r.Values())
	}
	return n.x.TransformDense(raw)
}

// HorizonFromModel 将H×T的模型输出矩阵批量映射回物理单位
func (n *Normalizer) HorizonFromModel(m mat.Matrix) *mat.Dense {
	return n.y.InverseDense(m)
}
