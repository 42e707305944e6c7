// 随机数引擎，包装了golang.org/x/exp/rand，提供仿真扰动所需的随机数
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于调整随机数生成
)

// Engine 随机数引擎（非线程安全）
// 说明：只由仿真推进所在的协程使用
type Engine struct {
	*rand.Rand // 底层随机数生成器
}

// New 创建随机数引擎
// 参数：seed-随机数种子
// 说明：种子偏移量允许在不修改配置的情况下调整随机数序列
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Noise 均值为0、标准差为sigma的正态扰动
// 说明：sigma<=0时返回0且不消耗随机数
func (e *Engine) Noise(sigma float64) float64 {
	if sigma <= 0 {
		return 0
	}
	return e.NormFloat64() * sigma
}
