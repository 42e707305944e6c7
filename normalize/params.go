package normalize

import (
	"fmt"

	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
)

// Params 归一化参数
// 功能：输入空间与输出空间各自的均值与缩放向量
// 说明：启动时从模型配置中加载一次，运行期间只读
type Params struct {
	XMean  []float64 `json:"scaler_X_mean" bson:"scaler_X_mean" yaml:"scaler_X_mean"`
	XScale []float64 `json:"scaler_X_std" bson:"scaler_X_std" yaml:"scaler_X_std"`
	YMean  []float64 `json:"scaler_y_mean" bson:"scaler_y_mean" yaml:"scaler_y_mean"`
	YScale []float64 `json:"scaler_y_std" bson:"scaler_y_std" yaml:"scaler_y_std"`
}

// Validate 检查参数维度
// 参数：nFeatures-输入特征数，nTargets-输出目标数
// 返回：不合法时返回包装了entity.ErrConfiguration的错误
// 说明：缩放为0会导致除零，视为配置错误
func (p Params) Validate(nFeatures, nTargets int) error {
	check := func(name string, v []float64, n int, scale bool) error {
		if len(v) != n {
			return fmt.Errorf("%w: %s has %d values, expect %d", entity.ErrConfiguration, name, len(v), n)
		}
		if scale {
			for i, s := range v {
				if s == 0 {
					return fmt.Errorf("%w: %s[%d] is zero", entity.ErrConfiguration, name, i)
				}
			}
		}
		return nil
	}
	if err := check("scaler_X_mean", p.XMean, nFeatures, false); err != nil {
		return err
	}
	if err := check("scaler_X_std", p.XScale, nFeatures, true); err != nil {
		return err
	}
	if err := check("scaler_y_mean", p.YMean, nTargets, false); err != nil {
		return err
	}
	return check("scaler_y_std", p.YScale, nTargets, true)
}
