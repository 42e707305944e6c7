package predictor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName 远程预测服务名
	ServiceName = "safedrive.predictor.v1.PredictorService"
	// PredictProcedure 远程预测服务的RPC路径
	// 请求：{"window": [[f0..fF-1] x N]}，响应：{"horizon": [[t0..tT-1] x H]}
	PredictProcedure = "/" + ServiceName + "/Predict"
)

// Remote 远程预测器
// 功能：通过connect RPC调用独立部署的模型推理服务
// 说明：载荷使用google.protobuf.Struct，推理服务无需依赖本项目的proto定义
type Remote struct {
	client *connect.Client[structpb.Struct, structpb.Struct]
}

// NewRemote 创建远程预测器
// 参数：httpClient-HTTP客户端，baseURL-推理服务地址，例如http://localhost:51200
func NewRemote(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Remote {
	return &Remote{
		client: connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient,
			strings.TrimRight(baseURL, "/")+PredictProcedure,
			opts...,
		),
	}
}

// Predict 发起一次远程预测
func (r *Remote) Predict(ctx context.Context, window *mat.Dense) (*mat.Dense, error) {
	req, err := structpb.NewStruct(map[string]any{"window": denseToList(window)})
	if err != nil {
		return nil, fmt.Errorf("remote: encode window: %w", err)
	}
	res, err := r.client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, fmt.Errorf("remote: call: %w", err)
	}
	return listToDense(res.Msg.GetFields()["horizon"])
}

// NewHandler 把任意Predictor发布为远程预测服务
// 返回：路由路径与处理器，可直接挂到http.ServeMux上
func NewHandler(p Predictor, opts ...connect.HandlerOption) (string, http.Handler) {
	return PredictProcedure, connect.NewUnaryHandler(
		PredictProcedure,
		func(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
			window, err := listToDense(req.Msg.GetFields()["window"])
			if err != nil {
				return nil, connect.NewError(connect.CodeInvalidArgument, err)
			}
			horizon, err := p.Predict(ctx, window)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			res, err := structpb.NewStruct(map[string]any{"horizon": denseToList(horizon)})
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, err)
			}
			return connect.NewResponse(res), nil
		},
		opts...,
	)
}

func denseToList(m *mat.Dense) []any {
	r, c := m.Dims()
	rows := make([]any, r)
	for i := range r {
		row := make([]any, c)
		for j := range c {
			row[j] = m.At(i, j)
		}
		rows[i] = row
	}
	return rows
}

// listToDense 把二维列表解码为矩阵，要求每行等长
func listToDense(v *structpb.Value) (*mat.Dense, error) {
	rows := v.GetListValue().GetValues()
	if len(rows) == 0 {
		return nil, fmt.Errorf("remote: empty matrix")
	}
	width := len(rows[0].GetListValue().GetValues())
	if width == 0 {
		return nil, fmt.Errorf("remote: empty row")
	}
	m := mat.NewDense(len(rows), width, nil)
	for i, row := range rows {
		cells := row.GetListValue().GetValues()
		if len(cells) != width {
			return nil, fmt.Errorf("remote: row %d has %d values, expect %d", i, len(cells), width)
		}
		for j, cell := range cells {
			if _, ok := cell.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, fmt.Errorf("remote: cell (%d,%d) is not a number", i, j)
			}
			m.Set(i, j, cell.GetNumberValue())
		}
	}
	return m, nil
}
