package input

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/safedrive-agent/entity"
	"github.com/tsinghua-fib-lab/safedrive-agent/feature"
	"github.com/tsinghua-fib-lab/safedrive-agent/normalize"
	"github.com/tsinghua-fib-lab/safedrive-agent/predictor"
	"github.com/tsinghua-fib-lab/safedrive-agent/utils/config"
	"go.mongodb.org/mongo-driver/mongo"
)

var log = logrus.WithField("module", "input")

// ModelConfig 模型配置文件
// 功能：训练脚本导出的模型配置，只使用其中的归一化参数
type ModelConfig struct {
	Normalization normalize.Params `json:"normalization" bson:"normalization"`
}

// Input 输入数据
// 功能：存储控制循环启动前必须加载的模型数据
// 说明：Linear仅在使用linear预测器时非空
type Input struct {
	Params normalize.Params
	Linear *predictor.LinearArtifact
}

// Init 加载输入数据
// 功能：根据配置从文件或MongoDB加载归一化参数与预测模型
// 参数：ctx-上下文，config-配置对象
// 返回：输入数据；任何失败均返回包装了entity.ErrConfiguration的错误
// 算法说明：
// 1. 若任一数据来自MongoDB则建立连接，函数返回时断开
// 2. 归一化参数：文件优先，其次MongoDB
// 3. 若预测器为linear，以同样方式加载权重
// 4. 按配置的形状校验归一化参数
func Init(ctx context.Context, config config.Config) (*Input, error) {
	var client *mongo.Client
	if config.Input.URI != "" {
		client = mongoutil.NewClient(config.Input.URI)
		defer client.Disconnect(context.Background())
	}

	res := &Input{}
	mc, err := load[ModelConfig](ctx, client, config.Input.Normalization)
	if err != nil {
		return nil, fmt.Errorf("%w: normalization: %v", entity.ErrConfiguration, err)
	}
	res.Params = mc.Normalization
	if err := res.Params.Validate(feature.N_FEATURES, config.Control.Shape.NTargets); err != nil {
		return nil, err
	}

	if config.Input.Predictor.Backend == "linear" {
		a, err := load[predictor.LinearArtifact](ctx, client, config.Input.Predictor.Artifact)
		if err != nil {
			return nil, fmt.Errorf("%w: predictor artifact: %v", entity.ErrConfiguration, err)
		}
		res.Linear = &a
	}
	log.Infof("normalization loaded: %d features, %d targets", len(res.Params.XMean), len(res.Params.YMean))
	return res, nil
}

// load 从文件或MongoDB加载一个文档（泛型函数）
// 说明：文件优先级高于MongoDB
func load[T any](ctx context.Context, client *mongo.Client, inputPath config.InputPath) (T, error) {
	if inputPath.File != "" {
		log.Infof("start loading %s", inputPath.File)
		return loadFile[T](inputPath.File)
	}
	if client == nil {
		var zero T
		return zero, fmt.Errorf("no mongo client for %s.%s", inputPath.DB, inputPath.Col)
	}
	log.Infof("start fetching from %s.%s", inputPath.DB, inputPath.Col)
	return loadMongo[T](ctx, mongoutil.GetMongoColl(client, inputPath), inputPath.ID)
}
