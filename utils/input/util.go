package input

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// loadFile 从JSON文件加载
// 说明：模型配置中额外的训练信息会被忽略
func loadFile[T any](path string) (res T, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return res, err
	}
	if err = json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("decode %s: %w", path, err)
	}
	return res, nil
}

// loadMongo 从MongoDB集合加载一个文档
// 参数：name-文档的name字段，为空时取集合中的第一条
func loadMongo[T any](ctx context.Context, coll *mongo.Collection, name string) (res T, err error) {
	filter := bson.M{}
	if name != "" {
		filter = bson.M{"name": name}
	}
	if err = coll.FindOne(ctx, filter).Decode(&res); err != nil {
		return res, fmt.Errorf("find %s: %w", coll.Name(), err)
	}
	return res, nil
}
