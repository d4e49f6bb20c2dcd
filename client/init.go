package client

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/zly-app/component/redis"
	"github.com/zly-app/component/sqlx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zlyuancn/engage/conf"
)

// 获取配额 redis 客户端
func GetQuotaRedisClient() redis.UniversalClient {
	return redis.GetClient(conf.Conf.QuotaRedisName)
}

// 获取档位权益 sqlx 客户端
func GetBenefitSqlxClient() sqlx.Client {
	return sqlx.GetClient(conf.Conf.BenefitSqlxName)
}

// 获取用量流水 sqlx 客户端
func GetUsageFlowSqlxClient() sqlx.Client {
	return sqlx.GetClient(conf.Conf.UsageFlowSqlxName)
}

var (
	mongoOnce   sync.Once
	mongoClient *mongo.Client
	mongoErr    error
)

// 获取文档库, 首次调用时建立连接
func GetMongoDatabase() (*mongo.Database, error) {
	mongoOnce.Do(func() {
		timeout := time.Duration(conf.Conf.MongoConnectTimeoutSec) * time.Second
		opts := options.Client().ApplyURI(conf.Conf.MongoURI).
			SetConnectTimeout(timeout)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		cli, err := mongo.Connect(ctx, opts)
		if err != nil {
			mongoErr = errors.Wrap(err, "connect mongo")
			return
		}
		if err = cli.Ping(ctx, nil); err != nil {
			_ = cli.Disconnect(context.Background())
			mongoErr = errors.Wrap(err, "ping mongo")
			return
		}
		mongoClient = cli
	})
	if mongoErr != nil {
		return nil, mongoErr
	}
	return mongoClient.Database(conf.Conf.MongoDatabase), nil
}

// 关闭文档库连接
func CloseMongo(ctx context.Context) error {
	if mongoClient == nil {
		return nil
	}
	return mongoClient.Disconnect(ctx)
}
