// 定时任务: 重置到期的订阅用量计数
package main

import (
	"github.com/zly-app/zapp"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage"
	"github.com/zlyuancn/engage/client"
)

func main() {
	app := zapp.NewApp("engage-reset")
	defer app.Exit()

	ctx := app.BaseContext()
	defer func() { _ = client.CloseMongo(ctx) }()

	for _, level := range []engage.SubscriptionLevel{engage.Level1, engage.Level2} {
		ret, err := engage.ResetSubscriptions(ctx, level)
		if err != nil {
			logger.Error(ctx, "ResetSubscriptions err", zap.Int8("level", int8(level)), zap.Any("result", ret), zap.Error(err))
			continue
		}
		logger.Info(ctx, "ResetSubscriptions ok", zap.Int8("level", int8(level)), zap.Any("result", ret))
	}
}
