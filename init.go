package engage

import (
	"context"

	"github.com/zly-app/zapp"
	"github.com/zly-app/zapp/config"
	"github.com/zly-app/zapp/core"
	"github.com/zly-app/zapp/handler"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/benefit"
	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/dao"
	"github.com/zlyuancn/engage/memstore"
	"github.com/zlyuancn/engage/side_effect"
	"github.com/zlyuancn/engage/usage_flow"
)

func init() {
	config.RegistryApolloNeedParseNamespace(conf.EngageConfigKey)

	// 注册副作用
	usage_flow.Registry()

	zapp.AddHandler(zapp.BeforeInitializeHandler, func(app core.IApp, handlerType handler.HandlerType) {
		err := app.GetConfig().Parse(conf.EngageConfigKey, &conf.Conf, true)
		if err != nil {
			app.Fatal("parse engage config err", zap.Error(err))
		}
		conf.Conf.Check()
	})
	zapp.AddHandler(zapp.AfterInitializeHandler, func(app core.IApp, handlerType handler.HandlerType) {
		// 持久内存-加载档位权益
		benefit.Init()

		if conf.Conf.DocumentStore == conf.DocumentStore_Memory {
			side_effect.RegistryStatusMarker(memstore.NewMarker())
			return
		}
		side_effect.RegistryStatusMarker(dao.SideEffectMarker{})
		if conf.Conf.AtomicQuota {
			dao.TryInjectScript(context.Background())
		}
	})
}
