package side_effect

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/model"
)

type SideEffectProcess func(ctx context.Context, seName string, se SideEffect, data *model.SideEffectData) error

var sideEffectTypeResolver = map[model.SideEffectType]SideEffectProcess{
	model.SideEffectType_AfterUsageRecorded: func(ctx context.Context, _ string, se SideEffect, data *model.SideEffectData) error {
		return se.AfterUsageRecorded(ctx, data)
	},
	model.SideEffectType_AfterParticipationReviewed: func(ctx context.Context, _ string, se SideEffect, data *model.SideEffectData) error {
		return se.AfterParticipationReviewed(ctx, data)
	},
}

// 副作用补偿
func compensationSideEffect(ctx context.Context, payload string) error {
	data := &model.SideEffectData{}
	err := sonic.UnmarshalString(payload, data)
	if err != nil {
		logger.Error(ctx, "compensationSideEffect call UnmarshalString data fail.", zap.Any("payload", payload), zap.Error(err))
		return nil
	}

	if _, ok := sideEffectTypeResolver[data.Type]; !ok {
		return fmt.Errorf("compensationSideEffect got not supported type=%d", data.Type)
	}
	return TriggerSideEffect(ctx, data)
}

// 为副作用添加一个守护程序, 当副作用处理失败后会自动重试
func AddSideEffectDaemon(ctx context.Context, data *model.SideEffectData) error {
	payload, err := sonic.MarshalString(data)
	if err != nil {
		logger.Error(ctx, "AddSideEffectDaemon call MarshalString data fail.", zap.Any("data", data), zap.Error(err))
		return err
	}

	key := mqKey(data)
	err = mqTool.Send(ctx, key, payload)
	if err != nil {
		logger.Error(ctx, "AddSideEffectDaemon call mqTool.Send fail.", zap.String("key", key), zap.String("payload", payload), zap.Error(err))
		return err
	}
	return nil
}

// 异步触发副作用, 没有注册副作用时不做任何事
func Dispatch(ctx context.Context, data *model.SideEffectData) {
	if len(getSideEffects(data.Type)) == 0 {
		return
	}

	// 守护失败不影响主流程
	_ = AddSideEffectDaemon(ctx, data)

	cloneCtx := context.WithoutCancel(ctx)
	go func() {
		err := TriggerSideEffect(cloneCtx, data)
		if err != nil {
			logger.Error(cloneCtx, "Dispatch call TriggerSideEffect fail.", zap.Any("data", data), zap.Error(err))
		}
	}()
}

func markTTL() time.Duration {
	return time.Duration(conf.Conf.QuotaOrderExpireDay) * 24 * time.Hour
}

// 立即触发副作用
func TriggerSideEffect(ctx context.Context, data *model.SideEffectData) error {
	fn, ok := sideEffectTypeResolver[data.Type]
	if !ok {
		return fmt.Errorf("TriggerSideEffect got not supported type=%d", data.Type)
	}

	seList := getSideEffects(data.Type)
	if len(seList) == 0 {
		return nil
	}

	// 某个副作用失败不影响其它副作用执行
	var g errgroup.Group
	for k, v := range seList {
		name, se := k, v
		g.Go(func() error {
			if marker != nil {
				done, err := marker.IsDone(ctx, data.OwnerID, data.RefID, name, data.Type)
				if err != nil {
					logger.Error(ctx, "TriggerSideEffect call marker.IsDone fail.", zap.Int("SideEffectType", int(data.Type)), zap.String("SideEffectName", name), zap.Any("data", data), zap.Error(err))
					return err
				}
				if done {
					return nil
				}
			}

			err := fn(ctx, name, se, data)
			if err != nil {
				logger.Error(ctx, "TriggerSideEffect call fail.", zap.Int("SideEffectType", int(data.Type)), zap.String("SideEffectName", name), zap.Any("data", data), zap.Error(err))
				return err
			}

			if marker != nil {
				err = marker.MarkDone(ctx, data.OwnerID, data.RefID, name, data.Type, markTTL())
				if err != nil {
					logger.Error(ctx, "TriggerSideEffect call marker.MarkDone fail.", zap.Int("SideEffectType", int(data.Type)), zap.String("SideEffectName", name), zap.Any("data", data), zap.Error(err))
					// 这里不影响主进程
				}
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		logger.Error(ctx, "TriggerSideEffect fail.", zap.Int("SideEffectType", int(data.Type)), zap.Any("data", data), zap.Error(err))
		return err
	}
	return nil
}
