// Package usage_flow 用量记录后写入用量流水
package usage_flow

import (
	"context"
	"time"

	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/dao"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/side_effect"
)

// 注册名
const SideEffectName = "usage_flow"

var (
	writeFlow = dao.WriteUsageFlow
	nowFn     = time.Now
)

type UsageFlowSideEffect struct {
	side_effect.BaseSideEffect
}

// 注册用量流水副作用
func Registry() {
	side_effect.RegistrySideEffect(model.SideEffectType_AfterUsageRecorded, SideEffectName, UsageFlowSideEffect{})
}

func (UsageFlowSideEffect) AfterUsageRecorded(ctx context.Context, data *model.SideEffectData) error {
	if !conf.Conf.WriteUsageFlow {
		return nil
	}

	flow := newFlow(data, nowFn())
	err := writeFlow(ctx, flow)
	if err != nil {
		logger.Error(ctx, "SideEffect.AfterUsageRecorded call WriteUsageFlow fail.", zap.Any("data", data), zap.Any("flow", flow), zap.Error(err))
		return err
	}
	return nil
}

func newFlow(data *model.SideEffectData, now time.Time) *dao.UsageFlowModel {
	// 补偿重放时使用记录时的窗口
	window := data.Window
	if window == "" {
		window = model.WindowID(data.Kind.Window(), now)
	}
	return &dao.UsageFlowModel{
		RefID:     data.RefID,
		OwnerID:   data.OwnerID,
		Level:     int8(data.Level),
		Tier:      string(data.Tier),
		Kind:      string(data.Kind),
		Used:      data.Used,
		Window:    window,
		Remark:    data.Remark,
		CreatedAt: now,
	}
}
