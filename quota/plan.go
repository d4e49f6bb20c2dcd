package quota

import (
	"context"

	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/model"
)

// 变更档位
func (e *Engine) ChangeTier(ctx context.Context, level model.SubscriptionLevel, ownerID string, tier model.Tier) error {
	if !model.TierInLevel(level, tier) {
		return ErrInvalidTier
	}
	if _, err := e.GetOrCreate(ctx, level, ownerID); err != nil {
		return err
	}

	err := e.store.SetTier(ctx, level, ownerID, tier, e.now())
	if err != nil {
		logger.Error(ctx, "ChangeTier call store.SetTier err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("tier", string(tier)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// 变更订阅状态
func (e *Engine) SetStatus(ctx context.Context, level model.SubscriptionLevel, ownerID string, status model.SubscriptionStatus) error {
	switch status {
	case model.SubscriptionStatus_Active, model.SubscriptionStatus_Canceled, model.SubscriptionStatus_PastDue:
	default:
		return ErrInvalidStatus
	}
	if _, err := e.GetOrCreate(ctx, level, ownerID); err != nil {
		return err
	}

	err := e.store.SetStatus(ctx, level, ownerID, status, e.now())
	if err != nil {
		logger.Error(ctx, "SetStatus call store.SetStatus err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
