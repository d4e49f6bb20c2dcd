package quota

import (
	"context"

	"github.com/pkg/errors"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/model"
)

// 清零月度用量
func (e *Engine) ResetMonthly(ctx context.Context, level model.SubscriptionLevel, ownerID string) error {
	return e.reset(ctx, level, ownerID, model.Window_Month)
}

// 清零季度用量
func (e *Engine) ResetQuarterly(ctx context.Context, level model.SubscriptionLevel, ownerID string) error {
	return e.reset(ctx, level, ownerID, model.Window_Quarter)
}

func (e *Engine) reset(ctx context.Context, level model.SubscriptionLevel, ownerID string, w model.Window) error {
	if err := checkOwner(level, ownerID); err != nil {
		return err
	}
	now := e.now()
	err := e.store.ResetUsage(ctx, level, ownerID, w, now)
	if err != nil {
		logger.Error(ctx, "reset call store.ResetUsage err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.Int8("window", int8(w)),
			zap.Error(err),
		)
		return err
	}

	if e.counter == nil {
		return nil
	}
	windowID := model.WindowID(w, now)
	for _, kind := range levelKinds[level] {
		if kind.Window() != w {
			continue
		}
		key := model.CounterKey{OwnerID: ownerID, Level: level, Kind: kind, Window: windowID}
		if err = e.counter.ResetCounter(ctx, key); err != nil {
			logger.Error(ctx, "reset call counter.ResetCounter err", zap.Any("key", key), zap.Error(err))
			return err
		}
	}
	return nil
}

// 重置结果
type ResetResult struct {
	Monthly   int
	Quarterly int
	Failed    int
}

// 重置所有上次重置早于当前窗口的订阅, 单个订阅失败不影响其它订阅
func (e *Engine) ResetDue(ctx context.Context, level model.SubscriptionLevel) (*ResetResult, error) {
	if !level.Valid() {
		return nil, ErrInvalidLevel
	}

	now := e.now()
	ret := &ResetResult{}
	var lastErr error
	for _, w := range []model.Window{model.Window_Month, model.Window_Quarter} {
		owners, err := e.store.ListResetDue(ctx, level, w, model.WindowStart(w, now))
		if err != nil {
			logger.Error(ctx, "ResetDue call store.ListResetDue err",
				zap.Int8("level", int8(level)),
				zap.Int8("window", int8(w)),
				zap.Error(err),
			)
			return ret, err
		}

		for _, ownerID := range owners {
			if err = e.reset(ctx, level, ownerID, w); err != nil {
				ret.Failed++
				lastErr = errors.Wrapf(err, "reset %s", ownerID)
				continue
			}
			if w == model.Window_Quarter {
				ret.Quarterly++
			} else {
				ret.Monthly++
			}
		}
	}
	return ret, lastErr
}
