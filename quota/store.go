package quota

import (
	"context"
	"time"

	"github.com/zlyuancn/engage/model"
)

// 订阅存储. 不存在时返回 model.ErrNotFound, 重复插入返回 model.ErrAlreadyExists
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, level model.SubscriptionLevel, ownerID string) (*model.Subscription, error)
	InsertSubscription(ctx context.Context, sub *model.Subscription) error
	// 增加用量, 返回增加后的值
	IncrUsage(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, delta int64, now time.Time) (int64, error)
	SetTier(ctx context.Context, level model.SubscriptionLevel, ownerID string, tier model.Tier, now time.Time) error
	SetStatus(ctx context.Context, level model.SubscriptionLevel, ownerID string, status model.SubscriptionStatus, now time.Time) error
	// 清零窗口用量并更新重置时间
	ResetUsage(ctx context.Context, level model.SubscriptionLevel, ownerID string, w model.Window, now time.Time) error
	// 列出上次重置早于before的订阅所属者
	ListResetDue(ctx context.Context, level model.SubscriptionLevel, w model.Window, before time.Time) ([]string, error)
}

// 原子计数器, 判定和增加在一次操作中完成. 同一个refID重复调用返回首次的结果
type AtomicCounter interface {
	CheckAndIncr(ctx context.Context, key model.CounterKey, refID string, limit int64, unlimited bool, seed int64) (*model.CounterResult, error)
	// 释放refID已记录的用量, 未记录时不做任何事
	Release(ctx context.Context, key model.CounterKey, refID string) error
	ResetCounter(ctx context.Context, key model.CounterKey) error
}
