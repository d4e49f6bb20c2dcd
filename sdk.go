package engage

import (
	"context"

	"github.com/zly-app/zapp/filter"
)

const (
	clientType = "subscription"
	clientName = "sdk"
)

// 单个订阅的操作入口
type SDK interface {
	// 获取订阅, 不存在时创建FREE档位订阅
	GetSubscription(ctx context.Context) (*Subscription, error)
	// 获取当前生效的档位权益
	GetBenefit(ctx context.Context) (Benefit, error)
	// 判定是否还有额度
	Check(ctx context.Context, kind UsageKind) Decision
	// 记录一次用量
	Record(ctx context.Context, kind UsageKind, refID string) error
	// 判定并记录用量
	CheckAndRecord(ctx context.Context, kind UsageKind, refID string) (Decision, error)
	// 变更档位
	ChangeTier(ctx context.Context, tier Tier) error
	// 变更订阅状态
	SetStatus(ctx context.Context, status SubscriptionStatus) error
}

type sdkCli struct {
	level   SubscriptionLevel
	ownerID string
}

type reqBase struct {
	Level   SubscriptionLevel
	OwnerID string
}
type rspSubscription struct {
	Data *Subscription
}

func (s *sdkCli) GetSubscription(ctx context.Context) (*Subscription, error) {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "GetSubscription")
	r := &reqBase{Level: s.level, OwnerID: s.ownerID}
	sp := &rspSubscription{}
	err := chain.HandleInject(ctx, r, sp, func(ctx context.Context, req, rsp interface{}) error {
		sp := rsp.(*rspSubscription)
		var err error
		sp.Data, err = engageApi.GetSubscription(ctx, s.level, s.ownerID)
		return err
	})
	return sp.Data, err
}

type rspBenefit struct {
	Data Benefit
}

func (s *sdkCli) GetBenefit(ctx context.Context) (Benefit, error) {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "GetBenefit")
	r := &reqBase{Level: s.level, OwnerID: s.ownerID}
	sp := &rspBenefit{}
	err := chain.HandleInject(ctx, r, sp, func(ctx context.Context, req, rsp interface{}) error {
		sp := rsp.(*rspBenefit)
		var err error
		sp.Data, err = engageApi.GetBenefit(ctx, s.level, s.ownerID)
		return err
	})
	return sp.Data, err
}

type reqKind struct {
	Level   SubscriptionLevel
	OwnerID string
	Kind    UsageKind
	RefID   string
}
type rspDecision struct {
	Data Decision
}

func (s *sdkCli) Check(ctx context.Context, kind UsageKind) Decision {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "Check")
	r := &reqKind{Level: s.level, OwnerID: s.ownerID, Kind: kind}
	sp := &rspDecision{}
	err := chain.HandleInject(ctx, r, sp, func(ctx context.Context, req, rsp interface{}) error {
		sp := rsp.(*rspDecision)
		sp.Data = engageApi.Check(ctx, s.level, s.ownerID, kind)
		return nil
	})
	return filteredDecision(sp.Data, kind, err)
}

// 过滤器拒绝时判定为不允许并给出原因
func filteredDecision(d Decision, kind UsageKind, err error) Decision {
	if err == nil {
		return d
	}
	d.Allowed = false
	d.Kind = kind
	if d.Reason == "" {
		d.Reason = "Unable to verify subscription: " + err.Error()
	}
	return d
}

func (s *sdkCli) Record(ctx context.Context, kind UsageKind, refID string) error {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "Record")
	r := &reqKind{Level: s.level, OwnerID: s.ownerID, Kind: kind, RefID: refID}
	return chain.HandleInject(ctx, r, &struct{}{}, func(ctx context.Context, req, rsp interface{}) error {
		return engageApi.Record(ctx, s.level, s.ownerID, kind, refID)
	})
}

func (s *sdkCli) CheckAndRecord(ctx context.Context, kind UsageKind, refID string) (Decision, error) {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "CheckAndRecord")
	r := &reqKind{Level: s.level, OwnerID: s.ownerID, Kind: kind, RefID: refID}
	sp := &rspDecision{}
	err := chain.HandleInject(ctx, r, sp, func(ctx context.Context, req, rsp interface{}) error {
		sp := rsp.(*rspDecision)
		var err error
		sp.Data, err = engageApi.CheckAndRecord(ctx, s.level, s.ownerID, kind, refID)
		return err
	})
	return sp.Data, err
}

type reqTier struct {
	Level   SubscriptionLevel
	OwnerID string
	Tier    Tier
}

func (s *sdkCli) ChangeTier(ctx context.Context, tier Tier) error {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "ChangeTier")
	r := &reqTier{Level: s.level, OwnerID: s.ownerID, Tier: tier}
	return chain.HandleInject(ctx, r, &struct{}{}, func(ctx context.Context, req, rsp interface{}) error {
		return engageApi.ChangeTier(ctx, s.level, s.ownerID, tier)
	})
}

type reqStatus struct {
	Level   SubscriptionLevel
	OwnerID string
	Status  SubscriptionStatus
}

func (s *sdkCli) SetStatus(ctx context.Context, status SubscriptionStatus) error {
	ctx, chain := filter.GetClientFilter(ctx, clientType, clientName, "SetStatus")
	r := &reqStatus{Level: s.level, OwnerID: s.ownerID, Status: status}
	return chain.HandleInject(ctx, r, &struct{}{}, func(ctx context.Context, req, rsp interface{}) error {
		return engageApi.SetStatus(ctx, s.level, s.ownerID, status)
	})
}

func NewSdk(level SubscriptionLevel, ownerID string) SDK {
	return &sdkCli{
		level:   level,
		ownerID: ownerID,
	}
}
