package engage

import (
	"context"
	"sync"

	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/client"
	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/dao"
	"github.com/zlyuancn/engage/memstore"
	"github.com/zlyuancn/engage/mission"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/privileged"
	"github.com/zlyuancn/engage/quota"
)

// 文档存储
type Store interface {
	quota.SubscriptionStore
	mission.Store
}

var engageApi = &engageCli{}

type engageCli struct {
	mx      sync.Mutex
	quota   *quota.Engine
	mission *mission.Service
}

/*
注入文档存储和原子计数器, counter为nil时使用先读后写的判定方式.

需要在第一次调用前执行, 未注入时按配置创建.
*/
func InjectStore(store Store, counter quota.AtomicCounter) {
	engageApi.mx.Lock()
	defer engageApi.mx.Unlock()
	engageApi.build(store, counter)
}

func (c *engageCli) build(store Store, counter quota.AtomicCounter) {
	var opts []quota.Option
	if counter != nil {
		opts = append(opts, quota.WithAtomicCounter(counter))
	}
	c.quota = quota.NewEngine(store, opts...)
	c.mission = mission.NewService(store, c.quota)
}

func defaultStore() (Store, quota.AtomicCounter, error) {
	if conf.Conf.DocumentStore == conf.DocumentStore_Memory {
		var counter quota.AtomicCounter
		if conf.Conf.AtomicQuota {
			counter = memstore.NewCounter()
		}
		return memstore.New(), counter, nil
	}

	db, err := client.GetMongoDatabase()
	if err != nil {
		return nil, nil, err
	}
	var counter quota.AtomicCounter
	if conf.Conf.AtomicQuota {
		counter = dao.QuotaCounter{}
	}
	return dao.NewMongoStore(db), counter, nil
}

func (c *engageCli) services(ctx context.Context) (*quota.Engine, *mission.Service, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.quota != nil {
		return c.quota, c.mission, nil
	}

	store, counter, err := defaultStore()
	if err != nil {
		logger.Error(ctx, "engage call defaultStore err", zap.String("documentStore", conf.Conf.DocumentStore), zap.Error(err))
		return nil, nil, err
	}
	c.build(store, counter)
	return c.quota, c.mission, nil
}

func (c *engageCli) Check(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind) model.Decision {
	q, _, err := c.services(ctx)
	if err != nil {
		return model.Decision{Kind: kind, Reason: "Unable to verify subscription"}
	}
	return q.Check(ctx, level, ownerID, kind)
}

func (c *engageCli) Record(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) error {
	q, _, err := c.services(ctx)
	if err != nil {
		return err
	}
	return q.Record(ctx, level, ownerID, kind, refID)
}

func (c *engageCli) CheckAndRecord(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) (model.Decision, error) {
	q, _, err := c.services(ctx)
	if err != nil {
		return model.Decision{Kind: kind, Reason: "Unable to verify subscription"}, err
	}
	return q.CheckAndRecord(ctx, level, ownerID, kind, refID)
}

func (c *engageCli) GetSubscription(ctx context.Context, level model.SubscriptionLevel, ownerID string) (*model.Subscription, error) {
	q, _, err := c.services(ctx)
	if err != nil {
		return nil, err
	}
	return q.GetOrCreate(ctx, level, ownerID)
}

func (c *engageCli) GetBenefit(ctx context.Context, level model.SubscriptionLevel, ownerID string) (model.Benefit, error) {
	q, _, err := c.services(ctx)
	if err != nil {
		return model.Benefit{}, err
	}
	return q.Benefit(ctx, level, ownerID)
}

func (c *engageCli) ChangeTier(ctx context.Context, level model.SubscriptionLevel, ownerID string, tier model.Tier) error {
	q, _, err := c.services(ctx)
	if err != nil {
		return err
	}
	return q.ChangeTier(ctx, level, ownerID, tier)
}

func (c *engageCli) SetStatus(ctx context.Context, level model.SubscriptionLevel, ownerID string, status model.SubscriptionStatus) error {
	q, _, err := c.services(ctx)
	if err != nil {
		return err
	}
	return q.SetStatus(ctx, level, ownerID, status)
}

func (c *engageCli) ResetDue(ctx context.Context, level model.SubscriptionLevel) (*quota.ResetResult, error) {
	q, _, err := c.services(ctx)
	if err != nil {
		return nil, err
	}
	return q.ResetDue(ctx, level)
}

// ---- 任务 ----

// 创建任务, 额度不足时返回的任务为nil, 原因在 Decision 中
func CreateMission(ctx context.Context, req *CreateMissionReq) (*Mission, Decision, error) {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return nil, Decision{Reason: "Unable to verify subscription"}, err
	}
	return svc.CreateMission(ctx, req)
}

func GetMission(ctx context.Context, missionID string) (*Mission, error) {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return nil, err
	}
	return svc.GetMission(ctx, missionID)
}

func SetMissionStatus(ctx context.Context, missionID string, status MissionStatus) error {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return err
	}
	return svc.SetMissionStatus(ctx, missionID, status)
}

// 获取用户的推荐任务, 失败时返回空列表
func GetMissionsForUser(ctx context.Context, req RecommendReq) []RankedMission {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return []RankedMission{}
	}
	ret, err := svc.GetMissionsForUser(ctx, req)
	if err != nil {
		logger.Error(ctx, "GetMissionsForUser err", zap.String("userID", req.UserID), zap.Error(err))
		return []RankedMission{}
	}
	return ret
}

// 申请参与任务
func Apply(ctx context.Context, missionID, userID string) (*Participation, error) {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Apply(ctx, missionID, userID)
}

// 审核参与申请
func Review(ctx context.Context, participationID, reviewerID string, approve bool, note string) (*Participation, error) {
	_, svc, err := engageApi.services(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Review(ctx, participationID, reviewerID, approve, note)
}

// ---- 特权接口 ----

// 审核用户认证
func ReviewVerification(ctx context.Context, userID string, approve bool, note string) error {
	return privileged.NewClientFromConf().ReviewVerification(ctx, userID, approve, note)
}

/*
重置到期的订阅用量.

配置了特权接口时由托管服务执行, 否则在本地扫描重置.
*/
func ResetSubscriptions(ctx context.Context, level SubscriptionLevel) (*ResetResult, error) {
	if cli := privileged.NewClientFromConf(); cli != nil {
		return nil, cli.TriggerSubscriptionReset(ctx, level)
	}
	return engageApi.ResetDue(ctx, level)
}
