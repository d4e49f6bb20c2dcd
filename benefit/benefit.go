package benefit

import (
	"context"
	"time"

	"github.com/zly-app/utils/loopload"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/dao"
	"github.com/zlyuancn/engage/model"
)

type benefitKey struct {
	Level model.SubscriptionLevel
	Tier  model.Tier
}

// 内置权益表
var defaults = map[benefitKey]model.Benefit{
	{model.Level1, model.Tier_Free}: {
		Level: model.Level1, Tier: model.Tier_Free,
		SquadMeetupsPerMonth: 1,
	},
	{model.Level1, model.Tier_Silver}: {
		Level: model.Level1, Tier: model.Tier_Silver,
		SquadMeetupsPerMonth: 2, EventsPerMonth: 2, FreeEventsPerQuarter: 1,
		PriorityMatching: true,
	},
	{model.Level1, model.Tier_Gold}: {
		Level: model.Level1, Tier: model.Tier_Gold,
		SquadMeetupsPerMonth: 4, UnlimitedEvents: true, FreeEventsPerQuarter: 3,
		PriorityMatching: true, Analytics: true,
	},

	{model.Level2, model.Tier_Free}: {
		Level: model.Level2, Tier: model.Tier_Free,
		MissionsPerMonth: 3,
	},
	{model.Level2, model.Tier_Silver}: {
		Level: model.Level2, Tier: model.Tier_Silver,
		MissionsPerMonth: 10, EventsPerMonth: 1,
		Analytics: true,
	},
	{model.Level2, model.Tier_Gold}: {
		Level: model.Level2, Tier: model.Tier_Gold,
		MissionsPerMonth: 30, EventsPerMonth: 3, FreeEventsPerQuarter: 2,
		Analytics: true, FeaturedPlacement: true,
	},
	{model.Level2, model.Tier_Platinum}: {
		Level: model.Level2, Tier: model.Tier_Platinum,
		UnlimitedMissions: true, UnlimitedEvents: true, FreeEventsPerQuarter: 4,
		PriorityMatching: true, Analytics: true, FeaturedPlacement: true, DedicatedSupport: true,
	},
}

var loader *loopload.LoopLoad[map[benefitKey]model.Benefit]

// 开启从db加载权益表
func Init() {
	if !conf.Conf.LoadBenefitFromDB {
		return
	}
	loader = loopload.New("tier_benefit", func(ctx context.Context) (map[benefitKey]model.Benefit, error) {
		rows, err := dao.GetAllTierBenefit(ctx)
		if err != nil {
			return nil, err
		}
		return buildTable(rows), nil
	}, loopload.WithReloadTime(time.Duration(conf.Conf.ReloadBenefitIntervalSec)*time.Second))
}

// db中的配置覆盖内置权益, 未知的级别或档位忽略
func buildTable(rows []*dao.TierBenefitModel) map[benefitKey]model.Benefit {
	ret := make(map[benefitKey]model.Benefit, len(defaults))
	for k, v := range defaults {
		ret[k] = v
	}
	for _, r := range rows {
		level := model.SubscriptionLevel(r.Level)
		tier := model.Tier(r.Tier)
		if !model.TierInLevel(level, tier) {
			continue
		}
		ret[benefitKey{level, tier}] = model.Benefit{
			Level:                level,
			Tier:                 tier,
			SquadMeetupsPerMonth: r.SquadMeetupsPerMonth,
			EventsPerMonth:       r.EventsPerMonth,
			FreeEventsPerQuarter: r.FreeEventsPerQuarter,
			MissionsPerMonth:     r.MissionsPerMonth,
			UnlimitedEvents:      r.UnlimitedEvents == 1,
			UnlimitedMissions:    r.UnlimitedMissions == 1,
			PriorityMatching:     r.PriorityMatching == 1,
			Analytics:            r.Analytics == 1,
			FeaturedPlacement:    r.FeaturedPlacement == 1,
			DedicatedSupport:     r.DedicatedSupport == 1,
		}
	}
	return ret
}

// 获取档位权益, 未知档位按FREE处理
func Get(ctx context.Context, level model.SubscriptionLevel, tier model.Tier) model.Benefit {
	table := defaults
	if loader != nil {
		if t := loader.Get(ctx); len(t) > 0 {
			table = t
		}
	}

	b, ok := table[benefitKey{level, tier}]
	if ok {
		return b
	}
	logger.Warn(ctx, "benefit.Get got unknown tier, use FREE", zap.Int8("level", int8(level)), zap.String("tier", string(tier)))
	return table[benefitKey{level, model.Tier_Free}]
}

// 获取级别下所有档位的权益, 按档位从低到高
func List(ctx context.Context, level model.SubscriptionLevel) []model.Benefit {
	tiers := model.LevelTiers[level]
	ret := make([]model.Benefit, 0, len(tiers))
	for _, t := range tiers {
		ret = append(ret, Get(ctx, level, t))
	}
	return ret
}
