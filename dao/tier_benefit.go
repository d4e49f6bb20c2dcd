package dao

import (
	"context"

	"github.com/didi/gendry/builder"

	"github.com/zlyuancn/engage/client"
)

// 档位权益表
const TierBenefitTableName = "tier_benefit"

type TierBenefitModel struct {
	Level                int8   `db:"level"`                   // 订阅级别. 1=level1, 2=level2
	Tier                 string `db:"tier"`                    // 档位
	SquadMeetupsPerMonth int64  `db:"squad_meetups_per_month"` // 每月小队见面会次数
	EventsPerMonth       int64  `db:"events_per_month"`        // 每月活动次数
	FreeEventsPerQuarter int64  `db:"free_events_per_quarter"` // 每季度免费活动次数
	MissionsPerMonth     int64  `db:"missions_per_month"`      // 每月创建任务数
	UnlimitedEvents      uint8  `db:"unlimited_events"`        // 活动不限次数
	UnlimitedMissions    uint8  `db:"unlimited_missions"`      // 任务不限数量
	PriorityMatching     uint8  `db:"priority_matching"`
	Analytics            uint8  `db:"analytics"`
	FeaturedPlacement    uint8  `db:"featured_placement"`
	DedicatedSupport     uint8  `db:"dedicated_support"`
}

var tierBenefitFields = []string{
	"level", "tier",
	"squad_meetups_per_month", "events_per_month", "free_events_per_quarter", "missions_per_month",
	"unlimited_events", "unlimited_missions",
	"priority_matching", "analytics", "featured_placement", "dedicated_support",
}

// 获取所有档位权益
func GetAllTierBenefit(ctx context.Context) ([]*TierBenefitModel, error) {
	where := map[string]interface{}{
		"level in": []interface{}{1, 2},
	}
	cond, vals, err := builder.BuildSelect(TierBenefitTableName, where, tierBenefitFields)
	if err != nil {
		return nil, err
	}

	var ret []*TierBenefitModel
	err = client.GetBenefitSqlxClient().Find(ctx, &ret, cond, vals...)
	return ret, err
}
