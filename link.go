package engage

import (
	"context"

	"github.com/zlyuancn/engage/mission"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/quota"
	"github.com/zlyuancn/engage/side_effect"
)

// 订阅级别
type SubscriptionLevel = model.SubscriptionLevel

const (
	Level1 SubscriptionLevel = model.Level1
	Level2 SubscriptionLevel = model.Level2
)

// 订阅档位
type Tier = model.Tier

const (
	Tier_Free     Tier = model.Tier_Free
	Tier_Silver   Tier = model.Tier_Silver
	Tier_Gold     Tier = model.Tier_Gold
	Tier_Platinum Tier = model.Tier_Platinum
)

// 订阅状态
type SubscriptionStatus = model.SubscriptionStatus

const (
	SubscriptionStatus_Active   SubscriptionStatus = model.SubscriptionStatus_Active
	SubscriptionStatus_Canceled SubscriptionStatus = model.SubscriptionStatus_Canceled
	SubscriptionStatus_PastDue  SubscriptionStatus = model.SubscriptionStatus_PastDue
)

// 用量类型
type UsageKind = model.UsageKind

const (
	UsageKind_SquadMeetup UsageKind = model.UsageKind_SquadMeetup
	UsageKind_Event       UsageKind = model.UsageKind_Event
	UsageKind_FreeEvent   UsageKind = model.UsageKind_FreeEvent
	UsageKind_Mission     UsageKind = model.UsageKind_Mission
)

// 任务状态
type MissionStatus = model.MissionStatus

const (
	MissionStatus_Active    MissionStatus = model.MissionStatus_Active
	MissionStatus_Paused    MissionStatus = model.MissionStatus_Paused
	MissionStatus_Completed MissionStatus = model.MissionStatus_Completed
)

type (
	Mission       = model.Mission
	Participation = model.Participation
	User          = model.User
	Subscription  = model.Subscription
	Benefit       = model.Benefit
	Decision      = model.Decision
	RankedMission = model.RankedMission
	Location      = model.Location

	CreateMissionReq = mission.CreateMissionReq
	RecommendReq     = mission.RecommendReq
	ValidationError  = mission.ValidationError
	ResetResult      = quota.ResetResult
)

// 副作用类型
type SideEffectType = model.SideEffectType

const (
	SideEffectType_AfterUsageRecorded         SideEffectType = model.SideEffectType_AfterUsageRecorded         // 用量记录后
	SideEffectType_AfterParticipationReviewed SideEffectType = model.SideEffectType_AfterParticipationReviewed // 参与审核后
)

type SideEffectData = model.SideEffectData

// mq工具
type MqTool = side_effect.MqTool

// 注册mq工具
func RegistryMqTool(v MqTool) {
	side_effect.RegistryMqTool(v)
}

// 触发mq回调. 触发mq信号时回调. 如果这个函数失败, 要求业务mq重试
func TriggerMqHandle(ctx context.Context, payload string) error {
	return side_effect.TriggerMqHandle(ctx, payload)
}

// 副作用
type SideEffect = side_effect.SideEffect

// 副作用基础实现, 自定义副作用需要嵌入
type BaseSideEffect = side_effect.BaseSideEffect

// 注册副作用, 重复注册同一个name会导致panic
func RegistrySideEffect(t SideEffectType, name string, se SideEffect) {
	side_effect.RegistrySideEffect(t, name, se)
}

// 取消注册副作用
func UnRegistrySideEffect(t SideEffectType, name string) {
	side_effect.UnRegistrySideEffect(t, name)
}
