package model

import (
	"fmt"
	"time"
)

// 任务目标类型
type GoalType string

const (
	GoalType_Sales   GoalType = "SALES"   // 销售
	GoalType_Growth  GoalType = "GROWTH"  // 增长
	GoalType_Traffic GoalType = "TRAFFIC" // 引流
	GoalType_Content GoalType = "CONTENT" // 内容
)

// 优先级
type Priority string

const (
	Priority_High   Priority = "HIGH"
	Priority_Medium Priority = "MEDIUM"
	Priority_Low    Priority = "LOW"
)

// 用户等级
type UserLevel string

const (
	UserLevel_Beginner     UserLevel = "BEGINNER"
	UserLevel_Intermediate UserLevel = "INTERMEDIATE"
	UserLevel_Advanced     UserLevel = "ADVANCED"
	UserLevel_Pro          UserLevel = "PRO"
)

var AllUserLevels = []UserLevel{UserLevel_Beginner, UserLevel_Intermediate, UserLevel_Advanced, UserLevel_Pro}

// 用户角色
type Role string

const (
	Role_Customer Role = "CUSTOMER"
	Role_Creator  Role = "CREATOR"
	Role_Business Role = "BUSINESS"
	Role_Admin    Role = "ADMIN"
)

// 商家类型
type BusinessType string

const (
	BusinessType_Online   BusinessType = "ONLINE"
	BusinessType_Physical BusinessType = "PHYSICAL"
	BusinessType_Hybrid   BusinessType = "HYBRID"
)

// 任务可见范围
type GeoScope string

const (
	GeoScope_City         GeoScope = "CITY"
	GeoScope_Region       GeoScope = "REGION"
	GeoScope_Country      GeoScope = "COUNTRY"
	GeoScope_MultiCountry GeoScope = "MULTI_COUNTRY"
	GeoScope_Global       GeoScope = "GLOBAL"
)

// 任务状态
type MissionStatus string

const (
	MissionStatus_Active    MissionStatus = "ACTIVE"
	MissionStatus_Paused    MissionStatus = "PAUSED"
	MissionStatus_Completed MissionStatus = "COMPLETED"
)

// 参与状态
type ParticipationStatus string

const (
	ParticipationStatus_Pending  ParticipationStatus = "PENDING"
	ParticipationStatus_Approved ParticipationStatus = "APPROVED"
	ParticipationStatus_Rejected ParticipationStatus = "REJECTED"
)

// 订阅级别
type SubscriptionLevel int8

const (
	Level1 SubscriptionLevel = 1
	Level2 SubscriptionLevel = 2
)

func (l SubscriptionLevel) Valid() bool { return l == Level1 || l == Level2 }

// 订阅档位
type Tier string

const (
	Tier_Free     Tier = "FREE"
	Tier_Silver   Tier = "SILVER"
	Tier_Gold     Tier = "GOLD"
	Tier_Platinum Tier = "PLATINUM"
)

// 各级别可用的档位, 按从低到高排列
var LevelTiers = map[SubscriptionLevel][]Tier{
	Level1: {Tier_Free, Tier_Silver, Tier_Gold},
	Level2: {Tier_Free, Tier_Silver, Tier_Gold, Tier_Platinum},
}

// 检查档位是否属于该级别
func TierInLevel(level SubscriptionLevel, tier Tier) bool {
	for _, t := range LevelTiers[level] {
		if t == tier {
			return true
		}
	}
	return false
}

// 订阅状态
type SubscriptionStatus string

const (
	SubscriptionStatus_Active   SubscriptionStatus = "ACTIVE"
	SubscriptionStatus_Canceled SubscriptionStatus = "CANCELED"
	SubscriptionStatus_PastDue  SubscriptionStatus = "PAST_DUE"
)

// 用量类型
type UsageKind string

const (
	UsageKind_SquadMeetup UsageKind = "SQUAD_MEETUP" // 小队见面会, 按月
	UsageKind_Event       UsageKind = "EVENT"        // 活动, 按月
	UsageKind_FreeEvent   UsageKind = "FREE_EVENT"   // 免费活动, 按季度
	UsageKind_Mission     UsageKind = "MISSION"      // 创建任务, 按月
)

var usageKindName = map[UsageKind]string{
	UsageKind_SquadMeetup: "squad meetup",
	UsageKind_Event:       "event",
	UsageKind_FreeEvent:   "free event",
	UsageKind_Mission:     "mission",
}

func GetUsageKindName(k UsageKind) string {
	n, ok := usageKindName[k]
	if ok {
		return n
	}
	return fmt.Sprintf("Undefined kind=%s", string(k))
}

// 用量计数窗口
type Window int8

const (
	Window_Month   Window = 1 // 月
	Window_Quarter Window = 2 // 季度
)

// 用量类型所属的计数窗口
func (k UsageKind) Window() Window {
	if k == UsageKind_FreeEvent {
		return Window_Quarter
	}
	return Window_Month
}

// 用量类型在文档中的字段名
func (k UsageKind) Field() string {
	switch k {
	case UsageKind_SquadMeetup:
		return "usage.squadMeetupsThisMonth"
	case UsageKind_Event:
		return "usage.eventsThisMonth"
	case UsageKind_FreeEvent:
		return "usage.freeEventsThisQuarter"
	case UsageKind_Mission:
		return "usage.missionsThisMonth"
	}
	return ""
}

// 窗口标识, 月为 2006-01, 季度为 2006-Q1
func WindowID(w Window, t time.Time) string {
	t = t.UTC()
	if w == Window_Quarter {
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}
	return t.Format("2006-01")
}

// 窗口起始时间
func WindowStart(w Window, t time.Time) time.Time {
	t = t.UTC()
	month := t.Month()
	if w == Window_Quarter {
		month = time.Month((int(month)-1)/3*3 + 1)
	}
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// 副作用类型
type SideEffectType int8

const (
	SideEffectType_AfterUsageRecorded         SideEffectType = iota + 1 // 用量记录后
	SideEffectType_AfterParticipationReviewed                           // 参与审核后
)
