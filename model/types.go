package model

import (
	"errors"
	"time"
)

var (
	// 文档不存在
	ErrNotFound = errors.New("document not found")
	// 文档已存在
	ErrAlreadyExists = errors.New("document already exists")
)

// 经纬度
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// 任务奖励
type Reward struct {
	Points int64 `bson:"points" json:"points"`
}

// 任务
type Mission struct {
	ID           string `bson:"_id" json:"id"`
	BusinessID   string `bson:"businessId" json:"businessId"`
	BusinessName string `bson:"businessName,omitempty" json:"businessName,omitempty"`
	Title        string `bson:"title" json:"title"`
	Description  string `bson:"description,omitempty" json:"description,omitempty"`

	Category         string      `bson:"category,omitempty" json:"category,omitempty"` // 主分类
	TargetCategories []string    `bson:"targetCategories,omitempty" json:"targetCategories,omitempty"`
	TargetLevels     []UserLevel `bson:"targetLevels,omitempty" json:"targetLevels,omitempty"` // 为空表示不限等级
	Goal             GoalType    `bson:"goal,omitempty" json:"goal,omitempty"`
	Reward           Reward      `bson:"reward" json:"reward"`
	Budget           int64       `bson:"budget,omitempty" json:"budget,omitempty"`

	City            string       `bson:"city,omitempty" json:"city,omitempty"`
	Country         string       `bson:"country,omitempty" json:"country,omitempty"`
	Location        *Location    `bson:"location,omitempty" json:"location,omitempty"`
	BusinessType    BusinessType `bson:"businessType,omitempty" json:"businessType,omitempty"`
	GeoScope        GeoScope     `bson:"geoScope,omitempty" json:"geoScope,omitempty"`
	TargetCountries []string     `bson:"targetCountries,omitempty" json:"targetCountries,omitempty"`

	MaxParticipants     int64 `bson:"maxParticipants" json:"maxParticipants"` // 0表示不限
	CurrentParticipants int64 `bson:"currentParticipants" json:"currentParticipants"`
	ApprovalRequired    bool  `bson:"approvalRequired" json:"approvalRequired"`
	AutoApprove         bool  `bson:"autoApprove" json:"autoApprove"`

	Status     MissionStatus `bson:"status" json:"status"`
	CreatedAt  time.Time     `bson:"createdAt" json:"createdAt"`
	ValidUntil time.Time     `bson:"validUntil,omitempty" json:"validUntil,omitempty"` // 零值表示长期有效

	// 创建时计算, 之后不再更新
	Priority      Priority `bson:"priority" json:"priority"`
	PriorityScore int      `bson:"priorityScore" json:"priorityScore"`
}

// 剩余名额, unlimited为true时表示不限
func (m *Mission) SlotsRemaining() (remaining int64, unlimited bool) {
	if m.MaxParticipants <= 0 {
		return 0, true
	}
	remaining = m.MaxParticipants - m.CurrentParticipants
	if remaining < 0 {
		remaining = 0
	}
	return remaining, false
}

// 是否已过期
func (m *Mission) Expired(now time.Time) bool {
	return !m.ValidUntil.IsZero() && !now.Before(m.ValidUntil)
}

// 优先级计算结果
type PriorityResult struct {
	Priority      Priority `json:"priority"`
	PriorityScore int      `json:"priorityScore"`
}

// 用户
type User struct {
	ID           string       `bson:"_id" json:"id"`
	Name         string       `bson:"name,omitempty" json:"name,omitempty"`
	Role         Role         `bson:"role" json:"role"`
	Interests    []string     `bson:"interests,omitempty" json:"interests,omitempty"`
	Level        UserLevel    `bson:"level,omitempty" json:"level,omitempty"`
	City         string       `bson:"city,omitempty" json:"city,omitempty"`
	Country      string       `bson:"country,omitempty" json:"country,omitempty"`
	Location     *Location    `bson:"location,omitempty" json:"location,omitempty"`
	BusinessType BusinessType `bson:"businessType,omitempty" json:"businessType,omitempty"`
}

// 参与记录
type Participation struct {
	ID         string              `bson:"_id" json:"id"`
	MissionID  string              `bson:"missionId" json:"missionId"`
	UserID     string              `bson:"userId" json:"userId"`
	Status     ParticipationStatus `bson:"status" json:"status"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	ReviewedAt time.Time           `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewerID string              `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	Note       string              `bson:"note,omitempty" json:"note,omitempty"`
}

// 用量计数
type UsageCounters struct {
	SquadMeetupsThisMonth int64 `bson:"squadMeetupsThisMonth" json:"squadMeetupsThisMonth"`
	EventsThisMonth       int64 `bson:"eventsThisMonth" json:"eventsThisMonth"`
	FreeEventsThisQuarter int64 `bson:"freeEventsThisQuarter" json:"freeEventsThisQuarter"`
	MissionsThisMonth     int64 `bson:"missionsThisMonth" json:"missionsThisMonth"`
}

func (u UsageCounters) Get(k UsageKind) int64 {
	switch k {
	case UsageKind_SquadMeetup:
		return u.SquadMeetupsThisMonth
	case UsageKind_Event:
		return u.EventsThisMonth
	case UsageKind_FreeEvent:
		return u.FreeEventsThisQuarter
	case UsageKind_Mission:
		return u.MissionsThisMonth
	}
	return 0
}

func (u *UsageCounters) Add(k UsageKind, delta int64) {
	switch k {
	case UsageKind_SquadMeetup:
		u.SquadMeetupsThisMonth += delta
	case UsageKind_Event:
		u.EventsThisMonth += delta
	case UsageKind_FreeEvent:
		u.FreeEventsThisQuarter += delta
	case UsageKind_Mission:
		u.MissionsThisMonth += delta
	}
}

// 清零某个窗口的计数
func (u *UsageCounters) Reset(w Window) {
	if w == Window_Quarter {
		u.FreeEventsThisQuarter = 0
		return
	}
	u.SquadMeetupsThisMonth = 0
	u.EventsThisMonth = 0
	u.MissionsThisMonth = 0
}

// 订阅, 每个商家每个级别一条
type Subscription struct {
	OwnerID            string             `bson:"_id" json:"ownerId"`
	Level              SubscriptionLevel  `bson:"level" json:"level"`
	Tier               Tier               `bson:"tier" json:"tier"`
	Status             SubscriptionStatus `bson:"status" json:"status"`
	Usage              UsageCounters      `bson:"usage" json:"usage"`
	LastMonthlyReset   time.Time          `bson:"lastMonthlyReset" json:"lastMonthlyReset"`
	LastQuarterlyReset time.Time          `bson:"lastQuarterlyReset" json:"lastQuarterlyReset"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// 档位权益
type Benefit struct {
	Level SubscriptionLevel `json:"level"`
	Tier  Tier              `json:"tier"`

	SquadMeetupsPerMonth int64 `json:"squadMeetupsPerMonth"`
	EventsPerMonth       int64 `json:"eventsPerMonth"`
	FreeEventsPerQuarter int64 `json:"freeEventsPerQuarter"`
	MissionsPerMonth     int64 `json:"missionsPerMonth"`
	UnlimitedEvents      bool  `json:"unlimitedEvents"`
	UnlimitedMissions    bool  `json:"unlimitedMissions"`

	PriorityMatching  bool `json:"priorityMatching"`
	Analytics         bool `json:"analytics"`
	FeaturedPlacement bool `json:"featuredPlacement"`
	DedicatedSupport  bool `json:"dedicatedSupport"`
}

// 获取用量上限
func (b Benefit) Limit(k UsageKind) (limit int64, unlimited bool) {
	switch k {
	case UsageKind_SquadMeetup:
		return b.SquadMeetupsPerMonth, false
	case UsageKind_Event:
		return b.EventsPerMonth, b.UnlimitedEvents
	case UsageKind_FreeEvent:
		return b.FreeEventsPerQuarter, false
	case UsageKind_Mission:
		return b.MissionsPerMonth, b.UnlimitedMissions
	}
	return 0, false
}

// 配额判定结果. 拒绝不是错误, 调用方根据 Reason 展示提示
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Kind      UsageKind `json:"kind"`
	Tier      Tier      `json:"tier"`
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Unlimited bool      `json:"unlimited"`
}

// 原子计数器key
type CounterKey struct {
	OwnerID string
	Level   SubscriptionLevel
	Kind    UsageKind
	Window  string
}

// 原子计数结果
type CounterResult struct {
	Allowed   bool
	OldUsed   int64
	NewUsed   int64
	IsReentry bool // 同一个引用id重复调用
}

// 推荐结果
type RankedMission struct {
	Mission    *Mission       `json:"mission"`
	Score      float64        `json:"score"`
	DistanceKm *float64       `json:"distanceKm,omitempty"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}

// 推荐分明细
type ScoreBreakdown struct {
	PriorityBonus     float64 `json:"priorityBonus"`
	PriorityScorePart float64 `json:"priorityScorePart"`
	InterestBonus     float64 `json:"interestBonus"`
	LevelBonus        float64 `json:"levelBonus"`
	ProximityBonus    float64 `json:"proximityBonus"`
	AvailabilityBonus float64 `json:"availabilityBonus"`
	RecencyBonus      float64 `json:"recencyBonus"`
}

func (b ScoreBreakdown) Total() float64 {
	return b.PriorityBonus + b.PriorityScorePart + b.InterestBonus + b.LevelBonus +
		b.ProximityBonus + b.AvailabilityBonus + b.RecencyBonus
}

// 副作用数据
type SideEffectData struct {
	Type    SideEffectType    `json:"t"`   // 副作用类型
	Level   SubscriptionLevel `json:"l"`   // 订阅级别
	OwnerID string            `json:"o"`   // 订阅所属者
	RefID   string            `json:"rid"` // 引用id, 用于幂等
	Kind    UsageKind         `json:"k"`   // 用量类型
	Used    int64             `json:"u"`   // 记录后的用量
	Tier    Tier              `json:"tr"`  // 档位
	Window  string            `json:"w"`   // 记录时的计数窗口

	MissionID       string              `json:"mid,omitempty"`
	UserID          string              `json:"uid,omitempty"`
	ParticipationSt ParticipationStatus `json:"ps,omitempty"`
	Remark          string              `json:"rk,omitempty"` // 备注
}
