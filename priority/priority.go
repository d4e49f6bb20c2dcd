// Package priority 计算任务的优先级. 只在任务创建时调用一次, 之后任务状态变化不会重新计算.
package priority

import (
	"math"
	"time"

	"github.com/zlyuancn/engage/model"
)

const (
	baseScore = 50

	HighThreshold   = 70
	MediumThreshold = 40
)

var goalBonus = map[model.GoalType]int{
	model.GoalType_Sales:   10,
	model.GoalType_Growth:  8,
	model.GoalType_Traffic: 6,
	model.GoalType_Content: 4,
}

// 计算任务优先级
func Calculate(m *model.Mission, now time.Time) model.PriorityResult {
	score := baseScore
	if m != nil {
		score += rewardBonus(m.Reward.Points)
		score += budgetBonus(m.Budget)
		score += goalBonus[m.Goal]
		score += scarcityBonus(m.MaxParticipants)
		score += timePressureBonus(m.ValidUntil, now)
		if m.ApprovalRequired && !m.AutoApprove {
			score -= 5
		}
		if targetsPro(m.TargetLevels) {
			score += 5
		}
	}

	score = Clamp(score)
	return model.PriorityResult{
		Priority:      Bucket(score),
		PriorityScore: score,
	}
}

func Clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// 分数对应的优先级
func Bucket(score int) model.Priority {
	switch {
	case score >= HighThreshold:
		return model.Priority_High
	case score >= MediumThreshold:
		return model.Priority_Medium
	}
	return model.Priority_Low
}

func rewardBonus(points int64) int {
	switch {
	case points >= 1000:
		return 15
	case points >= 500:
		return 10
	case points >= 200:
		return 5
	}
	return 0
}

func budgetBonus(budget int64) int {
	switch {
	case budget >= 1000:
		return 10
	case budget >= 500:
		return 5
	}
	return 0
}

// 名额稀缺, 0表示不限
func scarcityBonus(maxParticipants int64) int {
	if maxParticipants > 0 && maxParticipants <= 10 {
		return 8
	}
	return 0
}

// 剩余天数向上取整, 已过期或无期限不加分
func timePressureBonus(validUntil time.Time, now time.Time) int {
	if validUntil.IsZero() || !validUntil.After(now) {
		return 0
	}
	days := int(math.Ceil(validUntil.Sub(now).Hours() / 24))
	switch {
	case days <= 3:
		return 10
	case days <= 7:
		return 5
	}
	return 0
}

func targetsPro(levels []model.UserLevel) bool {
	for _, l := range levels {
		if l == model.UserLevel_Pro {
			return true
		}
	}
	return false
}
