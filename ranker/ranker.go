// Package ranker 根据用户信号对任务进行个性化排序
package ranker

import (
	"sort"
	"strings"
	"time"

	"github.com/zlyuancn/engage/geo"
	"github.com/zlyuancn/engage/model"
)

// 用户信号
type UserSignals struct {
	Interests []string
	Level     model.UserLevel
	Location  *model.Location
}

func SignalsFromUser(u *model.User) UserSignals {
	if u == nil {
		return UserSignals{}
	}
	return UserSignals{Interests: u.Interests, Level: u.Level, Location: u.Location}
}

var priorityBonus = map[model.Priority]float64{
	model.Priority_High:   25,
	model.Priority_Medium: 15,
	model.Priority_Low:    5,
}

const (
	priorityScoreWeight  = 0.2
	targetCategoryBonus  = 10
	primaryCategoryBonus = 15
	levelMatchBonus      = 8
	levelUnrestrictBonus = 5
	availabilityCap      = 5
	recencyBonus         = 3
	recencyWindow        = 24 * time.Hour
)

// 计算单个任务的推荐分
func Score(m *model.Mission, u UserSignals, now time.Time) model.RankedMission {
	var b model.ScoreBreakdown
	b.PriorityBonus = priorityBonus[m.Priority]
	b.PriorityScorePart = float64(m.PriorityScore) * priorityScoreWeight
	b.InterestBonus = interestBonus(m, u.Interests)
	b.LevelBonus = levelBonus(m.TargetLevels, u.Level)

	ret := model.RankedMission{Mission: m}
	if u.Location != nil && m.Location != nil {
		d := geo.Distance(*u.Location, *m.Location)
		ret.DistanceKm = &d
		b.ProximityBonus = proximityBonus(d)
	}

	remaining, unlimited := m.SlotsRemaining()
	if unlimited {
		b.AvailabilityBonus = availabilityCap
	} else if remaining < availabilityCap {
		b.AvailabilityBonus = float64(remaining)
	} else {
		b.AvailabilityBonus = availabilityCap
	}

	if !m.CreatedAt.IsZero() && now.Sub(m.CreatedAt) < recencyWindow {
		b.RecencyBonus = recencyBonus
	}

	ret.Breakdown = b
	ret.Score = b.Total()
	return ret
}

// 对任务排序并取前limit个, limit<=0时返回全部
func Rank(missions []*model.Mission, u UserSignals, limit int, now time.Time) []model.RankedMission {
	ret := make([]model.RankedMission, 0, len(missions))
	for _, m := range missions {
		if m == nil {
			continue
		}
		ret = append(ret, Score(m, u, now))
	}
	sort.SliceStable(ret, func(i, j int) bool {
		return ret[i].Score > ret[j].Score
	})
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret
}

func interestBonus(m *model.Mission, interests []string) float64 {
	if len(interests) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(interests))
	for _, s := range interests {
		set[normalize(s)] = struct{}{}
	}

	var bonus float64
	for _, c := range m.TargetCategories {
		if _, ok := set[normalize(c)]; ok {
			bonus += targetCategoryBonus
		}
	}
	if m.Category != "" {
		if _, ok := set[normalize(m.Category)]; ok {
			bonus += primaryCategoryBonus
		}
	}
	return bonus
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func levelBonus(targets []model.UserLevel, level model.UserLevel) float64 {
	if len(targets) == 0 {
		return levelUnrestrictBonus
	}
	for _, l := range targets {
		if l == level {
			return levelMatchBonus
		}
	}
	return 0
}

func proximityBonus(km float64) float64 {
	switch {
	case km < 1:
		return 20
	case km < 5:
		return 10
	case km < 10:
		return 5
	}
	return 0
}
