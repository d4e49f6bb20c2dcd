package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zlyuancn/engage/model"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		mission   *model.Mission
		wantScore int
		want      model.Priority
	}{
		{
			name: "high value sales mission",
			mission: &model.Mission{
				Reward:           model.Reward{Points: 1200},
				Budget:           1200,
				Goal:             model.GoalType_Sales,
				MaxParticipants:  5,
				ValidUntil:       now.Add(48 * time.Hour),
				ApprovalRequired: true,
				AutoApprove:      false,
			},
			wantScore: 98,
			want:      model.Priority_High,
		},
		{name: "nil mission keeps base score", mission: nil, wantScore: 50, want: model.Priority_Medium},
		{name: "empty mission", mission: &model.Mission{}, wantScore: 50, want: model.Priority_Medium},
		{
			name:      "auto approve removes friction",
			mission:   &model.Mission{ApprovalRequired: true, AutoApprove: true},
			wantScore: 50,
			want:      model.Priority_Medium,
		},
		{
			name: "mid bands",
			mission: &model.Mission{
				Reward:     model.Reward{Points: 500},
				Budget:     500,
				Goal:       model.GoalType_Traffic,
				ValidUntil: now.Add(6 * 24 * time.Hour),
			},
			wantScore: 76,
			want:      model.Priority_High,
		},
		{
			name: "low bands",
			mission: &model.Mission{
				Reward:          model.Reward{Points: 200},
				Goal:            model.GoalType_Content,
				MaxParticipants: 50,
				ValidUntil:      now.Add(30 * 24 * time.Hour),
			},
			wantScore: 59,
			want:      model.Priority_Medium,
		},
		{
			name:      "pro targeting",
			mission:   &model.Mission{Goal: model.GoalType_Growth, TargetLevels: []model.UserLevel{model.UserLevel_Advanced, model.UserLevel_Pro}},
			wantScore: 63,
			want:      model.Priority_Medium,
		},
		{
			name:      "expired mission gets no time bonus",
			mission:   &model.Mission{ValidUntil: now.Add(-time.Hour)},
			wantScore: 50,
			want:      model.Priority_Medium,
		},
		{
			name: "everything maxed is clamped",
			mission: &model.Mission{
				Reward:          model.Reward{Points: 5000},
				Budget:          5000,
				Goal:            model.GoalType_Sales,
				MaxParticipants: 1,
				ValidUntil:      now.Add(time.Hour),
				TargetLevels:    []model.UserLevel{model.UserLevel_Pro},
			},
			wantScore: 100,
			want:      model.Priority_High,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.mission, now)
			assert.Equal(t, tt.wantScore, got.PriorityScore)
			assert.Equal(t, tt.want, got.Priority)
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	m := &model.Mission{Reward: model.Reward{Points: 700}, Goal: model.GoalType_Growth, MaxParticipants: 8}
	first := Calculate(m, now)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Calculate(m, now))
	}
}

func TestBucketThresholds(t *testing.T) {
	for score := -20; score <= 120; score++ {
		s := Clamp(score)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 100)

		p := Bucket(s)
		switch {
		case s >= 70:
			assert.Equal(t, model.Priority_High, p, "score %d", s)
		case s >= 40:
			assert.Equal(t, model.Priority_Medium, p, "score %d", s)
		default:
			assert.Equal(t, model.Priority_Low, p, "score %d", s)
		}
	}
}

func TestTimePressureBands(t *testing.T) {
	assert.Equal(t, 10, timePressureBonus(now.Add(3*24*time.Hour), now))
	assert.Equal(t, 5, timePressureBonus(now.Add(3*24*time.Hour+time.Minute), now))
	assert.Equal(t, 5, timePressureBonus(now.Add(7*24*time.Hour), now))
	assert.Equal(t, 0, timePressureBonus(now.Add(8*24*time.Hour), now))
	assert.Equal(t, 0, timePressureBonus(time.Time{}, now))
}
