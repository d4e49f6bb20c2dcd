package mission

import (
	"context"
	"time"

	"github.com/zlyuancn/engage/model"
)

// 任务相关文档存储. 不存在时返回 model.ErrNotFound, 重复插入返回 model.ErrAlreadyExists
type Store interface {
	InsertMission(ctx context.Context, m *model.Mission) error
	GetMission(ctx context.Context, id string) (*model.Mission, error)
	// 进行中且未过期的任务
	ListActiveMissions(ctx context.Context, now time.Time) ([]*model.Mission, error)
	// 占用一个名额, 已满或不在进行中返回false
	IncrParticipants(ctx context.Context, missionID string) (bool, error)
	// 归还一个名额
	DecrParticipants(ctx context.Context, missionID string) error
	SetMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error

	GetUser(ctx context.Context, id string) (*model.User, error)

	InsertParticipation(ctx context.Context, p *model.Participation) error
	GetParticipation(ctx context.Context, id string) (*model.Participation, error)
	ListUserParticipations(ctx context.Context, userID string) ([]*model.Participation, error)
	// 仅当状态为from时更新
	UpdateParticipationStatus(ctx context.Context, id string, from, to model.ParticipationStatus, reviewerID, note string, now time.Time) (bool, error)
}
