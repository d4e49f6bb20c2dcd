package quota

import (
	"context"

	"github.com/zlyuancn/engage/model"
)

// 用户订阅
type Level1 struct{ e *Engine }

func (l Level1) CanAttendSquadMeetup(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level1, ownerID, model.UsageKind_SquadMeetup)
}

func (l Level1) CanAttendEvent(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level1, ownerID, model.UsageKind_Event)
}

func (l Level1) CanUseFreeEvent(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level1, ownerID, model.UsageKind_FreeEvent)
}

func (l Level1) RecordSquadMeetup(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level1, ownerID, model.UsageKind_SquadMeetup, refID)
}

func (l Level1) RecordEvent(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level1, ownerID, model.UsageKind_Event, refID)
}

func (l Level1) RecordFreeEvent(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level1, ownerID, model.UsageKind_FreeEvent, refID)
}

// 商家订阅
type Level2 struct{ e *Engine }

func (l Level2) CanCreateMission(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level2, ownerID, model.UsageKind_Mission)
}

func (l Level2) CanHostEvent(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level2, ownerID, model.UsageKind_Event)
}

func (l Level2) CanUseFreeEvent(ctx context.Context, ownerID string) model.Decision {
	return l.e.Check(ctx, model.Level2, ownerID, model.UsageKind_FreeEvent)
}

func (l Level2) RecordMission(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level2, ownerID, model.UsageKind_Mission, refID)
}

func (l Level2) RecordEvent(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level2, ownerID, model.UsageKind_Event, refID)
}

func (l Level2) RecordFreeEvent(ctx context.Context, ownerID, refID string) error {
	return l.e.Record(ctx, model.Level2, ownerID, model.UsageKind_FreeEvent, refID)
}
