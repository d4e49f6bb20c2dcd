package mission

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/side_effect"
)

// 自动审核时的审核人
const AutoReviewer = "auto"

// 同一用户对同一任务只有一条参与记录
func ParticipationID(missionID, userID string) string {
	return missionID + ":" + userID
}

/*
申请参与任务.

不需要审核或开启了自动通过时直接通过并占用名额, 否则进入待审核状态, 审核通过时才占用名额.
*/
func (s *Service) Apply(ctx context.Context, missionID, userID string) (*model.Participation, error) {
	m, err := s.GetMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if m.Status != model.MissionStatus_Active {
		return nil, ErrMissionInactive
	}
	if m.Expired(now) {
		return nil, ErrMissionExpired
	}
	if remaining, unlimited := m.SlotsRemaining(); !unlimited && remaining == 0 {
		return nil, ErrMissionFull
	}

	if _, err = s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, pkgerrors.Wrap(err, "get user")
	}

	id := ParticipationID(missionID, userID)
	_, err = s.store.GetParticipation(ctx, id)
	if err == nil {
		return nil, ErrAlreadyApplied
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, pkgerrors.Wrap(err, "get participation")
	}

	p := &model.Participation{
		ID:        id,
		MissionID: missionID,
		UserID:    userID,
		Status:    model.ParticipationStatus_Pending,
		CreatedAt: now,
	}

	immediate := !m.ApprovalRequired || m.AutoApprove
	if immediate {
		ok, err := s.store.IncrParticipants(ctx, missionID)
		if err != nil {
			logger.Error(ctx, "Apply call store.IncrParticipants err", zap.String("missionID", missionID), zap.Error(err))
			return nil, pkgerrors.Wrap(err, "incr participants")
		}
		if !ok {
			return nil, ErrMissionFull
		}
		p.Status = model.ParticipationStatus_Approved
		p.ReviewedAt = now
		p.ReviewerID = AutoReviewer
	}

	err = s.store.InsertParticipation(ctx, p)
	if err != nil && immediate {
		s.releaseSlot(ctx, missionID)
	}
	if errors.Is(err, model.ErrAlreadyExists) {
		return nil, ErrAlreadyApplied
	}
	if err != nil {
		logger.Error(ctx, "Apply call store.InsertParticipation err", zap.Any("participation", p), zap.Error(err))
		return nil, pkgerrors.Wrap(err, "insert participation")
	}

	if immediate {
		s.afterReviewed(ctx, m, p)
	}
	return p, nil
}

/*
审核参与申请, 只能从待审核变为通过或拒绝.

审核人必须是任务所属商家或管理员. 通过时占用名额, 名额已满时申请保持待审核.
*/
func (s *Service) Review(ctx context.Context, participationID, reviewerID string, approve bool, note string) (*model.Participation, error) {
	p, err := s.store.GetParticipation(ctx, participationID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrParticipationNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get participation")
	}
	if p.Status != model.ParticipationStatus_Pending {
		return nil, ErrInvalidTransition
	}

	m, err := s.GetMission(ctx, p.MissionID)
	if err != nil {
		return nil, err
	}
	if err = s.checkReviewer(ctx, m, reviewerID); err != nil {
		return nil, err
	}

	to := model.ParticipationStatus_Rejected
	if approve {
		to = model.ParticipationStatus_Approved
		ok, err := s.store.IncrParticipants(ctx, m.ID)
		if err != nil {
			logger.Error(ctx, "Review call store.IncrParticipants err", zap.String("missionID", m.ID), zap.Error(err))
			return nil, pkgerrors.Wrap(err, "incr participants")
		}
		if !ok {
			return nil, ErrMissionFull
		}
	}

	now := s.now()
	updated, err := s.store.UpdateParticipationStatus(ctx, p.ID, model.ParticipationStatus_Pending, to, reviewerID, note, now)
	if approve && (err != nil || !updated) {
		s.releaseSlot(ctx, m.ID)
	}
	if err != nil {
		logger.Error(ctx, "Review call store.UpdateParticipationStatus err", zap.String("participationID", p.ID), zap.Error(err))
		return nil, pkgerrors.Wrap(err, "update participation")
	}
	if !updated {
		return nil, ErrInvalidTransition
	}

	p.Status = to
	p.ReviewerID = reviewerID
	p.Note = note
	p.ReviewedAt = now
	s.afterReviewed(ctx, m, p)
	return p, nil
}

// 归还占用的名额
func (s *Service) releaseSlot(ctx context.Context, missionID string) {
	if err := s.store.DecrParticipants(ctx, missionID); err != nil {
		logger.Error(ctx, "releaseSlot call store.DecrParticipants err", zap.String("missionID", missionID), zap.Error(err))
	}
}

func (s *Service) checkReviewer(ctx context.Context, m *model.Mission, reviewerID string) error {
	if reviewerID != "" && reviewerID == m.BusinessID {
		return nil
	}
	u, err := s.store.GetUser(ctx, reviewerID)
	if errors.Is(err, model.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return pkgerrors.Wrap(err, "get reviewer")
	}
	if u.Role != model.Role_Admin {
		return ErrForbidden
	}
	return nil
}

func (s *Service) afterReviewed(ctx context.Context, m *model.Mission, p *model.Participation) {
	side_effect.Dispatch(ctx, &model.SideEffectData{
		Type:            model.SideEffectType_AfterParticipationReviewed,
		Level:           model.Level2,
		OwnerID:         m.BusinessID,
		RefID:           p.ID,
		MissionID:       m.ID,
		UserID:          p.UserID,
		ParticipationSt: p.Status,
		Remark:          p.Note,
	})
}
