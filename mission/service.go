package mission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/geo"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/priority"
	"github.com/zlyuancn/engage/quota"
	"github.com/zlyuancn/engage/ranker"
)

type Service struct {
	store Store
	quota *quota.Engine
	now   func() time.Time
	newID func() string
}

type Option func(s *Service)

func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func NewService(store Store, q *quota.Engine, opts ...Option) *Service {
	s := &Service{
		store: store,
		quota: q,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type LocationReq struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// 创建任务请求
type CreateMissionReq struct {
	BusinessID  string `json:"businessId" validate:"required"`
	Title       string `json:"title" validate:"notblank,max=120"`
	Description string `json:"description" validate:"max=2000"`

	Category         string            `json:"category" validate:"notblank"`
	TargetCategories []string          `json:"targetCategories" validate:"dive,notblank"`
	TargetLevels     []model.UserLevel `json:"targetLevels" validate:"dive,oneof=BEGINNER INTERMEDIATE ADVANCED PRO"`
	Goal             model.GoalType    `json:"goal" validate:"required,oneof=SALES GROWTH TRAFFIC CONTENT"`
	RewardPoints     int64             `json:"rewardPoints" validate:"gte=0"`
	Budget           int64             `json:"budget" validate:"gte=0"`

	MaxParticipants  int64      `json:"maxParticipants" validate:"gte=0"` // 0表示不限
	ApprovalRequired bool       `json:"approvalRequired"`
	AutoApprove      bool       `json:"autoApprove"`
	ValidUntil       *time.Time `json:"validUntil"`

	// 为空时使用商家资料
	City            string       `json:"city"`
	Country         string       `json:"country"`
	Location        *LocationReq `json:"location"`
	TargetCountries []string     `json:"targetCountries" validate:"dive,notblank"`
}

/*
创建任务.

需要商家的level2订阅还有任务额度, 额度不足时返回的任务为nil, 原因在 Decision 中.
优先级和可见范围只在创建时计算一次.
*/
func (s *Service) CreateMission(ctx context.Context, req *CreateMissionReq) (*model.Mission, model.Decision, error) {
	now := s.now()
	if err := validateCreateMission(req, now); err != nil {
		return nil, model.Decision{}, err
	}

	biz, err := s.store.GetUser(ctx, req.BusinessID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.Decision{}, ErrNotBusiness
	}
	if err != nil {
		logger.Error(ctx, "CreateMission call store.GetUser err", zap.String("businessID", req.BusinessID), zap.Error(err))
		return nil, model.Decision{}, pkgerrors.Wrap(err, "get business")
	}
	if biz.Role != model.Role_Business {
		return nil, model.Decision{}, ErrNotBusiness
	}

	id := s.newID()
	d, r, err := s.quota.Reserve(ctx, model.Level2, biz.ID, model.UsageKind_Mission, id)
	if err != nil {
		return nil, d, err
	}
	if !d.Allowed {
		return nil, d, nil
	}

	m := buildMission(id, req, biz, now)
	pr := priority.Calculate(m, now)
	m.Priority, m.PriorityScore = pr.Priority, pr.PriorityScore
	m.GeoScope = geo.ResolveMissionScope(m.BusinessType, d.Tier, m.TargetCountries)

	if err = s.store.InsertMission(ctx, m); err != nil {
		logger.Error(ctx, "CreateMission call store.InsertMission err", zap.Any("mission", m), zap.Error(err))
		// 归还预占的额度
		_ = s.quota.Release(ctx, r)
		return nil, d, pkgerrors.Wrap(err, "insert mission")
	}

	used, err := s.quota.Commit(ctx, r)
	if err != nil {
		logger.Error(ctx, "CreateMission call quota.Commit err", zap.String("missionID", id), zap.Error(err))
	} else {
		d.Used = used
	}
	return m, d, nil
}

func buildMission(id string, req *CreateMissionReq, biz *model.User, now time.Time) *model.Mission {
	m := &model.Mission{
		ID:               id,
		BusinessID:       biz.ID,
		BusinessName:     biz.Name,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		TargetCategories: req.TargetCategories,
		TargetLevels:     req.TargetLevels,
		Goal:             req.Goal,
		Reward:           model.Reward{Points: req.RewardPoints},
		Budget:           req.Budget,
		City:             req.City,
		Country:          req.Country,
		BusinessType:     biz.BusinessType,
		TargetCountries:  req.TargetCountries,
		MaxParticipants:  req.MaxParticipants,
		ApprovalRequired: req.ApprovalRequired,
		AutoApprove:      req.AutoApprove,
		Status:           model.MissionStatus_Active,
		CreatedAt:        now,
	}
	if req.ValidUntil != nil {
		m.ValidUntil = *req.ValidUntil
	}
	if m.BusinessType == "" {
		m.BusinessType = model.BusinessType_Physical
	}
	if m.City == "" {
		m.City = biz.City
	}
	if m.Country == "" {
		m.Country = biz.Country
	}
	if req.Location != nil {
		m.Location = &model.Location{Lat: req.Location.Lat, Lng: req.Location.Lng}
	} else if biz.Location != nil {
		loc := *biz.Location
		m.Location = &loc
	}
	return m
}

func (s *Service) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	m, err := s.store.GetMission(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrMissionNotFound
	}
	return m, err
}

// 修改任务状态
func (s *Service) SetMissionStatus(ctx context.Context, missionID string, status model.MissionStatus) error {
	switch status {
	case model.MissionStatus_Active, model.MissionStatus_Paused, model.MissionStatus_Completed:
	default:
		return ErrInvalidInput
	}
	err := s.store.SetMissionStatus(ctx, missionID, status)
	if errors.Is(err, model.ErrNotFound) {
		return ErrMissionNotFound
	}
	return err
}

// 推荐请求
type RecommendReq struct {
	UserID   string
	Limit    int             // <=0 时使用默认数量
	Location *model.Location // 客户端定位, 为空时使用用户资料中的位置
}

func recommendLimit(limit int) int {
	if limit <= 0 {
		limit = conf.Conf.DefaultRecommendLimit
	}
	if limit > conf.Conf.MaxRecommendLimit {
		limit = conf.Conf.MaxRecommendLimit
	}
	return limit
}

// 获取用户的推荐任务
func (s *Service) GetMissionsForUser(ctx context.Context, req RecommendReq) ([]model.RankedMission, error) {
	user, err := s.store.GetUser(ctx, req.UserID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get user")
	}

	now := s.now()
	missions, err := s.store.ListActiveMissions(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list active missions")
	}

	joined := make(map[string]struct{})
	parts, err := s.store.ListUserParticipations(ctx, user.ID)
	if err != nil {
		logger.Warn(ctx, "GetMissionsForUser call store.ListUserParticipations err", zap.String("userID", user.ID), zap.Error(err))
	}
	for _, p := range parts {
		joined[p.MissionID] = struct{}{}
	}

	candidates := make([]*model.Mission, 0, len(missions))
	for _, m := range missions {
		if !eligible(m, user, joined, now) {
			continue
		}
		candidates = append(candidates, m)
	}

	signals := ranker.SignalsFromUser(user)
	if req.Location != nil {
		signals.Location = req.Location
	}
	return ranker.Rank(candidates, signals, recommendLimit(req.Limit), now), nil
}

func eligible(m *model.Mission, user *model.User, joined map[string]struct{}, now time.Time) bool {
	if m.Status != model.MissionStatus_Active || m.Expired(now) {
		return false
	}
	if m.BusinessID == user.ID {
		return false
	}
	if remaining, unlimited := m.SlotsRemaining(); !unlimited && remaining == 0 {
		return false
	}
	if _, ok := joined[m.ID]; ok {
		return false
	}
	return geo.IsMissionVisibleToUser(m, user)
}
