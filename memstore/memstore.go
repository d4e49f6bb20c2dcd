// Package memstore 内存实现的文档存储, 原子计数器和副作用状态标记. 用于测试和单机运行.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zlyuancn/engage/model"
)

type subKey struct {
	Level   model.SubscriptionLevel
	OwnerID string
}

type Store struct {
	mx             sync.Mutex
	subscriptions  map[subKey]model.Subscription
	missions       map[string]model.Mission
	users          map[string]model.User
	participations map[string]model.Participation
}

func New() *Store {
	return &Store{
		subscriptions:  make(map[subKey]model.Subscription),
		missions:       make(map[string]model.Mission),
		users:          make(map[string]model.User),
		participations: make(map[string]model.Participation),
	}
}

// ---- 订阅 ----

func (s *Store) GetSubscription(_ context.Context, level model.SubscriptionLevel, ownerID string) (*model.Subscription, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	sub, ok := s.subscriptions[subKey{level, ownerID}]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &sub, nil
}

func (s *Store) InsertSubscription(_ context.Context, sub *model.Subscription) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	k := subKey{sub.Level, sub.OwnerID}
	if _, ok := s.subscriptions[k]; ok {
		return model.ErrAlreadyExists
	}
	s.subscriptions[k] = *sub
	return nil
}

// 直接写入订阅, 覆盖已有数据
func (s *Store) PutSubscription(sub model.Subscription) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.subscriptions[subKey{sub.Level, sub.OwnerID}] = sub
}

func (s *Store) update(level model.SubscriptionLevel, ownerID string, fn func(sub *model.Subscription)) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	k := subKey{level, ownerID}
	sub, ok := s.subscriptions[k]
	if !ok {
		return model.ErrNotFound
	}
	fn(&sub)
	s.subscriptions[k] = sub
	return nil
}

func (s *Store) IncrUsage(_ context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, delta int64, now time.Time) (int64, error) {
	var used int64
	err := s.update(level, ownerID, func(sub *model.Subscription) {
		sub.Usage.Add(kind, delta)
		sub.UpdatedAt = now
		used = sub.Usage.Get(kind)
	})
	return used, err
}

func (s *Store) SetTier(_ context.Context, level model.SubscriptionLevel, ownerID string, tier model.Tier, now time.Time) error {
	return s.update(level, ownerID, func(sub *model.Subscription) {
		sub.Tier = tier
		sub.UpdatedAt = now
	})
}

func (s *Store) SetStatus(_ context.Context, level model.SubscriptionLevel, ownerID string, status model.SubscriptionStatus, now time.Time) error {
	return s.update(level, ownerID, func(sub *model.Subscription) {
		sub.Status = status
		sub.UpdatedAt = now
	})
}

func (s *Store) ResetUsage(_ context.Context, level model.SubscriptionLevel, ownerID string, w model.Window, now time.Time) error {
	return s.update(level, ownerID, func(sub *model.Subscription) {
		sub.Usage.Reset(w)
		if w == model.Window_Quarter {
			sub.LastQuarterlyReset = now
		} else {
			sub.LastMonthlyReset = now
		}
		sub.UpdatedAt = now
	})
}

func (s *Store) ListResetDue(_ context.Context, level model.SubscriptionLevel, w model.Window, before time.Time) ([]string, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var ret []string
	for k, sub := range s.subscriptions {
		if k.Level != level {
			continue
		}
		last := sub.LastMonthlyReset
		if w == model.Window_Quarter {
			last = sub.LastQuarterlyReset
		}
		if last.Before(before) {
			ret = append(ret, k.OwnerID)
		}
	}
	sort.Strings(ret)
	return ret, nil
}

// ---- 任务 ----

func (s *Store) InsertMission(_ context.Context, m *model.Mission) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.missions[m.ID]; ok {
		return model.ErrAlreadyExists
	}
	s.missions[m.ID] = *m
	return nil
}

func (s *Store) GetMission(_ context.Context, id string) (*model.Mission, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListActiveMissions(_ context.Context, now time.Time) ([]*model.Mission, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	ret := make([]*model.Mission, 0, len(s.missions))
	for _, m := range s.missions {
		if m.Status != model.MissionStatus_Active || m.Expired(now) {
			continue
		}
		m := m
		ret = append(ret, &m)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

func (s *Store) IncrParticipants(_ context.Context, missionID string) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	m, ok := s.missions[missionID]
	if !ok || m.Status != model.MissionStatus_Active {
		return false, nil
	}
	if m.MaxParticipants > 0 && m.CurrentParticipants >= m.MaxParticipants {
		return false, nil
	}
	m.CurrentParticipants++
	s.missions[missionID] = m
	return true, nil
}

func (s *Store) DecrParticipants(_ context.Context, missionID string) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return model.ErrNotFound
	}
	if m.CurrentParticipants > 0 {
		m.CurrentParticipants--
		s.missions[missionID] = m
	}
	return nil
}

func (s *Store) SetMissionStatus(_ context.Context, missionID string, status model.MissionStatus) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	m, ok := s.missions[missionID]
	if !ok {
		return model.ErrNotFound
	}
	m.Status = status
	s.missions[missionID] = m
	return nil
}

// ---- 用户 ----

func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &u, nil
}

func (s *Store) PutUser(u model.User) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.users[u.ID] = u
}

// ---- 参与记录 ----

func (s *Store) InsertParticipation(_ context.Context, p *model.Participation) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if _, ok := s.participations[p.ID]; ok {
		return model.ErrAlreadyExists
	}
	s.participations[p.ID] = *p
	return nil
}

func (s *Store) GetParticipation(_ context.Context, id string) (*model.Participation, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	p, ok := s.participations[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListUserParticipations(_ context.Context, userID string) ([]*model.Participation, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	var ret []*model.Participation
	for _, p := range s.participations {
		if p.UserID == userID {
			p := p
			ret = append(ret, &p)
		}
	}
	return ret, nil
}

func (s *Store) UpdateParticipationStatus(_ context.Context, id string, from, to model.ParticipationStatus,
	reviewerID, note string, now time.Time) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	p, ok := s.participations[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	p.ReviewerID = reviewerID
	p.Note = note
	p.ReviewedAt = now
	s.participations[id] = p
	return true, nil
}
