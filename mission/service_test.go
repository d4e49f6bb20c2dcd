package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlyuancn/engage/memstore"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/quota"
)

var (
	now   = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	paris = model.Location{Lat: 48.8566, Lng: 2.3522}
)

type fixture struct {
	store *memstore.Store
	quota *quota.Engine
	svc   *Service
}

func newFixture(quotaOpts ...quota.Option) *fixture {
	store := memstore.New()
	clock := func() time.Time { return now }
	q := quota.NewEngine(store, append([]quota.Option{quota.WithClock(clock)}, quotaOpts...)...)

	seq := 0
	svc := NewService(store, q, WithClock(clock), WithIDGenerator(func() string {
		seq++
		return fmt.Sprintf("m%d", seq)
	}))

	store.PutUser(model.User{ID: "biz", Name: "Cafe", Role: model.Role_Business, BusinessType: model.BusinessType_Physical,
		City: "Paris", Country: "FR", Location: &paris})
	store.PutUser(model.User{ID: "web", Role: model.Role_Business, BusinessType: model.BusinessType_Online})
	store.PutUser(model.User{ID: "alice", Role: model.Role_Creator, City: "Paris", Country: "FR",
		Interests: []string{"coffee"}, Level: model.UserLevel_Pro, Location: &paris})
	store.PutUser(model.User{ID: "bob", Role: model.Role_Creator, City: "Lyon", Country: "FR"})
	store.PutUser(model.User{ID: "admin", Role: model.Role_Admin})
	return &fixture{store: store, quota: q, svc: svc}
}

func salesReq() *CreateMissionReq {
	validUntil := now.Add(48 * time.Hour)
	return &CreateMissionReq{
		BusinessID:       "biz",
		Title:            "Latte art week",
		Category:         "coffee",
		Goal:             model.GoalType_Sales,
		RewardPoints:     1200,
		Budget:           1200,
		MaxParticipants:  5,
		ApprovalRequired: true,
		ValidUntil:       &validUntil,
	}
}

func TestCreateMission(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	m, d, err := f.svc.CreateMission(ctx, salesReq())
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NotNil(t, m)

	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, model.Priority_High, m.Priority)
	assert.Equal(t, 98, m.PriorityScore)
	assert.Equal(t, model.GeoScope_City, m.GeoScope)
	assert.Equal(t, "Paris", m.City)
	assert.Equal(t, "FR", m.Country)
	require.NotNil(t, m.Location)
	assert.Equal(t, paris, *m.Location)
	assert.Equal(t, model.MissionStatus_Active, m.Status)

	stored, err := f.store.GetMission(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m.PriorityScore, stored.PriorityScore)

	sub, err := f.store.GetSubscription(ctx, model.Level2, "biz")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.Usage.MissionsThisMonth)
}

func TestCreateMissionQuota(t *testing.T) {
	for _, useCounter := range []bool{false, true} {
		t.Run(fmt.Sprintf("atomic=%v", useCounter), func(t *testing.T) {
			var opts []quota.Option
			if useCounter {
				opts = append(opts, quota.WithAtomicCounter(memstore.NewCounter()))
			}
			f := newFixture(opts...)
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				m, d, err := f.svc.CreateMission(ctx, salesReq())
				require.NoError(t, err)
				require.True(t, d.Allowed)
				require.NotNil(t, m)
			}

			m, d, err := f.svc.CreateMission(ctx, salesReq())
			require.NoError(t, err)
			assert.Nil(t, m)
			assert.False(t, d.Allowed)
			assert.Equal(t, "Monthly mission limit reached (3/3)", d.Reason)

			sub, err := f.store.GetSubscription(ctx, model.Level2, "biz")
			require.NoError(t, err)
			assert.Equal(t, int64(3), sub.Usage.MissionsThisMonth)
		})
	}
}

func TestCreateMissionGeoScope(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := salesReq()
	req.BusinessID = "web"
	m, _, err := f.svc.CreateMission(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.GeoScope_Global, m.GeoScope)

	req.TargetCountries = []string{"FR", "BE"}
	m, _, err = f.svc.CreateMission(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.GeoScope_MultiCountry, m.GeoScope)

	require.NoError(t, f.quota.ChangeTier(ctx, model.Level2, "biz", model.Tier_Gold))
	m, d, err := f.svc.CreateMission(ctx, salesReq())
	require.NoError(t, err)
	assert.Equal(t, model.Tier_Gold, d.Tier)
	assert.Equal(t, model.GeoScope_Country, m.GeoScope)
}

func TestCreateMissionValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	req := salesReq()
	req.Title = "  "
	req.Goal = "FAME"
	req.Budget = -1
	req.TargetLevels = []model.UserLevel{"GURU"}
	_, _, err := f.svc.CreateMission(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := make(map[string]string)
	for _, fe := range verr.Fields {
		fields[fe.Field] = fe.Error
	}
	assert.Equal(t, "title cannot be blank", fields["title"])
	assert.Contains(t, fields, "goal")
	assert.Contains(t, fields, "budget")
	assert.Contains(t, fields, "targetLevels[0]")

	req = salesReq()
	past := now.Add(-time.Hour)
	req.ValidUntil = &past
	_, _, err = f.svc.CreateMission(ctx, req)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "validUntil", verr.Fields[0].Field)

	req = salesReq()
	req.BusinessID = "alice"
	_, _, err = f.svc.CreateMission(ctx, req)
	assert.ErrorIs(t, err, ErrNotBusiness)

	req.BusinessID = "ghost"
	_, _, err = f.svc.CreateMission(ctx, req)
	assert.ErrorIs(t, err, ErrNotBusiness)
}

func putMission(f *fixture, m model.Mission) {
	if m.Status == "" {
		m.Status = model.MissionStatus_Active
	}
	if m.BusinessID == "" {
		m.BusinessID = "biz"
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now.Add(-72 * time.Hour)
	}
	_ = f.store.InsertMission(context.Background(), &m)
}

func TestGetMissionsForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	putMission(f, model.Mission{ID: "near", GeoScope: model.GeoScope_City, City: "Paris", Category: "coffee",
		Priority: model.Priority_Medium, PriorityScore: 45, Location: &paris})
	putMission(f, model.Mission{ID: "global", GeoScope: model.GeoScope_Global, Priority: model.Priority_High, PriorityScore: 80})
	putMission(f, model.Mission{ID: "country", GeoScope: model.GeoScope_Country, Country: "FR", Priority: model.Priority_Low, PriorityScore: 20})
	putMission(f, model.Mission{ID: "lyon", GeoScope: model.GeoScope_City, City: "Lyon", Priority: model.Priority_High, PriorityScore: 99})
	putMission(f, model.Mission{ID: "full", GeoScope: model.GeoScope_Global, MaxParticipants: 2, CurrentParticipants: 2})
	putMission(f, model.Mission{ID: "expired", GeoScope: model.GeoScope_Global, ValidUntil: now.Add(-time.Minute)})
	putMission(f, model.Mission{ID: "paused", GeoScope: model.GeoScope_Global, Status: model.MissionStatus_Paused})
	putMission(f, model.Mission{ID: "joined", GeoScope: model.GeoScope_Global, Priority: model.Priority_High, PriorityScore: 100})
	putMission(f, model.Mission{ID: "own", BusinessID: "alice", GeoScope: model.GeoScope_Global})
	require.NoError(t, f.store.InsertParticipation(ctx, &model.Participation{
		ID: ParticipationID("joined", "alice"), MissionID: "joined", UserID: "alice", Status: model.ParticipationStatus_Pending,
	}))

	got, err := f.svc.GetMissionsForUser(ctx, RecommendReq{UserID: "alice"})
	require.NoError(t, err)
	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.Mission.ID)
	}
	// near: 15+9+15+5+20+5=69, global: 25+16+5+5=51, country: 5+4+5+5=19
	assert.Equal(t, []string{"near", "global", "country"}, ids)
	assert.InDelta(t, 69, got[0].Score, 1e-9)

	top, err := f.svc.GetMissionsForUser(ctx, RecommendReq{UserID: "alice", Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "near", top[0].Mission.ID)

	// 客户端定位覆盖用户资料
	far := model.Location{Lat: 40.7128, Lng: -74.0060}
	moved, err := f.svc.GetMissionsForUser(ctx, RecommendReq{UserID: "alice", Location: &far})
	require.NoError(t, err)
	require.Len(t, moved, 3)
	assert.Equal(t, "global", moved[0].Mission.ID)
	assert.Equal(t, "near", moved[1].Mission.ID)
	assert.InDelta(t, 49, moved[1].Score, 1e-9)

	_, err = f.svc.GetMissionsForUser(ctx, RecommendReq{UserID: "ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestApply(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	putMission(f, model.Mission{ID: "open", GeoScope: model.GeoScope_Global, MaxParticipants: 1})
	putMission(f, model.Mission{ID: "gated", GeoScope: model.GeoScope_Global, ApprovalRequired: true})
	putMission(f, model.Mission{ID: "auto", GeoScope: model.GeoScope_Global, ApprovalRequired: true, AutoApprove: true})
	putMission(f, model.Mission{ID: "paused", Status: model.MissionStatus_Paused})
	putMission(f, model.Mission{ID: "old", ValidUntil: now.Add(-time.Hour)})

	p, err := f.svc.Apply(ctx, "open", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Approved, p.Status)
	assert.Equal(t, AutoReviewer, p.ReviewerID)
	m, err := f.store.GetMission(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.CurrentParticipants)

	_, err = f.svc.Apply(ctx, "open", "alice")
	assert.ErrorIs(t, err, ErrMissionFull)
	_, err = f.svc.Apply(ctx, "open", "bob")
	assert.ErrorIs(t, err, ErrMissionFull)

	p, err = f.svc.Apply(ctx, "gated", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Pending, p.Status)
	m, err = f.store.GetMission(ctx, "gated")
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.CurrentParticipants)

	_, err = f.svc.Apply(ctx, "gated", "alice")
	assert.ErrorIs(t, err, ErrAlreadyApplied)

	p, err = f.svc.Apply(ctx, "auto", "alice")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Approved, p.Status)

	_, err = f.svc.Apply(ctx, "paused", "alice")
	assert.ErrorIs(t, err, ErrMissionInactive)
	_, err = f.svc.Apply(ctx, "old", "alice")
	assert.ErrorIs(t, err, ErrMissionExpired)
	_, err = f.svc.Apply(ctx, "nope", "alice")
	assert.ErrorIs(t, err, ErrMissionNotFound)
	_, err = f.svc.Apply(ctx, "gated", "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestReview(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	putMission(f, model.Mission{ID: "gated", GeoScope: model.GeoScope_Global, ApprovalRequired: true, MaxParticipants: 1})

	pa, err := f.svc.Apply(ctx, "gated", "alice")
	require.NoError(t, err)
	pb, err := f.svc.Apply(ctx, "gated", "bob")
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, pa.ID, "bob", true, "")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Review(ctx, pa.ID, "biz", true, "welcome")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Approved, got.Status)
	assert.Equal(t, "welcome", got.Note)

	m, err := f.store.GetMission(ctx, "gated")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.CurrentParticipants)

	_, err = f.svc.Review(ctx, pa.ID, "biz", false, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// 名额已满时不能通过, 申请保持待审核
	_, err = f.svc.Review(ctx, pb.ID, "biz", true, "")
	assert.ErrorIs(t, err, ErrMissionFull)
	stored, err := f.store.GetParticipation(ctx, pb.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Pending, stored.Status)

	got, err = f.svc.Review(ctx, pb.ID, "admin", false, "full")
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationStatus_Rejected, got.Status)

	_, err = f.svc.Review(ctx, "missing", "biz", true, "")
	assert.ErrorIs(t, err, ErrParticipationNotFound)
}

func TestSetMissionStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	putMission(f, model.Mission{ID: "m"})

	require.NoError(t, f.svc.SetMissionStatus(ctx, "m", model.MissionStatus_Completed))
	m, err := f.svc.GetMission(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, model.MissionStatus_Completed, m.Status)

	assert.ErrorIs(t, f.svc.SetMissionStatus(ctx, "m", "DELETED"), ErrInvalidInput)
	assert.ErrorIs(t, f.svc.SetMissionStatus(ctx, "x", model.MissionStatus_Paused), ErrMissionNotFound)
}

type faultyStore struct {
	*memstore.Store
	insertMissionErr       error
	insertParticipationErr error
	staleUpdate            bool
}

func (s *faultyStore) InsertMission(ctx context.Context, m *model.Mission) error {
	if s.insertMissionErr != nil {
		return s.insertMissionErr
	}
	return s.Store.InsertMission(ctx, m)
}

func (s *faultyStore) InsertParticipation(ctx context.Context, p *model.Participation) error {
	if s.insertParticipationErr != nil {
		return s.insertParticipationErr
	}
	return s.Store.InsertParticipation(ctx, p)
}

func (s *faultyStore) UpdateParticipationStatus(ctx context.Context, id string, from, to model.ParticipationStatus,
	reviewerID, note string, now time.Time) (bool, error) {
	if s.staleUpdate {
		return false, nil
	}
	return s.Store.UpdateParticipationStatus(ctx, id, from, to, reviewerID, note, now)
}

func newFaultyFixture(quotaOpts ...quota.Option) (*fixture, *faultyStore) {
	f := newFixture(quotaOpts...)
	fs := &faultyStore{Store: f.store}
	f.svc = NewService(fs, f.quota, WithClock(func() time.Time { return now }))
	return f, fs
}

func TestCreateMissionInsertFailKeepsQuota(t *testing.T) {
	for _, useCounter := range []bool{false, true} {
		t.Run(fmt.Sprintf("atomic=%v", useCounter), func(t *testing.T) {
			var opts []quota.Option
			if useCounter {
				opts = append(opts, quota.WithAtomicCounter(memstore.NewCounter()))
			}
			f, fs := newFaultyFixture(opts...)
			ctx := context.Background()

			fs.insertMissionErr = errors.New("db down")
			m, _, err := f.svc.CreateMission(ctx, salesReq())
			require.Error(t, err)
			assert.Nil(t, m)

			sub, err := f.store.GetSubscription(ctx, model.Level2, "biz")
			require.NoError(t, err)
			assert.Equal(t, int64(0), sub.Usage.MissionsThisMonth)

			// 额度没有被占用, 仍然可以创建3个
			fs.insertMissionErr = nil
			for i := 0; i < 3; i++ {
				_, d, err := f.svc.CreateMission(ctx, salesReq())
				require.NoError(t, err)
				require.True(t, d.Allowed)
				assert.Equal(t, int64(i+1), d.Used)
			}
			_, d, err := f.svc.CreateMission(ctx, salesReq())
			require.NoError(t, err)
			assert.False(t, d.Allowed)
		})
	}
}

func TestApplyInsertFailReleasesSlot(t *testing.T) {
	f, fs := newFaultyFixture()
	ctx := context.Background()
	putMission(f, model.Mission{ID: "open", MaxParticipants: 2})

	fs.insertParticipationErr = model.ErrAlreadyExists
	_, err := f.svc.Apply(ctx, "open", "alice")
	assert.ErrorIs(t, err, ErrAlreadyApplied)

	fs.insertParticipationErr = errors.New("db down")
	_, err = f.svc.Apply(ctx, "open", "bob")
	assert.Error(t, err)

	m, err := f.store.GetMission(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.CurrentParticipants)
}

func TestReviewStaleUpdateReleasesSlot(t *testing.T) {
	f, fs := newFaultyFixture()
	ctx := context.Background()
	putMission(f, model.Mission{ID: "gated", ApprovalRequired: true})

	p, err := f.svc.Apply(ctx, "gated", "alice")
	require.NoError(t, err)

	fs.staleUpdate = true
	_, err = f.svc.Review(ctx, p.ID, "biz", true, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	m, err := f.store.GetMission(ctx, "gated")
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.CurrentParticipants)
}

func TestConcurrentApplyAndReview(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	putMission(f, model.Mission{ID: "open"})
	putMission(f, model.Mission{ID: "gated", ApprovalRequired: true})

	run := func(n int, fn func() error) int32 {
		var ok int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if fn() == nil {
					atomic.AddInt32(&ok, 1)
				}
			}()
		}
		wg.Wait()
		return ok
	}

	ok := run(10, func() error {
		_, err := f.svc.Apply(ctx, "open", "alice")
		return err
	})
	assert.Equal(t, int32(1), ok)
	m, err := f.store.GetMission(ctx, "open")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.CurrentParticipants)

	p, err := f.svc.Apply(ctx, "gated", "alice")
	require.NoError(t, err)
	ok = run(10, func() error {
		_, err := f.svc.Review(ctx, p.ID, "biz", true, "")
		return err
	})
	assert.Equal(t, int32(1), ok)
	m, err = f.store.GetMission(ctx, "gated")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.CurrentParticipants)
}
