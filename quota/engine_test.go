package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zlyuancn/engage/memstore"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/side_effect"
)

var now = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newEngine(opts ...Option) (*Engine, *memstore.Store) {
	store := memstore.New()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewEngine(store, opts...), store
}

func putSub(store *memstore.Store, level model.SubscriptionLevel, owner string, tier model.Tier, usage model.UsageCounters) {
	store.PutSubscription(model.Subscription{
		OwnerID:            owner,
		Level:              level,
		Tier:               tier,
		Status:             model.SubscriptionStatus_Active,
		Usage:              usage,
		LastMonthlyReset:   model.WindowStart(model.Window_Month, now),
		LastQuarterlyReset: model.WindowStart(model.Window_Quarter, now),
	})
}

func TestGetOrCreateDefault(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()

	sub, err := e.GetOrCreate(ctx, model.Level2, "biz1")
	require.NoError(t, err)
	assert.Equal(t, model.Tier_Free, sub.Tier)
	assert.Equal(t, model.SubscriptionStatus_Active, sub.Status)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), sub.LastMonthlyReset)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), sub.LastQuarterlyReset)

	stored, err := store.GetSubscription(ctx, model.Level2, "biz1")
	require.NoError(t, err)
	assert.Equal(t, sub.CreatedAt, stored.CreatedAt)

	_, err = store.GetSubscription(ctx, model.Level1, "biz1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = e.GetOrCreate(ctx, 3, "biz1")
	assert.ErrorIs(t, err, ErrInvalidLevel)
	_, err = e.GetOrCreate(ctx, model.Level1, "")
	assert.ErrorIs(t, err, ErrEmptyOwner)
}

func TestCheckAgainstLimit(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		used    int64
		allowed bool
	}{{0, true}, {1, true}, {2, false}, {3, false}}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("used=%d", tt.used), func(t *testing.T) {
			e, store := newEngine()
			putSub(store, model.Level1, "u1", model.Tier_Silver, model.UsageCounters{SquadMeetupsThisMonth: tt.used})

			d := e.Level1().CanAttendSquadMeetup(ctx, "u1")
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.used, d.Used)
			assert.Equal(t, int64(2), d.Limit)
			if tt.allowed {
				assert.Empty(t, d.Reason)
			} else {
				assert.Equal(t, fmt.Sprintf("Monthly squad meetup limit reached (%d/2)", tt.used), d.Reason)
			}
		})
	}
}

func TestCheckReasons(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()

	d := e.Level1().CanAttendEvent(ctx, "newcomer")
	assert.False(t, d.Allowed)
	assert.Equal(t, "Event is not included in the FREE plan", d.Reason)
	assert.Equal(t, model.Tier_Free, d.Tier)

	d = e.Check(ctx, model.Level1, "newcomer", model.UsageKind_Mission)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Mission is not available for level 1 subscriptions", d.Reason)

	putSub(store, model.Level1, "gold", model.Tier_Gold, model.UsageCounters{EventsThisMonth: 500, FreeEventsThisQuarter: 3})
	d = e.Level1().CanAttendEvent(ctx, "gold")
	assert.True(t, d.Allowed)
	assert.True(t, d.Unlimited)

	d = e.Level1().CanUseFreeEvent(ctx, "gold")
	assert.False(t, d.Allowed)
	assert.Equal(t, "Quarterly free event limit reached (3/3)", d.Reason)

	assert.True(t, e.Level2().CanCreateMission(ctx, "biz").Allowed)
	assert.False(t, e.Level2().CanHostEvent(ctx, "biz").Allowed)
}

func TestInactiveSubscriptionUsesFreeBenefits(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()
	putSub(store, model.Level1, "u1", model.Tier_Gold, model.UsageCounters{SquadMeetupsThisMonth: 1})

	assert.True(t, e.Level1().CanAttendSquadMeetup(ctx, "u1").Allowed)

	require.NoError(t, e.SetStatus(ctx, model.Level1, "u1", model.SubscriptionStatus_PastDue))
	d := e.Level1().CanAttendSquadMeetup(ctx, "u1")
	assert.False(t, d.Allowed)
	assert.Equal(t, model.Tier_Free, d.Tier)
	assert.Equal(t, int64(1), d.Limit)

	assert.ErrorIs(t, e.SetStatus(ctx, model.Level1, "u1", "PAUSED"), ErrInvalidStatus)
}

func TestChangeTier(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	assert.ErrorIs(t, e.ChangeTier(ctx, model.Level1, "u1", model.Tier_Platinum), ErrInvalidTier)

	require.NoError(t, e.ChangeTier(ctx, model.Level2, "biz", model.Tier_Platinum))
	d := e.Level2().CanCreateMission(ctx, "biz")
	assert.True(t, d.Allowed)
	assert.True(t, d.Unlimited)
	assert.Equal(t, model.Tier_Platinum, d.Tier)

	b, err := e.Benefit(ctx, model.Level2, "biz")
	require.NoError(t, err)
	assert.True(t, b.DedicatedSupport)
}

// 判定和记录之间没有事务保护, 两次判定都通过后记录会超出上限
func TestCheckThenRecordCanOvershoot(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()

	first := e.Level1().CanAttendSquadMeetup(ctx, "u1")
	second := e.Level1().CanAttendSquadMeetup(ctx, "u1")
	require.True(t, first.Allowed)
	require.True(t, second.Allowed)

	require.NoError(t, e.Level1().RecordSquadMeetup(ctx, "u1", "a"))
	require.NoError(t, e.Level1().RecordSquadMeetup(ctx, "u1", "b"))

	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Usage.SquadMeetupsThisMonth)

	d := e.Level1().CanAttendSquadMeetup(ctx, "u1")
	assert.False(t, d.Allowed)
	assert.Equal(t, "Monthly squad meetup limit reached (2/1)", d.Reason)
}

type brokenStore struct {
	*memstore.Store
}

func (brokenStore) GetSubscription(context.Context, model.SubscriptionLevel, string) (*model.Subscription, error) {
	return nil, errors.New("store unavailable")
}

func TestCheckDegradesOnReadError(t *testing.T) {
	e := NewEngine(brokenStore{memstore.New()}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	d := e.Level2().CanCreateMission(ctx, "biz")
	assert.True(t, d.Allowed)
	assert.Equal(t, model.Tier_Free, d.Tier)
	assert.Equal(t, int64(0), d.Used)

	assert.Error(t, e.Level2().RecordMission(ctx, "biz", "m1"))

	d, err := e.CheckAndRecord(ctx, model.Level2, "biz", model.UsageKind_Mission, "m1")
	assert.Error(t, err)
	assert.False(t, d.Allowed)
}

func TestCheckAndRecordWithoutCounter(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()
	assert.False(t, e.Atomic())

	d, err := e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(1), d.Used)

	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sub.Usage.SquadMeetupsThisMonth)
}

func TestCheckAndRecordAtomicNeverOvershoots(t *testing.T) {
	e, store := newEngine(WithAtomicCounter(memstore.NewCounter()))
	ctx := context.Background()
	require.True(t, e.Atomic())
	putSub(store, model.Level1, "u1", model.Tier_Silver, model.UsageCounters{})

	const n = 20
	var wg sync.WaitGroup
	var mx sync.Mutex
	allowed := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, fmt.Sprintf("ref-%d", i))
			assert.NoError(t, err)
			if d.Allowed {
				mx.Lock()
				allowed++
				mx.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, allowed)
	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Usage.SquadMeetupsThisMonth)

	d, err := e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "late")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Monthly squad meetup limit reached (2/2)", d.Reason)
}

func TestCheckAndRecordAtomicReentry(t *testing.T) {
	e, store := newEngine(WithAtomicCounter(memstore.NewCounter()))
	ctx := context.Background()
	putSub(store, model.Level1, "u1", model.Tier_Silver, model.UsageCounters{SquadMeetupsThisMonth: 1})

	d, err := e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Used)

	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(2), d.Used)

	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sub.Usage.SquadMeetupsThisMonth)

	// FREE 档位没有活动额度, 不经过计数器
	d, err = e.CheckAndRecord(ctx, model.Level1, "u2", model.UsageKind_Event, "r2")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Event is not included in the FREE plan", d.Reason)
}

func TestResetMonthlyClearsCounter(t *testing.T) {
	e, store := newEngine(WithAtomicCounter(memstore.NewCounter()))
	ctx := context.Background()

	d, err := e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r2")
	require.NoError(t, err)
	require.False(t, d.Allowed)

	require.NoError(t, e.ResetMonthly(ctx, model.Level1, "u1"))
	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sub.Usage.SquadMeetupsThisMonth)
	assert.Equal(t, now, sub.LastMonthlyReset)

	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r3")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestResetDue(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()

	lastMonth := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	lastQuarter := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	store.PutSubscription(model.Subscription{
		OwnerID: "stale", Level: model.Level1, Tier: model.Tier_Gold, Status: model.SubscriptionStatus_Active,
		Usage:            model.UsageCounters{SquadMeetupsThisMonth: 4, EventsThisMonth: 9, FreeEventsThisQuarter: 2},
		LastMonthlyReset: lastMonth, LastQuarterlyReset: lastQuarter,
	})
	putSub(store, model.Level1, "fresh", model.Tier_Silver, model.UsageCounters{SquadMeetupsThisMonth: 1})
	store.PutSubscription(model.Subscription{
		OwnerID: "biz", Level: model.Level2, Tier: model.Tier_Free,
		Usage:            model.UsageCounters{MissionsThisMonth: 3},
		LastMonthlyReset: lastMonth, LastQuarterlyReset: model.WindowStart(model.Window_Quarter, now),
	})

	ret, err := e.ResetDue(ctx, model.Level1)
	require.NoError(t, err)
	assert.Equal(t, &ResetResult{Monthly: 1, Quarterly: 1}, ret)

	stale, err := store.GetSubscription(ctx, model.Level1, "stale")
	require.NoError(t, err)
	assert.Equal(t, model.UsageCounters{}, stale.Usage)

	fresh, err := store.GetSubscription(ctx, model.Level1, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.Usage.SquadMeetupsThisMonth)

	biz, err := store.GetSubscription(ctx, model.Level2, "biz")
	require.NoError(t, err)
	assert.Equal(t, int64(3), biz.Usage.MissionsThisMonth)

	ret, err = e.ResetDue(ctx, model.Level2)
	require.NoError(t, err)
	assert.Equal(t, 1, ret.Monthly)
	assert.Equal(t, 0, ret.Quarterly)

	// 再次执行不会重复重置
	ret, err = e.ResetDue(ctx, model.Level1)
	require.NoError(t, err)
	assert.Equal(t, &ResetResult{}, ret)

	_, err = e.ResetDue(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}

func TestReserveRelease(t *testing.T) {
	e, store := newEngine(WithAtomicCounter(memstore.NewCounter()))
	ctx := context.Background()
	putSub(store, model.Level1, "u1", model.Tier_Silver, model.UsageCounters{})

	d, r, err := e.Reserve(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NotNil(t, r)
	require.NoError(t, e.Release(ctx, r))

	sub, err := store.GetSubscription(ctx, model.Level1, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sub.Usage.SquadMeetupsThisMonth)

	// 归还后额度可以再次使用
	for _, ref := range []string{"r2", "r3"} {
		d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, ref)
		require.NoError(t, err)
		assert.True(t, d.Allowed, ref)
	}
	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	// 重复的refID不会归还首次占用的额度
	_, r, err = e.Reserve(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r2")
	require.NoError(t, err)
	require.NoError(t, e.Release(ctx, r))
	d, err = e.CheckAndRecord(ctx, model.Level1, "u1", model.UsageKind_SquadMeetup, "r5")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestReserveWithoutCounter(t *testing.T) {
	e, store := newEngine()
	ctx := context.Background()

	d, r, err := e.Reserve(ctx, model.Level2, "biz", model.UsageKind_Mission, "m1")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	require.NoError(t, e.Release(ctx, r))

	sub, err := store.GetSubscription(ctx, model.Level2, "biz")
	require.NoError(t, err)
	assert.Equal(t, int64(0), sub.Usage.MissionsThisMonth)

	used, err := e.Commit(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(1), used)
}

type captureSideEffect struct {
	side_effect.BaseSideEffect
	mx   sync.Mutex
	data []model.SideEffectData
}

func (c *captureSideEffect) AfterUsageRecorded(ctx context.Context, data *model.SideEffectData) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.data = append(c.data, *data)
	return nil
}

func (c *captureSideEffect) get() []model.SideEffectData {
	c.mx.Lock()
	defer c.mx.Unlock()
	return append([]model.SideEffectData(nil), c.data...)
}

func TestRecordCarriesWindow(t *testing.T) {
	se := &captureSideEffect{}
	side_effect.RegistrySideEffect(model.SideEffectType_AfterUsageRecorded, "capture", se)
	t.Cleanup(func() { side_effect.UnRegistrySideEffect(model.SideEffectType_AfterUsageRecorded, "capture") })

	e, store := newEngine()
	putSub(store, model.Level1, "u1", model.Tier_Gold, model.UsageCounters{})
	require.NoError(t, e.Level1().RecordFreeEvent(context.Background(), "u1", "r1"))

	require.Eventually(t, func() bool { return len(se.get()) == 1 }, time.Second, 5*time.Millisecond)
	got := se.get()[0]
	assert.Equal(t, "2026-Q4", got.Window)
	assert.Equal(t, int64(1), got.Used)
	assert.Equal(t, model.Tier_Gold, got.Tier)
}
