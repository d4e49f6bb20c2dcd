package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/benefit"
	"github.com/zlyuancn/engage/model"
	"github.com/zlyuancn/engage/side_effect"
)

var (
	// 订阅级别无效
	ErrInvalidLevel = errors.New("invalid subscription level")
	// 档位不属于该级别
	ErrInvalidTier = errors.New("invalid subscription tier")
	// 订阅状态无效
	ErrInvalidStatus = errors.New("invalid subscription status")
	// 所属者为空
	ErrEmptyOwner = errors.New("empty subscription owner")
)

// 各级别可计数的用量类型
var levelKinds = map[model.SubscriptionLevel][]model.UsageKind{
	model.Level1: {model.UsageKind_SquadMeetup, model.UsageKind_Event, model.UsageKind_FreeEvent},
	model.Level2: {model.UsageKind_Mission, model.UsageKind_Event, model.UsageKind_FreeEvent},
}

func kindInLevel(level model.SubscriptionLevel, kind model.UsageKind) bool {
	for _, k := range levelKinds[level] {
		if k == kind {
			return true
		}
	}
	return false
}

type Engine struct {
	store   SubscriptionStore
	counter AtomicCounter
	now     func() time.Time
}

type Option func(e *Engine)

// 使用原子计数器, CheckAndRecord 将不会超出上限
func WithAtomicCounter(c AtomicCounter) Option {
	return func(e *Engine) { e.counter = c }
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

func NewEngine(store SubscriptionStore, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// 是否开启了原子计数
func (e *Engine) Atomic() bool { return e.counter != nil }

func (e *Engine) Level1() Level1 { return Level1{e} }
func (e *Engine) Level2() Level2 { return Level2{e} }

func checkOwner(level model.SubscriptionLevel, ownerID string) error {
	if !level.Valid() {
		return ErrInvalidLevel
	}
	if ownerID == "" {
		return ErrEmptyOwner
	}
	return nil
}

func (e *Engine) newDefault(level model.SubscriptionLevel, ownerID string) *model.Subscription {
	now := e.now().UTC()
	return &model.Subscription{
		OwnerID:            ownerID,
		Level:              level,
		Tier:               model.Tier_Free,
		Status:             model.SubscriptionStatus_Active,
		LastMonthlyReset:   model.WindowStart(model.Window_Month, now),
		LastQuarterlyReset: model.WindowStart(model.Window_Quarter, now),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// 获取订阅, 不存在时创建FREE档位的默认订阅
func (e *Engine) GetOrCreate(ctx context.Context, level model.SubscriptionLevel, ownerID string) (*model.Subscription, error) {
	if err := checkOwner(level, ownerID); err != nil {
		return nil, err
	}

	sub, err := e.store.GetSubscription(ctx, level, ownerID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	sub = e.newDefault(level, ownerID)
	err = e.store.InsertSubscription(ctx, sub)
	if errors.Is(err, model.ErrAlreadyExists) {
		// 并发创建
		return e.store.GetSubscription(ctx, level, ownerID)
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// 生效的档位, 非ACTIVE的订阅按FREE处理
func EffectiveTier(sub *model.Subscription) model.Tier {
	if sub.Status != model.SubscriptionStatus_Active {
		return model.Tier_Free
	}
	return sub.Tier
}

// 获取订阅当前生效的权益
func (e *Engine) Benefit(ctx context.Context, level model.SubscriptionLevel, ownerID string) (model.Benefit, error) {
	sub, err := e.GetOrCreate(ctx, level, ownerID)
	if err != nil {
		return model.Benefit{}, err
	}
	return benefit.Get(ctx, level, EffectiveTier(sub)), nil
}

/*
判定是否还有额度. 拒绝不是错误, 原因在 Decision.Reason 中.

读取订阅失败时按无数据处理, 以FREE档位零用量判定.
判定和记录是两次独立操作, 并发时用量可能超出上限, 需要严格限制请使用 CheckAndRecord 并开启原子计数.
*/
func (e *Engine) Check(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind) model.Decision {
	if err := checkOwner(level, ownerID); err != nil {
		return model.Decision{Kind: kind, Reason: err.Error()}
	}
	if !kindInLevel(level, kind) {
		return notAvailable(level, kind)
	}

	sub, err := e.GetOrCreate(ctx, level, ownerID)
	if err != nil {
		logger.Error(ctx, "Check call GetOrCreate err, use default",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		sub = e.newDefault(level, ownerID)
	}
	return decide(benefit.Get(ctx, level, EffectiveTier(sub)), kind, sub.Usage.Get(kind))
}

func decide(b model.Benefit, kind model.UsageKind, used int64) model.Decision {
	limit, unlimited := b.Limit(kind)
	d := model.Decision{
		Kind:      kind,
		Tier:      b.Tier,
		Used:      used,
		Limit:     limit,
		Unlimited: unlimited,
	}
	switch {
	case unlimited:
		d.Allowed = true
	case limit <= 0:
		d.Reason = fmt.Sprintf("%s is not included in the %s plan", capitalize(model.GetUsageKindName(kind)), b.Tier)
	case used >= limit:
		d.Reason = limitReason(kind, used, limit)
	default:
		d.Allowed = true
	}
	return d
}

func notAvailable(level model.SubscriptionLevel, kind model.UsageKind) model.Decision {
	return model.Decision{
		Kind:   kind,
		Reason: fmt.Sprintf("%s is not available for level %d subscriptions", capitalize(model.GetUsageKindName(kind)), level),
	}
}

func limitReason(kind model.UsageKind, used, limit int64) string {
	period := "Monthly"
	if kind.Window() == model.Window_Quarter {
		period = "Quarterly"
	}
	return period + " " + model.GetUsageKindName(kind) + " limit reached (" + cast.ToString(used) + "/" + cast.ToString(limit) + ")"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// 记录一次用量, 不做额度判定. refID为空时自动生成
func (e *Engine) Record(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) error {
	if refID == "" {
		refID = uuid.NewString()
	}
	_, err := e.record(ctx, level, ownerID, kind, refID)
	return err
}

func (e *Engine) record(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) (int64, error) {
	if err := checkOwner(level, ownerID); err != nil {
		return 0, err
	}
	if !kindInLevel(level, kind) {
		return 0, fmt.Errorf("kind %s not in level %d", kind, level)
	}

	sub, err := e.GetOrCreate(ctx, level, ownerID)
	if err != nil {
		logger.Error(ctx, "Record call GetOrCreate err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return 0, err
	}

	used, err := e.store.IncrUsage(ctx, level, ownerID, kind, 1, e.now())
	if err != nil {
		logger.Error(ctx, "Record call store.IncrUsage err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("kind", string(kind)),
			zap.String("refID", refID),
			zap.Error(err),
		)
		return 0, err
	}

	e.afterRecorded(ctx, sub, kind, refID, used)
	return used, nil
}

// 预占的额度, 由 Reserve 返回, 需要调用 Commit 或 Release 结束
type Reservation struct {
	level   model.SubscriptionLevel
	ownerID string
	sub     *model.Subscription // 仅原子计数时有值
	kind    model.UsageKind
	refID   string
	key     model.CounterKey
	used    int64 // 原子计数后的用量
	atomic  bool
	reentry bool
}

/*
预占一次用量额度.

开启原子计数时判定和增加在计数器中一次完成, 同一个refID重复调用不会重复计数, 文档用量在 Commit 时同步.
未开启时只做 Check, 用量在 Commit 时记录.
拒绝时返回的 Reservation 为nil.
*/
func (e *Engine) Reserve(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) (model.Decision, *Reservation, error) {
	if refID == "" {
		refID = uuid.NewString()
	}
	if e.counter == nil {
		d := e.Check(ctx, level, ownerID, kind)
		if !d.Allowed {
			return d, nil, nil
		}
		return d, &Reservation{level: level, ownerID: ownerID, kind: kind, refID: refID}, nil
	}

	if err := checkOwner(level, ownerID); err != nil {
		return model.Decision{Kind: kind, Reason: err.Error()}, nil, err
	}
	if !kindInLevel(level, kind) {
		return notAvailable(level, kind), nil, nil
	}

	sub, err := e.GetOrCreate(ctx, level, ownerID)
	if err != nil {
		logger.Error(ctx, "Reserve call GetOrCreate err",
			zap.Int8("level", int8(level)),
			zap.String("ownerID", ownerID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return model.Decision{Kind: kind, Reason: "Unable to verify subscription"}, nil, err
	}

	b := benefit.Get(ctx, level, EffectiveTier(sub))
	d := decide(b, kind, sub.Usage.Get(kind))
	if !d.Unlimited && d.Limit <= 0 {
		return d, nil, nil
	}

	key := model.CounterKey{
		OwnerID: ownerID,
		Level:   level,
		Kind:    kind,
		Window:  model.WindowID(kind.Window(), e.now()),
	}
	ret, err := e.counter.CheckAndIncr(ctx, key, refID, d.Limit, d.Unlimited, sub.Usage.Get(kind))
	if err != nil {
		logger.Error(ctx, "Reserve call counter.CheckAndIncr err",
			zap.Any("key", key),
			zap.String("refID", refID),
			zap.Error(err),
		)
		return model.Decision{Kind: kind, Tier: d.Tier, Reason: "Unable to verify usage"}, nil, err
	}

	if !ret.Allowed {
		d.Allowed = false
		d.Used = ret.OldUsed
		d.Reason = limitReason(kind, ret.OldUsed, d.Limit)
		return d, nil, nil
	}

	d.Allowed = true
	d.Reason = ""
	d.Used = ret.NewUsed
	r := &Reservation{
		level:   level,
		ownerID: ownerID,
		sub:     sub,
		kind:    kind,
		refID:   refID,
		key:     key,
		used:    ret.NewUsed,
		atomic:  true,
		reentry: ret.IsReentry,
	}
	return d, r, nil
}

// 确认预占的额度, 记录文档用量并触发副作用. 返回记录后的用量
func (e *Engine) Commit(ctx context.Context, r *Reservation) (int64, error) {
	if r == nil {
		return 0, nil
	}
	if !r.atomic {
		return e.record(ctx, r.level, r.ownerID, r.kind, r.refID)
	}
	if r.reentry {
		return r.used, nil
	}

	// 同步文档中的用量, 以计数器为准
	if _, err := e.store.IncrUsage(ctx, r.level, r.ownerID, r.kind, 1, e.now()); err != nil {
		logger.Error(ctx, "Commit call store.IncrUsage err",
			zap.Any("key", r.key),
			zap.String("refID", r.refID),
			zap.Error(err),
		)
	}
	e.afterRecorded(ctx, r.sub, r.kind, r.refID, r.used)
	return r.used, nil
}

// 放弃预占的额度, 归还原子计数. 重复调用的refID不会归还首次调用占用的额度
func (e *Engine) Release(ctx context.Context, r *Reservation) error {
	if r == nil || !r.atomic || r.reentry {
		return nil
	}
	err := e.counter.Release(ctx, r.key, r.refID)
	if err != nil {
		logger.Error(ctx, "Release call counter.Release err",
			zap.Any("key", r.key),
			zap.String("refID", r.refID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

/*
判定并记录用量, 等同于 Reserve 后 Commit.

开启原子计数时不会超出上限, 同一个refID重复调用不会重复计数.
未开启时等同于 Check 后 Record.
*/
func (e *Engine) CheckAndRecord(ctx context.Context, level model.SubscriptionLevel, ownerID string, kind model.UsageKind, refID string) (model.Decision, error) {
	d, r, err := e.Reserve(ctx, level, ownerID, kind, refID)
	if err != nil || r == nil {
		return d, err
	}
	used, err := e.Commit(ctx, r)
	if err != nil {
		return model.Decision{Kind: kind, Tier: d.Tier, Reason: "Unable to record usage"}, err
	}
	d.Used = used
	return d, nil
}

func (e *Engine) afterRecorded(ctx context.Context, sub *model.Subscription, kind model.UsageKind, refID string, used int64) {
	side_effect.Dispatch(ctx, &model.SideEffectData{
		Type:    model.SideEffectType_AfterUsageRecorded,
		Level:   sub.Level,
		OwnerID: sub.OwnerID,
		RefID:   refID,
		Kind:    kind,
		Used:    used,
		Tier:    EffectiveTier(sub),
		Window:  model.WindowID(kind.Window(), e.now()),
	})
}
