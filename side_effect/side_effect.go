package side_effect

import (
	"context"
	"sync"
	"time"

	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/model"
)

// 副作用, 必须继承 BaseSideEffect, 副作用的每个方法都可能会调用多次, 业务需要自行处理幂等性(可重入)
type SideEffect interface {
	abstract()
	// 用量记录后
	AfterUsageRecorded(ctx context.Context, data *model.SideEffectData) error
	// 参与审核后
	AfterParticipationReviewed(ctx context.Context, data *model.SideEffectData) error
}

var _ SideEffect = BaseSideEffect{}

type BaseSideEffect struct{}

func (BaseSideEffect) abstract() {}

func (BaseSideEffect) AfterUsageRecorded(ctx context.Context, data *model.SideEffectData) error {
	return nil
}

func (BaseSideEffect) AfterParticipationReviewed(ctx context.Context, data *model.SideEffectData) error {
	return nil
}

var (
	seMx  sync.RWMutex
	seMap = make(map[model.SideEffectType]map[string]SideEffect)
)

// 注册副作用, 重复注册同一个name会导致panic
func RegistrySideEffect(t model.SideEffectType, name string, se SideEffect) {
	seMx.Lock()
	defer seMx.Unlock()

	seList, ok := seMap[t]
	if !ok {
		seMap[t] = map[string]SideEffect{
			name: se,
		}
		return
	}

	if _, ok := seList[name]; ok {
		logger.Panic("RegistrySideEffect repetition name", zap.Int("SideEffectType", int(t)), zap.String("Name", name))
	}
	seList[name] = se
}

// 取消注册副作用
func UnRegistrySideEffect(t model.SideEffectType, name string) {
	seMx.Lock()
	defer seMx.Unlock()

	seList, ok := seMap[t]
	if ok {
		delete(seList, name)
	}
}

func getSideEffects(t model.SideEffectType) map[string]SideEffect {
	seMx.RLock()
	defer seMx.RUnlock()

	ret := make(map[string]SideEffect, len(seMap[t]))
	for k, v := range seMap[t] {
		ret[k] = v
	}
	return ret
}

// 副作用状态标记, 用于保证每个副作用对同一个引用id只成功执行一次
type StatusMarker interface {
	IsDone(ctx context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType) (bool, error)
	MarkDone(ctx context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType, ttl time.Duration) error
}

var marker StatusMarker

// 注册副作用状态标记, 未注册时不检查是否已执行
func RegistryStatusMarker(m StatusMarker) { marker = m }
