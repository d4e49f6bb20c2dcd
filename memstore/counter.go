package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/zlyuancn/engage/model"
)

type orderKey struct {
	OwnerID string
	RefID   string
}

// 内存原子计数器, 语义与redis脚本一致
type Counter struct {
	mx       sync.Mutex
	counters map[model.CounterKey]int64
	orders   map[orderKey]model.CounterResult
}

func NewCounter() *Counter {
	return &Counter{
		counters: make(map[model.CounterKey]int64),
		orders:   make(map[orderKey]model.CounterResult),
	}
}

func (c *Counter) CheckAndIncr(_ context.Context, key model.CounterKey, refID string, limit int64, unlimited bool, seed int64) (*model.CounterResult, error) {
	c.mx.Lock()
	defer c.mx.Unlock()

	k := orderKey{key.OwnerID, refID}
	if r, done := c.orders[k]; done {
		r.IsReentry = true
		return &r, nil
	}

	used := c.counters[key]
	if used < seed {
		used = seed
		c.counters[key] = used
	}
	if !unlimited && used+1 > limit {
		return &model.CounterResult{OldUsed: used, NewUsed: used}, nil
	}

	c.counters[key] = used + 1
	r := model.CounterResult{Allowed: true, OldUsed: used, NewUsed: used + 1}
	c.orders[k] = r
	return &r, nil
}

func (c *Counter) Release(_ context.Context, key model.CounterKey, refID string) error {
	c.mx.Lock()
	defer c.mx.Unlock()

	k := orderKey{key.OwnerID, refID}
	if _, done := c.orders[k]; !done {
		return nil
	}
	delete(c.orders, k)
	if c.counters[key] > 0 {
		c.counters[key]--
	}
	return nil
}

func (c *Counter) ResetCounter(_ context.Context, key model.CounterKey) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	delete(c.counters, key)
	return nil
}

func (c *Counter) GetCounter(_ context.Context, key model.CounterKey) (int64, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.counters[key], nil
}

type markKey struct {
	OwnerID string
	RefID   string
	Name    string
	Type    model.SideEffectType
}

// 内存副作用状态标记, 不处理过期
type Marker struct {
	marks sync.Map
}

func NewMarker() *Marker { return &Marker{} }

func (m *Marker) IsDone(_ context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType) (bool, error) {
	_, ok := m.marks.Load(markKey{ownerID, refID, sideEffectName, t})
	return ok, nil
}

func (m *Marker) MarkDone(_ context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType, _ time.Duration) error {
	m.marks.Store(markKey{ownerID, refID, sideEffectName, t}, struct{}{})
	return nil
}
