package dao

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/zly-app/component/redis"

	"github.com/zlyuancn/engage/client"
	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/model"
)

// 生成副作用状态key
func genSideEffectStatusKey(ownerID string, refID string, sideEffectName string, t model.SideEffectType) string {
	text := conf.Conf.SideEffectStatusKeyFormat
	text = strings.ReplaceAll(text, templateString_OwnerID, ownerID)
	text = strings.ReplaceAll(text, templateString_RefID, refID)
	text = strings.ReplaceAll(text, templateString_SideEffect, sideEffectName)
	text = strings.ReplaceAll(text, templateString_SideEffectType, cast.ToString(int8(t)))
	return text
}

// redis副作用状态标记
type SideEffectMarker struct{}

// 获取副作用状态
func (SideEffectMarker) IsDone(ctx context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType) (bool, error) {
	key := genSideEffectStatusKey(ownerID, refID, sideEffectName, t)
	v, err := client.GetQuotaRedisClient().Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// 标记副作用已完成
func (SideEffectMarker) MarkDone(ctx context.Context, ownerID, refID, sideEffectName string, t model.SideEffectType, ttl time.Duration) error {
	key := genSideEffectStatusKey(ownerID, refID, sideEffectName, t)
	return client.GetQuotaRedisClient().Set(ctx, key, "1", ttl).Err()
}
