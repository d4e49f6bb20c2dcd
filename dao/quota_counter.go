package dao

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/zly-app/component/redis"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/client"
	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/model"
)

// 模板字符串
const (
	templateString_OwnerID        = "<owner_id>"
	templateString_Level          = "<level>"
	templateString_Kind           = "<kind>"
	templateString_Window         = "<window>"
	templateString_RefID          = "<ref_id>"
	templateString_SideEffect     = "<side_effect>"
	templateString_SideEffectType = "<side_effect_type>"
)

// status 在redis写入的数据为  是否允许_旧值_新值

const (
	// 判定并增加用量 KEYS=[计数key, 记录状态key]  ARGV=[上限(-1表示不限), 计数key有效期, 记录状态key有效期, 文档中的当前用量]
	checkAndIncrLua = `
-- 获取记录状态
local status = redis.call('GET', KEYS[2])
-- 如果状态已写入则表示已记录过, 直接返回状态
if status ~= false then
    return status .. '_1'
end

local limit = tonumber(ARGV[1])
local counterEx = tonumber(ARGV[2])
local statusEx = tonumber(ARGV[3])
local seed = tonumber(ARGV[4])

-- 文档中的用量作为下限
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used < seed then
    used = seed
    redis.call('SET', KEYS[1], used)
    if counterEx > 0 then
        redis.call('EXPIRE', KEYS[1], counterEx)
    end
end

-- 达到上限, 不写入状态
if limit >= 0 and used + 1 > limit then
    return '0_' .. tostring(used) .. '_' .. tostring(used) .. '_0'
end

local nowUsed = redis.call('INCR', KEYS[1])
if counterEx > 0 then
    redis.call('EXPIRE', KEYS[1], counterEx)
end
status = '1_' .. tostring(nowUsed-1) .. '_' .. tostring(nowUsed)

-- 写入状态
if statusEx < 1 then
    redis.call('SET', KEYS[2], status)
else
    redis.call('SET', KEYS[2], status, 'ex', statusEx)
end
return status .. '_0'
`

	// 释放已记录的用量 KEYS=[计数key, 记录状态key]. 记录状态不存在时不做任何事, 返回是否释放
	releaseLua = `
local status = redis.call('GET', KEYS[2])
if status == false then
    return 0
end
redis.call('DEL', KEYS[2])

-- 只释放允许的记录
if string.sub(status, 1, 1) ~= '1' then
    return 0
end
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
if used > 0 then
    redis.call('DECR', KEYS[1])
end
return 1
`
)

// 脚本sha1值, 如果存在则使用 EVALSHA 执行脚本
var checkAndIncrLuaSha1 = ""

// 生成用量计数key
func genQuotaCounterKey(key model.CounterKey) string {
	text := conf.Conf.QuotaCounterKeyFormat
	text = strings.ReplaceAll(text, templateString_OwnerID, key.OwnerID)
	text = strings.ReplaceAll(text, templateString_Level, cast.ToString(int8(key.Level)))
	text = strings.ReplaceAll(text, templateString_Kind, string(key.Kind))
	text = strings.ReplaceAll(text, templateString_Window, key.Window)
	return text
}

// 生成记录状态key
func genQuotaOrderKey(ownerID string, refID string) string {
	text := conf.Conf.QuotaOrderKeyFormat
	text = strings.ReplaceAll(text, templateString_OwnerID, ownerID)
	text = strings.ReplaceAll(text, templateString_RefID, refID)
	return text
}

// redis原子计数器
type QuotaCounter struct{}

// 判定并增加用量
func (QuotaCounter) CheckAndIncr(ctx context.Context, key model.CounterKey, refID string, limit int64, unlimited bool, seed int64) (*model.CounterResult, error) {
	counterKey := genQuotaCounterKey(key)
	orderKey := genQuotaOrderKey(key.OwnerID, refID)
	if unlimited {
		limit = -1
	}
	counterEx := int64(conf.Conf.QuotaCounterExpireDay) * 86400
	statusEx := int64(conf.Conf.QuotaOrderExpireDay) * 86400

	rdb := client.GetQuotaRedisClient()
	keys := []string{counterKey, orderKey}

	var statusResult interface{}
	var err error
	if checkAndIncrLuaSha1 != "" {
		statusResult, err = rdb.EvalSha(ctx, checkAndIncrLuaSha1, keys, limit, counterEx, statusEx, seed).Result()
	} else {
		statusResult, err = rdb.Eval(ctx, checkAndIncrLua, keys, limit, counterEx, statusEx, seed).Result()
	}
	if err != nil {
		return nil, err
	}
	return parseCounterStatus(cast.ToString(statusResult))
}

// 释放refID已记录的用量, 用于记录后业务写入失败时归还额度
func (QuotaCounter) Release(ctx context.Context, key model.CounterKey, refID string) error {
	keys := []string{genQuotaCounterKey(key), genQuotaOrderKey(key.OwnerID, refID)}
	return client.GetQuotaRedisClient().Eval(ctx, releaseLua, keys).Err()
}

// 清除用量计数
func (QuotaCounter) ResetCounter(ctx context.Context, key model.CounterKey) error {
	return client.GetQuotaRedisClient().Del(ctx, genQuotaCounterKey(key)).Err()
}

// 获取用量计数
func (QuotaCounter) GetCounter(ctx context.Context, key model.CounterKey) (int64, error) {
	v, err := client.GetQuotaRedisClient().Get(ctx, genQuotaCounterKey(key)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	return cast.ToInt64(v), err
}

func parseCounterStatus(statusValue string) (*model.CounterResult, error) {
	ss := strings.Split(statusValue, "_")
	if len(ss) != 4 {
		return nil, fmt.Errorf("parse statusValue err. statusValue=%s", statusValue)
	}

	ret := &model.CounterResult{
		Allowed:   ss[0] == "1",
		OldUsed:   cast.ToInt64(ss[1]),
		NewUsed:   cast.ToInt64(ss[2]),
		IsReentry: ss[3] == "1",
	}
	return ret, nil
}

// 尝试注入脚本
func TryInjectScript(ctx context.Context) {
	if !conf.Conf.TryEvalShaQuotaOp {
		logger.Warn(ctx, "disable TryInjectScript")
		return
	}

	sha1, err := client.GetQuotaRedisClient().ScriptLoad(ctx, checkAndIncrLua).Result()
	if err != nil {
		logger.Error(ctx, "TryInjectScript checkAndIncrLua err", zap.Error(err))
		return
	}
	checkAndIncrLuaSha1 = sha1

	logger.Info(ctx, "TryInjectScript ok")
}
