package dao

import (
	"context"
	"errors"
	"hash/crc32"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/spf13/cast"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/client"
	"github.com/zlyuancn/engage/conf"
)

// 用量流水表前缀
const UsageFlowTableName = "usage_flow_"

type UsageFlowModel struct {
	RefID   string `db:"rid"`      // 引用id
	OwnerID string `db:"owner_id"` // 订阅所属者
	Level   int8   `db:"level"`    // 订阅级别
	Tier    string `db:"tier"`     // 记录时的档位
	Kind    string `db:"kind"`     // 用量类型

	Used      int64     `db:"used"`   // 记录后的用量
	Window    string    `db:"window"` // 计数窗口, 如 2026-10 或 2026-Q4
	Remark    string    `db:"remark"` // 备注
	CreatedAt time.Time `db:"ctime"`
}

// 按所属者分表
func UsageFlowTable(ownerID string) string {
	shardID := crc32.ChecksumIEEE([]byte(ownerID)) % conf.Conf.UsageFlowTableShardNums
	return UsageFlowTableName + cast.ToString(shardID)
}

func buildUsageFlowInsert(v *UsageFlowModel) (string, []interface{}, error) {
	data := []map[string]interface{}{{
		"rid":      v.RefID,
		"owner_id": v.OwnerID,
		"level":    v.Level,
		"tier":     v.Tier,
		"kind":     v.Kind,

		"used":   v.Used,
		"window": v.Window,
		"remark": v.Remark,
		"ctime":  v.CreatedAt,
	}}
	return builder.BuildInsertIgnore(UsageFlowTable(v.OwnerID), data)
}

// 写入用量流水, 同一个引用id重复写入会被忽略
func WriteUsageFlow(ctx context.Context, v *UsageFlowModel) error {
	if v == nil {
		return errors.New("WriteUsageFlow v is empty")
	}

	cond, vals, err := buildUsageFlowInsert(v)
	if err != nil {
		logger.Error(ctx, "WriteUsageFlow BuildInsertIgnore err",
			zap.Any("flow", v),
			zap.Error(err),
		)
		return err
	}

	_, err = client.GetUsageFlowSqlxClient().Exec(ctx, cond, vals...)
	if err != nil {
		logger.Error(ctx, "WriteUsageFlow call Exec err",
			zap.String("cond", cond),
			zap.Any("vals", vals),
			zap.Error(err),
		)
		return err
	}
	return nil
}
