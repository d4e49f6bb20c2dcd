package side_effect

import (
	"context"

	"github.com/zlyuancn/engage/model"
)

// 补偿消息工具
type MqTool interface {
	/*
		发送补偿消息, 要求延迟10秒以上消费, 消费时调用 TriggerMqHandle.
		key 由订阅所属者和引用id组成, 可用于消息分区
	*/
	Send(ctx context.Context, key string, payload string) error
}

var mqTool MqTool = BaseMqTool{}

// 不发送任何消息
type BaseMqTool struct{}

func (BaseMqTool) Send(ctx context.Context, key string, payload string) error { return nil }

// 注册补偿消息工具, 传入nil时恢复为不发送
func RegistryMqTool(v MqTool) {
	if v == nil {
		v = BaseMqTool{}
	}
	mqTool = v
}

func mqKey(data *model.SideEffectData) string {
	return data.OwnerID + ":" + data.RefID
}

// 消费补偿消息时回调. 返回错误时要求业务mq重试
func TriggerMqHandle(ctx context.Context, payload string) error {
	return compensationSideEffect(ctx, payload)
}
