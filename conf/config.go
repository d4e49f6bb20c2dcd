package conf

const EngageConfigKey = "engage"

const (
	DocumentStore_Mongo  = "mongo"
	DocumentStore_Memory = "memory"
)

const (
	defDocumentStore                = DocumentStore_Mongo
	defMongoURI                     = "mongodb://localhost:27017"
	defMongoDatabase                = "engage"
	defMongoConnectTimeoutSec       = 5
	defMissionCollection            = "missions"
	defParticipationCollection      = "participations"
	defLevel1SubscriptionCollection = "level1Subscriptions"
	defLevel2SubscriptionCollection = "level2Subscriptions"
	defUserCollection               = "users"

	defQuotaRedisName            = "engage"
	defQuotaCounterKeyFormat     = "{<owner_id>}:<level>:<kind>:<window>:quota"
	defQuotaOrderKeyFormat       = "{<owner_id>}:<ref_id>:quota_os"
	defSideEffectStatusKeyFormat = "{<owner_id>}:<ref_id>:<side_effect>:<side_effect_type>:quota_se"
	defQuotaCounterExpireDay     = 100
	defQuotaOrderExpireDay       = 7

	defBenefitSqlxName          = "engage"
	defReloadBenefitIntervalSec = 60

	defUsageFlowSqlxName       = "engage"
	defWriteUsageFlow          = false
	defUsageFlowTableShardNums = 2

	defDefaultRecommendLimit = 10
	defMaxRecommendLimit     = 50

	defVerificationPath      = "/approveVerification"
	defSubscriptionResetPath = "/resetSubscriptionCounters"
	defPrivilegedTimeoutSec  = 10
)

var Conf = Config{
	DocumentStore:                defDocumentStore,
	MongoURI:                     defMongoURI,
	MongoDatabase:                defMongoDatabase,
	MongoConnectTimeoutSec:       defMongoConnectTimeoutSec,
	MissionCollection:            defMissionCollection,
	ParticipationCollection:      defParticipationCollection,
	Level1SubscriptionCollection: defLevel1SubscriptionCollection,
	Level2SubscriptionCollection: defLevel2SubscriptionCollection,
	UserCollection:               defUserCollection,

	QuotaRedisName:            defQuotaRedisName,
	QuotaCounterKeyFormat:     defQuotaCounterKeyFormat,
	QuotaOrderKeyFormat:       defQuotaOrderKeyFormat,
	SideEffectStatusKeyFormat: defSideEffectStatusKeyFormat,
	QuotaCounterExpireDay:     defQuotaCounterExpireDay,
	QuotaOrderExpireDay:       defQuotaOrderExpireDay,
	TryEvalShaQuotaOp:         true,

	BenefitSqlxName:          defBenefitSqlxName,
	ReloadBenefitIntervalSec: defReloadBenefitIntervalSec,

	UsageFlowSqlxName:       defUsageFlowSqlxName,
	WriteUsageFlow:          defWriteUsageFlow,
	UsageFlowTableShardNums: defUsageFlowTableShardNums,

	DefaultRecommendLimit: defDefaultRecommendLimit,
	MaxRecommendLimit:     defMaxRecommendLimit,

	VerificationPath:      defVerificationPath,
	SubscriptionResetPath: defSubscriptionResetPath,
	PrivilegedTimeoutSec:  defPrivilegedTimeoutSec,
}

type Config struct {
	DocumentStore                string // 文档存储, mongo 或 memory
	MongoURI                     string // mongo连接地址
	MongoDatabase                string // mongo库名
	MongoConnectTimeoutSec       int    // mongo连接超时秒数
	MissionCollection            string // 任务集合
	ParticipationCollection      string // 参与记录集合
	Level1SubscriptionCollection string // level1订阅集合
	Level2SubscriptionCollection string // level2订阅集合
	UserCollection               string // 用户集合

	QuotaRedisName            string // 配额redis组件名
	QuotaCounterKeyFormat     string // 配额计数key格式化字符串
	QuotaOrderKeyFormat       string // 配额记录状态key格式化字符串
	SideEffectStatusKeyFormat string // 副作用状态key格式化字符串
	QuotaCounterExpireDay     int    // 配额计数保留天数
	QuotaOrderExpireDay       int    // 配额记录状态保留天数
	AtomicQuota               bool   // 是否使用redis原子计数判定配额, 关闭时为先读后写
	TryEvalShaQuotaOp         bool   // 是否预加载lua脚本

	BenefitSqlxName          string // 档位权益sqlx组件名
	LoadBenefitFromDB        bool   // 是否从db加载档位权益, 否则使用内置权益表
	ReloadBenefitIntervalSec int    // 重新加载档位权益间隔秒数

	UsageFlowSqlxName       string // 用量流水sqlx组件名
	WriteUsageFlow          bool   // 是否写入用量流水
	UsageFlowTableShardNums uint32 // 用量流水表分片数量

	DefaultRecommendLimit int // 默认推荐数量
	MaxRecommendLimit     int // 最大推荐数量

	PrivilegedBaseURL     string // 特权接口地址, 为空时不调用
	VerificationPath      string // 认证审核接口路径
	SubscriptionResetPath string // 订阅计数重置接口路径
	PrivilegedTimeoutSec  int    // 特权接口超时秒数
}

func (conf *Config) Check() {
	if conf.DocumentStore != DocumentStore_Memory {
		conf.DocumentStore = DocumentStore_Mongo
	}
	if conf.MongoURI == "" {
		conf.MongoURI = defMongoURI
	}
	if conf.MongoDatabase == "" {
		conf.MongoDatabase = defMongoDatabase
	}
	if conf.MongoConnectTimeoutSec < 1 {
		conf.MongoConnectTimeoutSec = defMongoConnectTimeoutSec
	}
	if conf.MissionCollection == "" {
		conf.MissionCollection = defMissionCollection
	}
	if conf.ParticipationCollection == "" {
		conf.ParticipationCollection = defParticipationCollection
	}
	if conf.Level1SubscriptionCollection == "" {
		conf.Level1SubscriptionCollection = defLevel1SubscriptionCollection
	}
	if conf.Level2SubscriptionCollection == "" {
		conf.Level2SubscriptionCollection = defLevel2SubscriptionCollection
	}
	if conf.UserCollection == "" {
		conf.UserCollection = defUserCollection
	}

	if conf.QuotaRedisName == "" {
		conf.QuotaRedisName = defQuotaRedisName
	}
	if conf.QuotaCounterKeyFormat == "" {
		conf.QuotaCounterKeyFormat = defQuotaCounterKeyFormat
	}
	if conf.QuotaOrderKeyFormat == "" {
		conf.QuotaOrderKeyFormat = defQuotaOrderKeyFormat
	}
	if conf.SideEffectStatusKeyFormat == "" {
		conf.SideEffectStatusKeyFormat = defSideEffectStatusKeyFormat
	}
	if conf.QuotaCounterExpireDay < 1 {
		conf.QuotaCounterExpireDay = defQuotaCounterExpireDay
	}
	if conf.QuotaOrderExpireDay < 1 {
		conf.QuotaOrderExpireDay = defQuotaOrderExpireDay
	}

	if conf.BenefitSqlxName == "" {
		conf.BenefitSqlxName = defBenefitSqlxName
	}
	if conf.ReloadBenefitIntervalSec < 1 {
		conf.ReloadBenefitIntervalSec = defReloadBenefitIntervalSec
	}

	if conf.UsageFlowSqlxName == "" {
		conf.UsageFlowSqlxName = defUsageFlowSqlxName
	}
	if conf.UsageFlowTableShardNums < 1 {
		conf.UsageFlowTableShardNums = defUsageFlowTableShardNums
	}

	if conf.DefaultRecommendLimit < 1 {
		conf.DefaultRecommendLimit = defDefaultRecommendLimit
	}
	if conf.MaxRecommendLimit < 1 {
		conf.MaxRecommendLimit = defMaxRecommendLimit
	}
	if conf.DefaultRecommendLimit > conf.MaxRecommendLimit {
		conf.DefaultRecommendLimit = conf.MaxRecommendLimit
	}

	if conf.VerificationPath == "" {
		conf.VerificationPath = defVerificationPath
	}
	if conf.SubscriptionResetPath == "" {
		conf.SubscriptionResetPath = defSubscriptionResetPath
	}
	if conf.PrivilegedTimeoutSec < 1 {
		conf.PrivilegedTimeoutSec = defPrivilegedTimeoutSec
	}
}
