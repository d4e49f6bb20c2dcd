package engage

import (
	"github.com/zlyuancn/engage/mission"
	"github.com/zlyuancn/engage/privileged"
	"github.com/zlyuancn/engage/quota"
)

var (
	// 订阅级别无效
	ErrInvalidLevel = quota.ErrInvalidLevel
	// 档位不属于该级别
	ErrInvalidTier = quota.ErrInvalidTier
	// 订阅状态无效
	ErrInvalidStatus = quota.ErrInvalidStatus
	// 所属者为空
	ErrEmptyOwner = quota.ErrEmptyOwner
)

var (
	ErrInvalidInput          = mission.ErrInvalidInput
	ErrMissionNotFound       = mission.ErrMissionNotFound
	ErrMissionInactive       = mission.ErrMissionInactive
	ErrMissionExpired        = mission.ErrMissionExpired
	ErrMissionFull           = mission.ErrMissionFull
	ErrUserNotFound          = mission.ErrUserNotFound
	ErrNotBusiness           = mission.ErrNotBusiness
	ErrForbidden             = mission.ErrForbidden
	ErrAlreadyApplied        = mission.ErrAlreadyApplied
	ErrParticipationNotFound = mission.ErrParticipationNotFound
	ErrInvalidTransition     = mission.ErrInvalidTransition
)

// 未配置特权接口地址
var ErrPrivilegedNotConfigured = privileged.ErrNotConfigured
