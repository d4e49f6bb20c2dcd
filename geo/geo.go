// Package geo 提供距离计算和任务可见范围判断
package geo

import (
	"math"

	"github.com/zlyuancn/engage/model"
)

const EarthRadiusKm = 6371.0

// 两点间的大圆距离, 单位公里
func Distance(a, b model.Location) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

var tierScope = map[model.Tier]model.GeoScope{
	model.Tier_Free:     model.GeoScope_City,
	model.Tier_Silver:   model.GeoScope_Region,
	model.Tier_Gold:     model.GeoScope_Country,
	model.Tier_Platinum: model.GeoScope_Global,
}

// 根据商家类型和订阅档位获取任务可见范围
func GetGeoScope(bt model.BusinessType, tier model.Tier) model.GeoScope {
	if bt == model.BusinessType_Online {
		return model.GeoScope_Global
	}
	if s, ok := tierScope[tier]; ok {
		return s
	}
	return model.GeoScope_City
}

// 创建任务时的可见范围. 指定了目标国家时全球范围收窄为多国
func ResolveMissionScope(bt model.BusinessType, tier model.Tier, targetCountries []string) model.GeoScope {
	scope := GetGeoScope(bt, tier)
	if scope == model.GeoScope_Global && len(targetCountries) > 0 {
		return model.GeoScope_MultiCountry
	}
	return scope
}

// 用户是否在任务的可见范围内. 字段缺失时不可见, 全球范围除外.
// REGION 按国家匹配.
func IsMissionVisibleToUser(m *model.Mission, u *model.User) bool {
	if m == nil {
		return false
	}
	if m.GeoScope == model.GeoScope_Global {
		return true
	}
	if u == nil {
		return false
	}

	switch m.GeoScope {
	case model.GeoScope_City:
		return m.City != "" && u.City != "" && m.City == u.City
	case model.GeoScope_Region, model.GeoScope_Country:
		return m.Country != "" && u.Country != "" && m.Country == u.Country
	case model.GeoScope_MultiCountry:
		if u.Country == "" {
			return false
		}
		for _, c := range m.TargetCountries {
			if c == u.Country {
				return true
			}
		}
	}
	return false
}
