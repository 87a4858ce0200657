package services

import (
	"fmt"

	"breathguard-api/pkg/models"
)

// AdvisoryGroups AQIと疾患フラグに応じた推奨文のグループ
type AdvisoryGroups struct {
	General    []string `json:"general"`
	Protective []string `json:"protective"`
	Activity   []string `json:"activity"`
	Medical    []string `json:"medical"`
}

// RouteAdvice 現在地と目的地のAQI比較によるアドバイス
type RouteAdvice struct {
	ShouldTravel string `json:"should_travel"` // "yes" / "no" / "neutral"
	Message      string `json:"message"`
	Color        string `json:"color"`
}

// BuildAdvisory AQI値・疾患フラグ・屋外活動予定から段階別の推奨文を生成する
func BuildAdvisory(aqi float64, conditions models.UserConditions, isOutdoorActivity bool) AdvisoryGroups {
	groups := AdvisoryGroups{
		General:    []string{},
		Protective: []string{},
		Activity:   []string{},
		Medical:    []string{},
	}

	switch {
	case aqi <= 50:
		groups.General = append(groups.General, "Air quality is good. Enjoy outdoor activities!")
	case aqi <= 100:
		groups.General = append(groups.General, "Air quality is acceptable for most people.")
		if conditions.HasAsthma || conditions.HasCOPD || conditions.HasAllergies {
			groups.General = append(groups.General, "People with respiratory conditions should monitor for symptoms.")
		}
	case aqi <= 150:
		groups.General = append(groups.General, "Sensitive groups should reduce prolonged outdoor exertion.")
		groups.Protective = append(groups.Protective, "Consider wearing a mask (N95 or KN95) if going outside")
	case aqi <= 200:
		groups.General = append(groups.General, "Everyone should reduce prolonged outdoor exertion.")
		groups.Protective = append(groups.Protective,
			"Wear a mask (N95 or KN95) when outdoors",
			"Keep windows and doors closed",
		)
	case aqi <= 300:
		groups.General = append(groups.General, "Everyone should avoid all outdoor exertion.")
		groups.Protective = append(groups.Protective,
			"Stay indoors with filtered air if possible",
			"Wear N95/KN95 mask if you must go outside",
			"Run air purifiers indoors",
		)
	default:
		groups.General = append(groups.General, "EMERGENCY: Remain indoors and avoid all physical activity.")
		groups.Protective = append(groups.Protective,
			"Do NOT go outside unless absolutely necessary",
			"Seal windows and doors",
			"Use air purifiers on high setting",
			"Consider evacuation if conditions persist",
		)
	}

	if isOutdoorActivity {
		if aqi > 100 {
			groups.Activity = append(groups.Activity,
				"Postpone outdoor activities if possible",
				"Move activities indoors",
			)
		}
		if aqi > 150 {
			groups.Activity = append(groups.Activity, "Cancel all outdoor activities")
		}
	}

	if conditions.HasRespiratoryCondition() {
		if aqi > 100 {
			groups.Medical = append(groups.Medical,
				"Keep rescue inhaler readily available",
				"Monitor symptoms closely",
			)
		}
		if aqi > 150 {
			groups.Medical = append(groups.Medical,
				"Use preventive medications as prescribed",
				"Contact healthcare provider if symptoms worsen",
			)
		}
		if aqi > 200 {
			groups.Medical = append(groups.Medical,
				"Consider increasing controller medications (consult your doctor)",
				"Have emergency action plan ready",
			)
		}
	}

	if conditions.HasAllergies && aqi > 100 {
		groups.Medical = append(groups.Medical,
			"Take allergy medications as prescribed",
			"Keep antihistamines available",
		)
	}

	return groups
}

// ShouldTriggerAlert 全画面アラートを出すべきかどうかを判定する。
// very_unhealthy以上は常時、unhealthyは呼吸器疾患持ちのみ、
// unhealthy_sensitiveは喘息/COPD持ちのみ。
func ShouldTriggerAlert(aqi float64, conditions models.UserConditions) bool {
	level := models.GetAQILevel(aqi)

	switch level.AlertLevel {
	case "critical", "emergency":
		return true
	case "high":
		return conditions.HasAsthma || conditions.HasCOPD || conditions.HasAllergies
	case "medium":
		return conditions.HasRespiratoryCondition()
	}
	return false
}

// GetRouteAdvice 現在地と目的地のAQI差から移動の是非を判定する（閾値±20）
func GetRouteAdvice(currentAQI, destinationAQI float64) RouteAdvice {
	destLevel := models.GetAQILevel(destinationAQI)

	switch {
	case destinationAQI < currentAQI-20:
		return RouteAdvice{
			ShouldTravel: "yes",
			Message:      fmt.Sprintf("Air quality improves at your destination (%s). Travel is advisable.", destLevel.Label),
			Color:        "green",
		}
	case destinationAQI > currentAQI+20:
		return RouteAdvice{
			ShouldTravel: "no",
			Message:      fmt.Sprintf("Warning: Air quality worsens at your destination (%s). Consider postponing.", destLevel.Label),
			Color:        "red",
		}
	default:
		return RouteAdvice{
			ShouldTravel: "neutral",
			Message:      fmt.Sprintf("Air quality is similar at your destination (%s).", destLevel.Label),
			Color:        "yellow",
		}
	}
}

// HealthScore AQIを10点満点の健康スコアに変換する（高いほど良い）
func HealthScore(aqi float64) int {
	switch {
	case aqi <= 50:
		return 10
	case aqi <= 100:
		return 8
	case aqi <= 150:
		return 6
	case aqi <= 200:
		return 4
	case aqi <= 300:
		return 2
	default:
		return 1
	}
}
