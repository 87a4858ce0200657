package models

// AQIBucket AQI集計に使う固定6バケットのキー名
const (
	BucketGood               = "good"
	BucketModerate           = "moderate"
	BucketUnhealthySensitive = "unhealthy_sensitive"
	BucketUnhealthy          = "unhealthy"
	BucketVeryUnhealthy      = "very_unhealthy"
	BucketHazardous          = "hazardous"
)

// AQILevel AQIレンジ1段階分の定義
type AQILevel struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Midpoint   float64 `json:"midpoint"` // 合成学習サンプルの基準AQI
	Color      string  `json:"color"`
	AlertLevel string  `json:"alert_level"` // none/low/medium/high/critical/emergency
}

// AQILevels [0,500]を隙間なく分割する6段階のAQIレンジ。
// 境界値はEPAの区分に従い、midpointは連合統計から学習データを
// 復元するときの代表値として使う。
var AQILevels = []AQILevel{
	{Key: BucketGood, Label: "Good", Min: 0, Max: 50, Midpoint: 25, Color: "green", AlertLevel: "none"},
	{Key: BucketModerate, Label: "Moderate", Min: 51, Max: 100, Midpoint: 75, Color: "yellow", AlertLevel: "low"},
	{Key: BucketUnhealthySensitive, Label: "Unhealthy for Sensitive Groups", Min: 101, Max: 150, Midpoint: 125, Color: "orange", AlertLevel: "medium"},
	{Key: BucketUnhealthy, Label: "Unhealthy", Min: 151, Max: 200, Midpoint: 175, Color: "red", AlertLevel: "high"},
	{Key: BucketVeryUnhealthy, Label: "Very Unhealthy", Min: 201, Max: 300, Midpoint: 250, Color: "purple", AlertLevel: "critical"},
	{Key: BucketHazardous, Label: "Hazardous", Min: 301, Max: 500, Midpoint: 400, Color: "maroon", AlertLevel: "emergency"},
}

// GetAQILevel AQI値が属するレンジを返す。500超はhazardous扱い。
func GetAQILevel(aqi float64) AQILevel {
	for _, level := range AQILevels {
		if aqi >= level.Min && aqi <= level.Max {
			return level
		}
	}
	return AQILevels[len(AQILevels)-1]
}

// BucketForAQI AQI値をバケットキーに分類する。
// レンジ境界の間の小数値（例: 50.5）は下位レンジの端に吸収される。
func BucketForAQI(aqi float64) string {
	if aqi <= 0 {
		return BucketGood
	}
	for i := len(AQILevels) - 1; i >= 0; i-- {
		if aqi >= AQILevels[i].Min {
			return AQILevels[i].Key
		}
	}
	return BucketGood
}

// BucketMidpoint バケットキーの代表AQI値を返す。未知キーは100。
func BucketMidpoint(key string) float64 {
	for _, level := range AQILevels {
		if level.Key == key {
			return level.Midpoint
		}
	}
	return 100
}
