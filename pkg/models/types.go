package models

import (
	"math"
	"time"
)

// Severity 症状の重症度（4段階）
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// SeverityLevels 重症度の序列（インデックス = 数値エンコーディング 0〜3）
var SeverityLevels = []Severity{SeverityMild, SeverityModerate, SeveritySevere, SeverityCritical}

// Index 重症度を0〜3の数値に変換する。未知の値は0（mild）として扱う。
func (s Severity) Index() int {
	for i, level := range SeverityLevels {
		if s == level {
			return i
		}
	}
	return 0
}

// SeverityFromIndex converts a 0-3 encoding back to a Severity.
// Out-of-range values are clamped.
func SeverityFromIndex(idx int) Severity {
	if idx < 0 {
		idx = 0
	}
	if idx > 3 {
		idx = 3
	}
	return SeverityLevels[idx]
}

// SymptomLogEntry ユーザーが記録した1件の症状ログ
type SymptomLogEntry struct {
	ID           string    `json:"id"`
	Symptom      string    `json:"symptom" binding:"required"`
	Severity     Severity  `json:"severity" binding:"required"`
	Trigger      string    `json:"trigger,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	AQIAtLogTime float64   `json:"aqi_at_log_time,omitempty"` // 記録時のAQI（0は未記録扱い）
}

// UserConditions 問診票から得られる呼吸器疾患フラグ
type UserConditions struct {
	HasAsthma    bool `json:"has_asthma"`
	HasCOPD      bool `json:"has_copd"`
	HasAllergies bool `json:"has_allergies"`
}

// HasRespiratoryCondition 喘息またはCOPDを持つかどうか
func (c UserConditions) HasRespiratoryCondition() bool {
	return c.HasAsthma || c.HasCOPD
}

// BucketStatistics 1つのAQIバケットに対する匿名化済み統計
type BucketStatistics struct {
	Count          int      `json:"count"`
	AvgSeverity    float64  `json:"avg_severity"`
	MaxSeverity    int      `json:"max_severity"`
	MinSeverity    int      `json:"min_severity"`
	CommonTriggers []string `json:"common_triggers,omitempty"` // 頻度順・最大3件
}

// AggregatedStatistics AQIバケット名 → 統計のマップ。
// バケットはログが1件以上あるときだけ存在する。
type AggregatedStatistics map[string]BucketStatistics

// Coordinates 座標（連合データでは小数第1位に丸めて使用する）
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Rounded returns the coordinates rounded to one decimal place,
// the coarse (~10km) resolution published to the federated store.
func (c Coordinates) Rounded() Coordinates {
	return Coordinates{
		Lat: math.Round(c.Lat*10) / 10,
		Lng: math.Round(c.Lng*10) / 10,
	}
}

// FederatedRecord 連合学習ストアに公開される匿名レコード。
// 個人識別子は一切含まない。作成後は変更されない（追記専用）。
type FederatedRecord struct {
	ID             string               `json:"id"`
	Location       Coordinates          `json:"location"`
	Conditions     UserConditions       `json:"conditions"`
	Statistics     AggregatedStatistics `json:"statistics"`
	DataPointCount int                  `json:"data_point_count"`
	CreatedAt      time.Time            `json:"created_at"`
}

// TrainingExample 学習用の1サンプル。学習実行ごとに生成され、保存されない。
// Features: [aqi/500, hasAsthma, hasCOPD, hasAllergies, hour/24]
type TrainingExample struct {
	Features []float64 `json:"features"`
	Label    []float64 `json:"label"` // one-hot（長さ4）
}

// ModelType 予測に使用したモデルの種別
type ModelType string

const (
	ModelTypePersonal  ModelType = "personal"
	ModelTypeCommunity ModelType = "community"
	ModelTypeRuleBased ModelType = "rule_based"
)

// PredictionResult 予測APIが常に返す結果。
// ルールベースの場合 Probabilities は nil になる。
type PredictionResult struct {
	Severity        Severity             `json:"severity"`
	Confidence      float64              `json:"confidence"` // 0〜100
	Probabilities   map[Severity]float64 `json:"probabilities,omitempty"`
	Recommendations []string             `json:"recommendations"`
	ModelType       ModelType            `json:"model_type"`
	IsRuleBased     bool                 `json:"is_rule_based"`
}

// TrainingReport 学習1回分の診断情報（ログ用途のみ）
type TrainingReport struct {
	ModelType       ModelType `json:"model_type"`
	Examples        int       `json:"examples"`
	Epochs          int       `json:"epochs"`
	FinalLoss       float64   `json:"final_loss"`
	ValidationLoss  float64   `json:"validation_loss"`
	TrainedAt       time.Time `json:"trained_at"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// AQIReading 外部AQIソースから取得した1件の観測値
type AQIReading struct {
	AQI        float64            `json:"aqi"`
	Components map[string]float64 `json:"components,omitempty"` // pm2_5, pm10, o3, no2, so2, co
	Location   string             `json:"location,omitempty"`
	Source     string             `json:"source"`
	Timestamp  time.Time          `json:"timestamp"`
}

// TrainRequest 学習リクエスト
type TrainRequest struct {
	Logs       []SymptomLogEntry `json:"logs"`
	AQIHistory []float64         `json:"aqi_history,omitempty"`
	Conditions UserConditions    `json:"conditions"`
	Location   *Coordinates      `json:"location,omitempty"`
}

// TrainResponse 学習APIのレスポンス
type TrainResponse struct {
	Trained   bool            `json:"trained"`
	ModelType ModelType       `json:"model_type"`
	Report    *TrainingReport `json:"report,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// PredictRequest 予測リクエスト。
// AQI=0も有効な観測値なのでrequiredは付けない（範囲はハンドラ側で検証）。
type PredictRequest struct {
	AQI        float64        `json:"aqi"`
	Conditions UserConditions `json:"conditions"`
}

// PublishRequest 連合ストアへの匿名統計公開リクエスト
type PublishRequest struct {
	Logs       []SymptomLogEntry `json:"logs" binding:"required"`
	Conditions UserConditions    `json:"conditions"`
	Location   Coordinates       `json:"location"`
}

// FederatedQueryRequest 連合ストア検索リクエスト
type FederatedQueryRequest struct {
	Conditions UserConditions `json:"conditions"`
	Location   *Coordinates   `json:"location,omitempty"`
	RadiusKm   float64        `json:"radius_km,omitempty"` // デフォルト50km
}

// ChatRequest represents an incoming assistant chat request
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ChatResponse represents the assistant's reply
type ChatResponse struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}
