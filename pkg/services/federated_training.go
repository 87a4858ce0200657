package services

import (
	"math"
	"math/rand"

	"breathguard-api/pkg/models"
)

// maxExamplesPerBucket 1レコードの1バケットから生成する合成サンプルの上限。
// 単一の貢献者が学習データを支配しないようにするためのキャップ。
const maxExamplesPerBucket = 10

// aqiJitterRange 合成サンプルのAQIに加えるノイズの幅（±10）
const aqiJitterRange = 10.0

// BuildFederatedTrainingData 連合レコードの集計統計を合成学習サンプルに展開する。
// 各バケットから min(count, 10) 件を生成し、AQIはバケット中央値±一様ノイズ、
// ラベルは round(avgSeverity) をone-hot化する。
//
// 時刻特徴は[0,24)の一様乱数になる。集計統計には記録時刻が残らないため、
// 意図した情報損失であり修正対象ではない。
func BuildFederatedTrainingData(records []models.FederatedRecord, rng *rand.Rand) []models.TrainingExample {
	var examples []models.TrainingExample

	for _, record := range records {
		for bucket, stats := range record.Statistics {
			if stats.Count <= 0 {
				continue
			}

			midpoint := models.BucketMidpoint(bucket)
			severityIndex := int(math.Round(stats.AvgSeverity))
			label := OneHotLabel(severityIndex)

			weight := stats.Count
			if weight > maxExamplesPerBucket {
				weight = maxExamplesPerBucket
			}

			for i := 0; i < weight; i++ {
				aqi := midpoint + (rng.Float64()*2-1)*aqiJitterRange
				hour := rng.Float64() * 24
				examples = append(examples, models.TrainingExample{
					Features: BuildFeatureVector(aqi, record.Conditions, hour),
					Label:    label,
				})
			}
		}
	}

	return examples
}

// BuildPersonalTrainingData ユーザー自身の症状ログから学習サンプルを構成する。
// aqiHistoryはログと同じ並びのAQI値で、欠けている位置はログ記録時のAQI、
// それも無ければ既定値を使う。
func BuildPersonalTrainingData(logs []models.SymptomLogEntry, aqiHistory []float64, conditions models.UserConditions) []models.TrainingExample {
	examples := make([]models.TrainingExample, 0, len(logs))

	for i, entry := range logs {
		aqi := entry.AQIAtLogTime
		if i < len(aqiHistory) && aqiHistory[i] > 0 {
			aqi = aqiHistory[i]
		}
		if aqi <= 0 {
			aqi = defaultAQIForLog
		}

		hour := float64(entry.Timestamp.Hour())
		examples = append(examples, models.TrainingExample{
			Features: BuildFeatureVector(aqi, conditions, hour),
			Label:    OneHotLabel(entry.Severity.Index()),
		})
	}

	return examples
}
