package services

import (
	"sort"

	"breathguard-api/pkg/models"
)

// defaultAQIForLog AQI未記録のログに割り当てる既定値
const defaultAQIForLog = 100.0

// topTriggerLimit 匿名統計に含める上位トリガーの件数
const topTriggerLimit = 3

// AggregationService 症状ログをプライバシー保護された統計に集計するサービス
type AggregationService struct{}

// NewAggregationService 新しい集計サービスを作成
func NewAggregationService() *AggregationService {
	return &AggregationService{}
}

// Aggregate 症状ログをAQIバケットごとの統計に変換する。
// 空のログ列を渡すと空のマップを返す。失敗することはない。
func (as *AggregationService) Aggregate(logs []models.SymptomLogEntry) models.AggregatedStatistics {
	grouped := make(map[string][]models.SymptomLogEntry)
	for _, entry := range logs {
		aqi := entry.AQIAtLogTime
		if aqi <= 0 {
			aqi = defaultAQIForLog
		}
		bucket := models.BucketForAQI(aqi)
		grouped[bucket] = append(grouped[bucket], entry)
	}

	statistics := make(models.AggregatedStatistics)
	for bucket, bucketLogs := range grouped {
		severities := make([]int, len(bucketLogs))
		for i, entry := range bucketLogs {
			severities[i] = entry.Severity.Index()
		}

		sum := 0
		minSeverity := severities[0]
		maxSeverity := severities[0]
		for _, s := range severities {
			sum += s
			if s < minSeverity {
				minSeverity = s
			}
			if s > maxSeverity {
				maxSeverity = s
			}
		}

		statistics[bucket] = models.BucketStatistics{
			Count:          len(bucketLogs),
			AvgSeverity:    float64(sum) / float64(len(bucketLogs)),
			MaxSeverity:    maxSeverity,
			MinSeverity:    minSeverity,
			CommonTriggers: topTriggers(bucketLogs, topTriggerLimit),
		}
	}

	return statistics
}

// topTriggers ログ中の非空トリガーを頻度順に最大topN件返す。
// 同頻度のトリガーは先に出現したものを優先する（初出順タイブレーク）。
func topTriggers(logs []models.SymptomLogEntry, topN int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	order := 0
	for _, entry := range logs {
		if entry.Trigger == "" {
			continue
		}
		if _, ok := counts[entry.Trigger]; !ok {
			firstSeen[entry.Trigger] = order
			order++
		}
		counts[entry.Trigger]++
	}

	triggers := make([]string, 0, len(counts))
	for trigger := range counts {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool {
		if counts[triggers[i]] != counts[triggers[j]] {
			return counts[triggers[i]] > counts[triggers[j]]
		}
		return firstSeen[triggers[i]] < firstSeen[triggers[j]]
	})

	if len(triggers) > topN {
		triggers = triggers[:topN]
	}
	return triggers
}
