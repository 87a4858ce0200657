package services

import (
	"strings"
	"sync"
	"time"

	"breathguard-api/pkg/models"

	"github.com/gin-gonic/gin"
)

// maxRequestLogEntries 保持するリクエストログの上限（古いものから破棄）
const maxRequestLogEntries = 10000

// RequestLogEntry 単一のリクエストログ
type RequestLogEntry struct {
	Timestamp    time.Time
	Path         string
	Method       string
	StatusCode   int
	ResponseTime time.Duration
}

// MonitoringService APIのモニタリング機能を提供する。
// リクエストログに加えて、予測がどのモデルで処理されたかも数える。
type MonitoringService struct {
	logs             []RequestLogEntry
	predictionCounts map[models.ModelType]int
	mu               sync.RWMutex
}

// NewMonitoringService 新しいMonitoringServiceを生成する
func NewMonitoringService() *MonitoringService {
	return &MonitoringService{
		logs:             make([]RequestLogEntry, 0),
		predictionCounts: make(map[models.ModelType]int),
	}
}

// LogRequest リクエストを記録する
func (s *MonitoringService) LogRequest(entry RequestLogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxRequestLogEntries {
		s.logs = s.logs[len(s.logs)-maxRequestLogEntries:]
	}
}

// RecordPrediction 予測を処理したモデル種別を数える
func (s *MonitoringService) RecordPrediction(modelType models.ModelType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictionCounts[modelType]++
}

// PredictionCounts モデル種別ごとの予測処理回数のコピーを返す
func (s *MonitoringService) PredictionCounts() map[models.ModelType]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.ModelType]int, len(s.predictionCounts))
	for modelType, count := range s.predictionCounts {
		counts[modelType] = count
	}
	return counts
}

// LoggingMiddleware リクエスト情報を記録するGinミドルウェア
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 次のミドルウェア/ハンドラを実行
		c.Next()

		// 管理系パスは集計から除外
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/admin") || strings.HasPrefix(path, "/api/v1/monitoring") {
			return
		}

		entry := RequestLogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.LogRequest(entry)
	}
}

// DashboardData ダッシュボード表示用の集計済みデータ
type DashboardData struct {
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	PredictionCounts map[models.ModelType]int `json:"predictionCounts"`
	RecentErrors     []RequestLogEntry        `json:"recentErrors"`
}

// GetDashboardData 指定された期間のログを集計してダッシュボード用データを返す
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filteredLogs := make([]RequestLogEntry, 0)
	for _, entry := range s.logs {
		if entry.Timestamp.After(since) {
			filteredLogs = append(filteredLogs, entry)
		}
	}

	// requestsOverTime の集計
	requestsOverTimeSlice := make([]map[string]interface{}, periodHours)
	hourlyBuckets := make(map[string]int)

	// 時間のバケットを初期化し、スライスの順序を確定させる
	for i := 0; i < periodHours; i++ {
		targetTime := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		hourKey := targetTime.Format("15:00")
		bucketKey := targetTime.Truncate(time.Hour).Format(time.RFC3339)
		hourlyBuckets[bucketKey] = 0
		requestsOverTimeSlice[i] = map[string]interface{}{"time": hourKey, "requests": 0}
	}

	for _, entry := range filteredLogs {
		bucketKey := entry.Timestamp.Truncate(time.Hour).Format(time.RFC3339)
		hourlyBuckets[bucketKey]++
	}

	for i := 0; i < periodHours; i++ {
		targetTime := now.Add(-time.Duration(periodHours-1-i) * time.Hour)
		bucketKey := targetTime.Truncate(time.Hour).Format(time.RFC3339)
		if count, ok := hourlyBuckets[bucketKey]; ok {
			requestsOverTimeSlice[i]["requests"] = count
		}
	}

	// endpoints の集計
	endpoints := make(map[string]int)
	for _, entry := range filteredLogs {
		endpoints[entry.Path]++
	}

	// statusCodes の集計
	statusCodes := map[string]int{
		"2xx Success":      0,
		"4xx Client Error": 0,
		"5xx Server Error": 0,
	}
	for _, entry := range filteredLogs {
		switch {
		case entry.StatusCode >= 200 && entry.StatusCode < 300:
			statusCodes["2xx Success"]++
		case entry.StatusCode >= 400 && entry.StatusCode < 500:
			statusCodes["4xx Client Error"]++
		case entry.StatusCode >= 500:
			statusCodes["5xx Server Error"]++
		}
	}
	statusCodesSlice := make([]map[string]interface{}, 0)
	for name, value := range statusCodes {
		statusCodesSlice = append(statusCodesSlice, map[string]interface{}{"name": name, "value": value})
	}

	// avgResponseTimes の集計
	responseTimeSum := make(map[string]time.Duration)
	responseCount := make(map[string]int)
	for _, entry := range filteredLogs {
		responseTimeSum[entry.Path] += entry.ResponseTime
		responseCount[entry.Path]++
	}
	avgResponseTimesSlice := make([]map[string]interface{}, 0)
	for path, totalTime := range responseTimeSum {
		avg := totalTime.Milliseconds() / int64(responseCount[path])
		avgResponseTimesSlice = append(avgResponseTimesSlice, map[string]interface{}{"endpoint": path, "responseTime": avg})
	}

	// predictionCounts のコピー
	predictionCounts := make(map[models.ModelType]int, len(s.predictionCounts))
	for modelType, count := range s.predictionCounts {
		predictionCounts[modelType] = count
	}

	// recentErrors の集計
	recentErrors := make([]RequestLogEntry, 0)
	for i := len(filteredLogs) - 1; i >= 0; i-- {
		if filteredLogs[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filteredLogs[i])
			if len(recentErrors) >= 10 {
				break
			}
		}
	}

	return DashboardData{
		RequestsOverTime: requestsOverTimeSlice,
		Endpoints:        endpoints,
		StatusCodes:      statusCodesSlice,
		AvgResponseTimes: avgResponseTimesSlice,
		PredictionCounts: predictionCounts,
		RecentErrors:     recentErrors,
	}
}
