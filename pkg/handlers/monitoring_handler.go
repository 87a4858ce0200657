package handlers

import (
	"net/http"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// periodPresets モニタリング集計期間のプリセット（時間数）
var periodPresets = map[string]int{
	"1h":  1,
	"24h": 24,
	"7d":  24 * 7,
}

// MonitoringHandler リクエストログと予測モデル利用状況のハンドラ
type MonitoringHandler struct {
	service *services.MonitoringService
}

// NewMonitoringHandler 新しいMonitoringHandlerを生成する
func NewMonitoringHandler(service *services.MonitoringService) *MonitoringHandler {
	return &MonitoringHandler{service: service}
}

// GetLogs 指定期間のリクエストログ集計を返す。
// period: 1h / 24h / 7d（不明な値は24h扱い）
func (h *MonitoringHandler) GetLogs(c *gin.Context) {
	period := c.DefaultQuery("period", "24h")
	hours, ok := periodPresets[period]
	if !ok {
		hours = periodPresets["24h"]
	}

	data := h.service.GetDashboardData(hours)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetPredictionStats 予測がどのモデル（個人/コミュニティ/ルールベース）で
// 処理されたかの内訳を返す
func (h *MonitoringHandler) GetPredictionStats(c *gin.Context) {
	counts := h.service.PredictionCounts()

	total := 0
	for _, n := range counts {
		total += n
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"prediction_counts": counts,
			"total_predictions": total,
			"model_types": []models.ModelType{
				models.ModelTypePersonal,
				models.ModelTypeCommunity,
				models.ModelTypeRuleBased,
			},
		},
	})
}
