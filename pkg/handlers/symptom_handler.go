package handlers

import (
	"fmt"
	"net/http"
	"time"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// SymptomHandler 症状ログ関連APIのハンドラ
type SymptomHandler struct {
	aggregator *services.AggregationService
	catalog    *services.SymptomCatalogService
	export     *services.ExportService
	aqiService *services.AQIService
}

// NewSymptomHandler 新しいSymptomHandlerを生成する
func NewSymptomHandler(
	aggregator *services.AggregationService,
	catalog *services.SymptomCatalogService,
	export *services.ExportService,
	aqiService *services.AQIService,
) *SymptomHandler {
	return &SymptomHandler{
		aggregator: aggregator,
		catalog:    catalog,
		export:     export,
		aqiService: aqiService,
	}
}

// AggregateRequest 症状ログ集計リクエスト
type AggregateRequest struct {
	Logs []models.SymptomLogEntry `json:"logs" binding:"required"`
}

// Aggregate 症状ログをAQI区分別に集計して返す
func (h *SymptomHandler) Aggregate(c *gin.Context) {
	var req AggregateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	stats := h.aggregator.Aggregate(req.Logs)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"statistics":  stats,
			"total_logs":  len(req.Logs),
			"bucket_keys": bucketKeysWithData(stats),
		},
	})
}

// bucketKeysWithData データのあるバケットをAQI昇順で返す
func bucketKeysWithData(stats models.AggregatedStatistics) []string {
	keys := make([]string, 0, len(stats))
	for _, level := range models.AQILevels {
		if _, ok := stats[level.Key]; ok {
			keys = append(keys, level.Key)
		}
	}
	return keys
}

// GetCatalog 症状とトリガーのカタログを返す
func (h *SymptomHandler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"symptoms": h.catalog.AllSymptoms(),
			"triggers": h.catalog.Triggers(),
		},
	})
}

// GetSuggestions 疾患フラグと現在の環境に基づく症状候補を返す。
// aqiクエリ未指定かつ座標指定時は現在AQIを取得して使う。
func (h *SymptomHandler) GetSuggestions(c *gin.Context) {
	conditions := models.UserConditions{
		HasAsthma:    queryBool(c, "has_asthma"),
		HasCOPD:      queryBool(c, "has_copd"),
		HasAllergies: queryBool(c, "has_allergies"),
	}

	aqi := queryFloat(c, "aqi", 0)
	if aqi == 0 && c.Query("lat") != "" && c.Query("lng") != "" {
		reading := h.aqiService.GetCurrentAQI(queryFloat(c, "lat", defaultLatitude), queryFloat(c, "lng", defaultLongitude))
		aqi = reading.AQI
	}

	hour := queryInt(c, "hour", time.Now().Hour())

	suggestions := h.catalog.SmartSuggestions(conditions, aqi, hour)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"suggestions": suggestions,
			"aqi_used":    aqi,
		},
	})
}

// ExportRequest ケアチーム共有用エクスポートのリクエスト
type ExportRequest struct {
	Logs       []models.SymptomLogEntry `json:"logs" binding:"required"`
	Conditions models.UserConditions    `json:"conditions"`
}

// Export 症状ログと統計をExcelワークブックとして返す
func (h *SymptomHandler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	workbook, err := h.export.BuildWorkbook(req.Logs, req.Conditions)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := h.export.ExportFilename()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
