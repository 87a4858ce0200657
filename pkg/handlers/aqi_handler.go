package handlers

import (
	"net/http"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// デフォルト座標（東京駅周辺）。座標未指定のリクエストで使用する。
const (
	defaultLatitude  = 35.6812
	defaultLongitude = 139.7671
)

// AQIHandler 大気質情報APIのハンドラ
type AQIHandler struct {
	aqiService *services.AQIService
}

// NewAQIHandler 新しいAQIHandlerを生成する
func NewAQIHandler(aqiService *services.AQIService) *AQIHandler {
	return &AQIHandler{aqiService: aqiService}
}

// GetCurrent 指定座標の現在AQIを返す。
// 外部API障害時はシミュレーション値にフォールバックする。
func (h *AQIHandler) GetCurrent(c *gin.Context) {
	lat := queryFloat(c, "lat", defaultLatitude)
	lng := queryFloat(c, "lng", defaultLongitude)

	reading := h.aqiService.GetCurrentAQI(lat, lng)
	level := models.GetAQILevel(reading.AQI)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"reading":      reading,
			"level":        level,
			"health_score": services.HealthScore(reading.AQI),
		},
	})
}

// GetLevels AQI区分の一覧を返す
func (h *AQIHandler) GetLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    models.AQILevels,
	})
}

// AdvisoryRequest 健康アドバイス取得リクエスト。AQI=0（清浄）も有効値。
type AdvisoryRequest struct {
	AQI               float64               `json:"aqi"`
	Conditions        models.UserConditions `json:"conditions"`
	IsOutdoorActivity bool                  `json:"is_outdoor_activity"`
}

// GetAdvisory AQIと疾患フラグに応じた健康アドバイスを返す
func (h *AQIHandler) GetAdvisory(c *gin.Context) {
	var req AdvisoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	if req.AQI < 0 || req.AQI > 500 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "AQIは0〜500の範囲で指定してください",
		})
		return
	}

	advisory := services.BuildAdvisory(req.AQI, req.Conditions, req.IsOutdoorActivity)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"advisory":     advisory,
			"should_alert": services.ShouldTriggerAlert(req.AQI, req.Conditions),
			"health_score": services.HealthScore(req.AQI),
			"level":        models.GetAQILevel(req.AQI),
		},
	})
}

// RouteAdviceRequest 外出ルート比較リクエスト
type RouteAdviceRequest struct {
	CurrentAQI     float64 `json:"current_aqi"`
	DestinationAQI float64 `json:"destination_aqi"`
}

// GetRouteAdvice 現在地と目的地のAQI差から外出可否の目安を返す
func (h *AQIHandler) GetRouteAdvice(c *gin.Context) {
	var req RouteAdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	advice := services.GetRouteAdvice(req.CurrentAQI, req.DestinationAQI)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    advice,
	})
}
