package handlers

import (
	"log"
	"net/http"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// PredictionHandler 症状重症度予測APIのハンドラ
type PredictionHandler struct {
	predictor  *services.SymptomPredictor
	monitoring *services.MonitoringService
}

// NewPredictionHandler 新しいPredictionHandlerを生成する
func NewPredictionHandler(predictor *services.SymptomPredictor, monitoring *services.MonitoringService) *PredictionHandler {
	return &PredictionHandler{
		predictor:  predictor,
		monitoring: monitoring,
	}
}

// Predict 現在のAQIと疾患フラグから症状重症度を予測する。
// 学習済みモデルが無い場合もルールベースで必ず結果を返す。
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req models.PredictRequest
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

	result := h.predictor.Predict(req.AQI, req.Conditions)
	if h.monitoring != nil {
		h.monitoring.RecordPrediction(result.ModelType)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// Train 症状ログから個人モデルを学習する。ログ不足時は
// コミュニティモデルへフォールバックする。
func (h *PredictionHandler) Train(c *gin.Context) {
	var req models.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	resp, err := h.predictor.Train(c.Request.Context(), req.Logs, req.AQIHistory, req.Conditions, req.Location)
	if err != nil {
		log.Printf("⚠️ Training request rejected: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    resp,
	})
}

// LoadModel 永続化済みモデルを読み込む
func (h *PredictionHandler) LoadModel(c *gin.Context) {
	loaded := h.predictor.LoadModel()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"loaded":            loaded,
			"has_trained_model": h.predictor.HasTrainedModel(),
		},
	})
}

// SaveModel 現在の個人モデルを永続化する
func (h *PredictionHandler) SaveModel(c *gin.Context) {
	if err := h.predictor.SaveModel(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "モデルを保存しました",
	})
}
