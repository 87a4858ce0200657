package handlers

import (
	"log"
	"net/http"

	"breathguard-api/pkg/models"
	"breathguard-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// FederatedHandler 連合学習ストアAPIのハンドラ。
// ストア未設定（Qdrant無効）の場合は503を返す。
type FederatedHandler struct {
	store      services.FederatedDataStore
	aggregator *services.AggregationService
}

// NewFederatedHandler 新しいFederatedHandlerを生成する
func NewFederatedHandler(store services.FederatedDataStore, aggregator *services.AggregationService) *FederatedHandler {
	return &FederatedHandler{
		store:      store,
		aggregator: aggregator,
	}
}

// Publish 症状ログを匿名統計に集約して連合ストアへ公開する。
// 生ログは送信せず、区分別統計と丸めた座標のみを共有する。
func (h *FederatedHandler) Publish(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "連合学習ストアが設定されていません",
		})
		return
	}

	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	statistics := h.aggregator.Aggregate(req.Logs)
	if len(statistics) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   "公開できる統計がありません",
		})
		return
	}

	if err := h.store.Publish(c.Request.Context(), statistics, req.Conditions, req.Location, len(req.Logs)); err != nil {
		log.Printf("⚠️ Federated publish failed: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"published_buckets": len(statistics),
			"data_point_count":  len(req.Logs),
		},
	})
}

// Query 似た疾患プロファイルの匿名統計を連合ストアから検索する
func (h *FederatedHandler) Query(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "連合学習ストアが設定されていません",
		})
		return
	}

	var req models.FederatedQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "リクエストの形式が不正です: " + err.Error(),
		})
		return
	}

	records, err := h.store.Query(c.Request.Context(), req.Conditions, req.Location, req.RadiusKm)
	if err != nil {
		log.Printf("⚠️ Federated query failed: %v", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"records": records,
			"count":   len(records),
		},
	})
}
