package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"breathguard-api/pkg/models"

	"github.com/gin-gonic/gin"
)

// statusForError ドメインエラーをHTTPステータスに対応付ける
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrTrainingBusy):
		return http.StatusConflict
	case errors.Is(err, models.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError エラーを統一フォーマットで返す
func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// queryFloat クエリパラメータをfloat64として取得する（未指定・不正はデフォルト値）
func queryFloat(c *gin.Context, key string, defaultValue float64) float64 {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// queryBool クエリパラメータをboolとして取得する
func queryBool(c *gin.Context, key string) bool {
	raw := c.Query(key)
	return raw == "true" || raw == "1"
}

// queryInt クエリパラメータをintとして取得する
func queryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return value
}
