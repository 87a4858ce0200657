package main

import (
	"log"
	"net/http"

	config "breathguard-api/configs"
	"breathguard-api/pkg/handlers"
	"breathguard-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// Ginルーターの初期化
	r := gin.Default()

	// サービスの初期化
	monitoringService := services.NewMonitoringService()
	aggregationService := services.NewAggregationService()
	catalogService := services.NewSymptomCatalogService()
	exportService := services.NewExportService(aggregationService)
	aqiService := services.NewAQIService(cfg.OpenWeatherMapAPIKey, cfg.WAQIAPIToken)
	assistantService := services.NewAssistantService()

	// Qdrant未設定でも起動する（連合学習なしで予測は動く）
	var federatedStore services.FederatedDataStore
	if cfg.QdrantURL != "" {
		federatedService, err := services.NewFederatedLearningService(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			log.Printf("⚠️ Failed to initialize federated learning store: %v", err)
		} else {
			federatedStore = federatedService
		}
	} else {
		log.Println("⚠️ QDRANT_URL not set, federated learning disabled")
	}

	modelStore := services.NewFileModelStore(cfg.ModelDir)
	predictor := services.NewSymptomPredictor(federatedStore, modelStore)
	if predictor.LoadModel() {
		log.Println("✅ Persisted prediction model restored")
	}

	// ハンドラーの初期化
	predictionHandler := handlers.NewPredictionHandler(predictor, monitoringService)
	aqiHandler := handlers.NewAQIHandler(aqiService)
	symptomHandler := handlers.NewSymptomHandler(aggregationService, catalogService, exportService, aqiService)
	federatedHandler := handlers.NewFederatedHandler(federatedStore, aggregationService)
	assistantHandler := handlers.NewAssistantHandler(assistantService)
	adminHandler := handlers.NewAdminHandler(cfg, predictor)
	monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

	// ミドルウェアの登録
	r.Use(monitoringService.LoggingMiddleware()) // ロギングミドルウェアをグローバルに適用
	r.Use(cors.Default())

	// 認証ミドルウェア
	authMiddleware := func(apiKey string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if apiKey == "" || apiKey == "default_secret_key" {
				c.Next()
				return
			}
			providedKey := c.GetHeader("X-API-KEY")
			if providedKey != apiKey {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
				return
			}
			c.Next()
		}
	}

	// ヘルスチェックエンドポイント
	r.GET("/health", handlers.HealthCheck)

	// APIバージョン1のルートグループ
	v1 := r.Group("/api/v1")
	v1.Use(authMiddleware(cfg.APIKey))
	{
		// 管理者向けAPI
		admin := v1.Group("/admin")
		{
			admin.GET("/health-status", adminHandler.GetHealthStatus)
			admin.POST("/maintenance/start", adminHandler.StartMaintenance)
			admin.POST("/maintenance/stop", adminHandler.StopMaintenance)
		}

		// モニタリングAPI
		monitoring := v1.Group("/monitoring")
		{
			monitoring.GET("/logs", monitoringHandler.GetLogs)
			monitoring.GET("/predictions", monitoringHandler.GetPredictionStats)
		}

		// 症状重症度予測API
		prediction := v1.Group("/prediction")
		{
			prediction.POST("/predict", predictionHandler.Predict)
			prediction.POST("/train", predictionHandler.Train)
			prediction.POST("/model/load", predictionHandler.LoadModel)
			prediction.POST("/model/save", predictionHandler.SaveModel)
		}

		// 大気質API
		aqi := v1.Group("/aqi")
		{
			aqi.GET("/current", aqiHandler.GetCurrent)
			aqi.GET("/levels", aqiHandler.GetLevels)
			aqi.POST("/advisory", aqiHandler.GetAdvisory)
			aqi.POST("/route-advice", aqiHandler.GetRouteAdvice)
		}

		// 症状ログAPI
		symptoms := v1.Group("/symptoms")
		{
			symptoms.POST("/aggregate", symptomHandler.Aggregate)
			symptoms.GET("/catalog", symptomHandler.GetCatalog)
			symptoms.GET("/suggestions", symptomHandler.GetSuggestions)
			symptoms.POST("/export", symptomHandler.Export)
		}

		// 連合学習API（匿名統計のみ共有）
		federated := v1.Group("/federated")
		{
			federated.POST("/publish", federatedHandler.Publish)
			federated.POST("/query", federatedHandler.Query)
		}

		// 健康アシスタントAPI
		assistant := v1.Group("/assistant")
		{
			assistant.POST("/chat", assistantHandler.Chat)
		}
	}

	log.Printf("Starting BreathGuard API server on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
