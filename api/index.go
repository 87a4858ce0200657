package handler

import (
	"log"
	"net/http"
	"sync"

	config "breathguard-api/configs"
	"breathguard-api/pkg/handlers"
	"breathguard-api/pkg/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
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

		var federatedStore services.FederatedDataStore
		if cfg.QdrantURL != "" {
			federatedService, err := services.NewFederatedLearningService(cfg.QdrantURL, cfg.QdrantAPIKey)
			if err != nil {
				log.Printf("⚠️ Failed to initialize federated learning store: %v", err)
			} else {
				federatedStore = federatedService
			}
		}

		modelStore := services.NewFileModelStore(cfg.ModelDir)
		predictor := services.NewSymptomPredictor(federatedStore, modelStore)
		predictor.LoadModel()

		// ハンドラーの初期化
		predictionHandler := handlers.NewPredictionHandler(predictor, monitoringService)
		aqiHandler := handlers.NewAQIHandler(aqiService)
		symptomHandler := handlers.NewSymptomHandler(aggregationService, catalogService, exportService, aqiService)
		federatedHandler := handlers.NewFederatedHandler(federatedStore, aggregationService)
		assistantHandler := handlers.NewAssistantHandler(assistantService)
		adminHandler := handlers.NewAdminHandler(cfg, predictor)
		monitoringHandler := handlers.NewMonitoringHandler(monitoringService)

		// ミドルウェアの登録
		r.Use(monitoringService.LoggingMiddleware())
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		r.Use(cors.New(corsConfig))

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

		// APIルートの定義
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

			// 連合学習API
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

		app = r
	})
	return app
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	// Ginアプリケーションをセットアップ（初回のみ実行される）
	app := setupApp()
	app.ServeHTTP(w, r)
}
