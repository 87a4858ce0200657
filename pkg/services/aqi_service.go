package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"breathguard-api/pkg/models"
)

// 座標キーごとのAQIキャッシュ（スレッドセーフ、5分で失効）
var (
	aqiCache      = make(map[string]cachedReading)
	aqiCacheMutex sync.RWMutex
)

const aqiCacheTTL = 5 * time.Minute

type cachedReading struct {
	reading   models.AQIReading
	fetchedAt time.Time
}

// AQIService 外部AQIソースから観測値を取得するサービス。
// OpenWeatherMap → WAQI の順に試し、すべて失敗した場合は
// 模擬データにフォールバックする（各ソース1回試行、リトライなし）。
type AQIService struct {
	client            *http.Client
	openWeatherAPIKey string
	waqiToken         string
}

// NewAQIService 新しいAQIサービスを作成
func NewAQIService(openWeatherAPIKey, waqiToken string) *AQIService {
	return &AQIService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		openWeatherAPIKey: openWeatherAPIKey,
		waqiToken:         waqiToken,
	}
}

// openWeatherAirPollution OpenWeatherMap大気汚染APIのレスポンス構造体
type openWeatherAirPollution struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components map[string]float64 `json:"components"`
	} `json:"list"`
}

// waqiFeed WAQI地理フィードのレスポンス構造体
type waqiFeed struct {
	Status string `json:"status"`
	Data   struct {
		AQI  float64 `json:"aqi"`
		City struct {
			Name string `json:"name"`
		} `json:"city"`
		IAQI map[string]struct {
			V float64 `json:"v"`
		} `json:"iaqi"`
		Time struct {
			ISO string `json:"iso"`
		} `json:"time"`
	} `json:"data"`
}

// GetCurrentAQI 指定座標の現在AQIを取得する。
// 外部ソースが全滅しても模擬データで必ず観測値を返す。
func (s *AQIService) GetCurrentAQI(lat, lng float64) models.AQIReading {
	cacheKey := fmt.Sprintf("%.1f,%.1f", lat, lng)

	aqiCacheMutex.RLock()
	cached, ok := aqiCache[cacheKey]
	aqiCacheMutex.RUnlock()
	if ok && time.Since(cached.fetchedAt) < aqiCacheTTL {
		return cached.reading
	}

	reading, err := s.fetchFromOpenWeather(lat, lng)
	if err != nil {
		log.Printf("⚠️ OpenWeatherMapからの取得に失敗: %v", err)
		reading, err = s.fetchFromWAQI(lat, lng)
	}
	if err != nil {
		log.Printf("⚠️ WAQIからの取得に失敗: %v", err)
		reading = s.simulatedReading(lat, lng)
	}

	aqiCacheMutex.Lock()
	aqiCache[cacheKey] = cachedReading{reading: reading, fetchedAt: time.Now()}
	aqiCacheMutex.Unlock()

	return reading
}

// fetchFromOpenWeather OpenWeatherMap大気汚染APIから取得する。
// 1〜5のスケールをEPA AQI代表値（50/100/150/200/300）に変換する。
func (s *AQIService) fetchFromOpenWeather(lat, lng float64) (models.AQIReading, error) {
	if s.openWeatherAPIKey == "" {
		return models.AQIReading{}, fmt.Errorf("OpenWeatherMap APIキーが設定されていません")
	}

	url := fmt.Sprintf("https://api.openweathermap.org/data/2.5/air_pollution?lat=%f&lon=%f&appid=%s", lat, lng, s.openWeatherAPIKey)
	resp, err := s.client.Get(url)
	if err != nil {
		return models.AQIReading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.AQIReading{}, fmt.Errorf("OpenWeatherMap APIエラー: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AQIReading{}, err
	}

	var data openWeatherAirPollution
	if err := json.Unmarshal(body, &data); err != nil {
		return models.AQIReading{}, err
	}
	if len(data.List) == 0 {
		return models.AQIReading{}, fmt.Errorf("大気汚染データが空です")
	}

	entry := data.List[0]
	scaleMap := map[int]float64{1: 50, 2: 100, 3: 150, 4: 200, 5: 300}
	aqi, ok := scaleMap[entry.Main.AQI]
	if !ok {
		aqi = 100
	}

	return models.AQIReading{
		AQI:        aqi,
		Components: entry.Components,
		Source:     "OpenWeatherMap",
		Timestamp:  time.Unix(entry.Dt, 0).UTC(),
	}, nil
}

// fetchFromWAQI WAQI（World Air Quality Index）地理フィードから取得する
func (s *AQIService) fetchFromWAQI(lat, lng float64) (models.AQIReading, error) {
	if s.waqiToken == "" {
		return models.AQIReading{}, fmt.Errorf("WAQIトークンが設定されていません")
	}

	url := fmt.Sprintf("https://api.waqi.info/feed/geo:%f;%f/?token=%s", lat, lng, s.waqiToken)
	resp, err := s.client.Get(url)
	if err != nil {
		return models.AQIReading{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.AQIReading{}, err
	}

	var feed waqiFeed
	if err := json.Unmarshal(body, &feed); err != nil {
		return models.AQIReading{}, err
	}
	if feed.Status != "ok" {
		return models.AQIReading{}, fmt.Errorf("WAQI APIエラー: status %s", feed.Status)
	}

	components := make(map[string]float64)
	for key, value := range feed.Data.IAQI {
		components[key] = value.V
	}

	timestamp := time.Now().UTC()
	if t, err := time.Parse(time.RFC3339, feed.Data.Time.ISO); err == nil {
		timestamp = t
	}

	return models.AQIReading{
		AQI:        feed.Data.AQI,
		Components: components,
		Location:   feed.Data.City.Name,
		Source:     "WAQI",
		Timestamp:  timestamp,
	}, nil
}

// simulatedReading 外部ソースが使えないときの模擬観測値を生成する。
// 開発環境やAPIキー未設定のデモ用途を想定している。
func (s *AQIService) simulatedReading(lat, lng float64) models.AQIReading {
	// 座標から安定した基準値を作り、日内変動を加える
	base := 60 + float64(int(lat*10+lng*10)%80)
	if base < 20 {
		base = 20
	}
	hour := time.Now().Hour()
	// 通勤時間帯は高め
	if (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19) {
		base += 30
	}
	jitter := rand.Float64()*20 - 10

	aqi := base + jitter
	if aqi < 0 {
		aqi = 0
	}
	if aqi > 500 {
		aqi = 500
	}

	log.Printf("📊 模擬AQIデータを生成しました (aqi=%.0f)", aqi)
	return models.AQIReading{
		AQI:       aqi,
		Source:    "simulated",
		Timestamp: time.Now().UTC(),
	}
}
