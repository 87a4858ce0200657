package services

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"breathguard-api/pkg/models"
)

// personalModelID 永続化する個人モデルの識別子
const personalModelID = "symptom-predictor-personal"

// minPersonalLogs 個人モデルの学習に必要な最小ログ数
const minPersonalLogs = 10

// SymptomPredictor 重症度予測のファサード。
// 個人モデル・コミュニティモデルを最大1つずつ所有し、どちらも使えない
// 場合はルールベース予測に退避する。呼び出し側が生成と破棄を管理する
// （パッケージレベルのシングルトンは持たない）。
type SymptomPredictor struct {
	mu       sync.Mutex // 学習の直列化。進行中の学習があれば後続は破棄される
	training bool

	personal       *SeverityClassifier
	community      *SeverityClassifier
	usingCommunity bool

	aggregator *AggregationService
	federated  FederatedDataStore // nilの場合はコミュニティ学習不可
	modelStore ModelStore         // nilの場合は永続化なし
	rng        *rand.Rand
}

// NewSymptomPredictor 予測ファサードを作成する。
// federated / modelStore はnilでもよく、その経路だけが無効になる。
func NewSymptomPredictor(federated FederatedDataStore, modelStore ModelStore) *SymptomPredictor {
	return &SymptomPredictor{
		aggregator: NewAggregationService(),
		federated:  federated,
		modelStore: modelStore,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// LoadModel 保存済みの個人モデルを読み込む。
// 見つからない・壊れている場合は「まだ何も無い」だけであり、エラーではない。
func (p *SymptomPredictor) LoadModel() bool {
	if p.modelStore == nil {
		return false
	}
	classifier, err := p.modelStore.Load(personalModelID)
	if err != nil {
		if errors.Is(err, models.ErrModelNotFound) {
			log.Println("保存済みモデルはありません。学習後に新規作成されます。")
		} else {
			log.Printf("⚠️ モデルの読み込みに失敗しました: %v", err)
		}
		return false
	}

	p.mu.Lock()
	p.personal = classifier
	p.usingCommunity = false
	p.mu.Unlock()

	log.Println("✅ 保存済みの個人モデルを読み込みました。")
	return true
}

// SaveModel 学習済みの個人モデルを永続化する
func (p *SymptomPredictor) SaveModel() error {
	p.mu.Lock()
	classifier := p.personal
	p.mu.Unlock()

	if p.modelStore == nil || classifier == nil || !classifier.IsTrained() {
		return models.ErrModelNotFound
	}
	return p.modelStore.Save(personalModelID, classifier)
}

// HasTrainedModel 学習済みモデルを保持しているかどうか
func (p *SymptomPredictor) HasTrainedModel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	classifier, _ := p.activeModelLocked()
	return classifier != nil
}

// activeModelLocked 現在有効な分類器とその種別を返す（mu保持前提）
func (p *SymptomPredictor) activeModelLocked() (*SeverityClassifier, models.ModelType) {
	if p.usingCommunity {
		if p.community != nil && p.community.IsTrained() {
			return p.community, models.ModelTypeCommunity
		}
		return nil, models.ModelTypeRuleBased
	}
	if p.personal != nil && p.personal.IsTrained() {
		return p.personal, models.ModelTypePersonal
	}
	if p.community != nil && p.community.IsTrained() {
		return p.community, models.ModelTypeCommunity
	}
	return nil, models.ModelTypeRuleBased
}

// Predict 現在のAQIと疾患フラグから重症度を予測する。
// どんな入力でも必ず結果を返し、エラーは返さない。分類器が使えない・
// 推論が失敗した場合はルールベース予測に劣化する。
func (p *SymptomPredictor) Predict(aqi float64, conditions models.UserConditions) models.PredictionResult {
	p.mu.Lock()
	classifier, modelType := p.activeModelLocked()
	p.mu.Unlock()

	if classifier == nil {
		return p.ruleBasedPrediction(aqi, conditions)
	}

	hour := float64(time.Now().Hour())
	probs, err := classifier.Predict(BuildFeatureVector(aqi, conditions, hour))
	if err != nil {
		log.Printf("⚠️ 推論に失敗したためルールベース予測に切り替えます: %v", err)
		return p.ruleBasedPrediction(aqi, conditions)
	}

	bestIdx := 0
	for i, prob := range probs {
		if prob > probs[bestIdx] {
			bestIdx = i
		}
	}
	severity := models.SeverityFromIndex(bestIdx)

	probabilities := make(map[models.Severity]float64, len(probs))
	for i, prob := range probs {
		probabilities[models.SeverityFromIndex(i)] = round1(prob * 100)
	}

	return models.PredictionResult{
		Severity:        severity,
		Confidence:      round1(probs[bestIdx] * 100),
		Probabilities:   probabilities,
		Recommendations: p.getRecommendations(aqi, severity, conditions),
		ModelType:       modelType,
		IsRuleBased:     false,
	}
}

// Train 症状ログからモデルを学習する。
// ログが10件以上あれば個人モデル、足りなければ連合データでコミュニティ
// モデルを学習し、どちらも無理ならルールベースのまま残る。
// 学習が進行中の場合、後続リクエストはキューせずに破棄する。
func (p *SymptomPredictor) Train(ctx context.Context, logs []models.SymptomLogEntry, aqiHistory []float64, conditions models.UserConditions, location *models.Coordinates) (*models.TrainResponse, error) {
	p.mu.Lock()
	if p.training {
		p.mu.Unlock()
		return nil, models.ErrTrainingBusy
	}
	p.training = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.training = false
		p.mu.Unlock()
	}()

	if len(logs) >= minPersonalLogs {
		return p.trainPersonal(logs, aqiHistory, conditions), nil
	}

	log.Printf("個人データが不足しています（%d件、最低%d件必要）。コミュニティモデルの学習を試みます...", len(logs), minPersonalLogs)
	return p.trainCommunity(ctx, conditions, location), nil
}

// trainPersonal 個人ログで新しい分類器を学習する。
// 失敗時は既存のモデル状態を変更しない。
func (p *SymptomPredictor) trainPersonal(logs []models.SymptomLogEntry, aqiHistory []float64, conditions models.UserConditions) *models.TrainResponse {
	examples := BuildPersonalTrainingData(logs, aqiHistory, conditions)

	classifier := NewSeverityClassifier()
	report, err := classifier.Train(examples, PersonalTrainingConfig())
	if err != nil {
		log.Printf("⚠️ 個人モデルの学習に失敗しました: %v", err)
		return &models.TrainResponse{
			Trained:   false,
			ModelType: models.ModelTypeRuleBased,
			Message:   "personal model training failed, prediction stays rule-based",
		}
	}
	report.ModelType = models.ModelTypePersonal

	p.mu.Lock()
	p.personal = classifier
	p.usingCommunity = false
	p.mu.Unlock()

	return &models.TrainResponse{
		Trained:   true,
		ModelType: models.ModelTypePersonal,
		Report:    report,
	}
}

// trainCommunity 連合データから合成サンプルを作ってコミュニティモデルを学習する
func (p *SymptomPredictor) trainCommunity(ctx context.Context, conditions models.UserConditions, location *models.Coordinates) *models.TrainResponse {
	if p.federated == nil {
		return &models.TrainResponse{
			Trained:   false,
			ModelType: models.ModelTypeRuleBased,
			Message:   "no federated store configured, prediction stays rule-based",
		}
	}

	records, err := p.federated.Query(ctx, conditions, location, defaultQueryRadiusKm)
	if err != nil {
		// コラボレータの失敗は「データなし」と同義で、致命的ではない
		log.Printf("⚠️ 連合データの取得に失敗しました: %v", err)
		records = nil
	}
	if len(records) == 0 {
		log.Println("利用可能な連合データがありません。ルールベース予測を継続します。")
		return &models.TrainResponse{
			Trained:   false,
			ModelType: models.ModelTypeRuleBased,
			Message:   "no federated data available, prediction stays rule-based",
		}
	}

	log.Printf("🔍 %d 件の匿名コミュニティレコードから学習データを構成します。", len(records))
	examples := BuildFederatedTrainingData(records, p.rng)

	classifier := NewSeverityClassifier()
	report, err := classifier.Train(examples, CommunityTrainingConfig())
	if err != nil {
		log.Printf("⚠️ コミュニティモデルの学習に失敗しました: %v", err)
		return &models.TrainResponse{
			Trained:   false,
			ModelType: models.ModelTypeRuleBased,
			Message:   "insufficient federated data, prediction stays rule-based",
		}
	}
	report.ModelType = models.ModelTypeCommunity

	p.mu.Lock()
	p.community = classifier
	p.usingCommunity = true
	p.mu.Unlock()

	return &models.TrainResponse{
		Trained:   true,
		ModelType: models.ModelTypeCommunity,
		Report:    report,
	}
}

// ruleBasedPrediction 決定表によるフォールバック予測。
// 同じ入力には常に同じ結果を返し、確率内訳は持たない。
func (p *SymptomPredictor) ruleBasedPrediction(aqi float64, conditions models.UserConditions) models.PredictionResult {
	var severity models.Severity
	var confidence float64

	switch {
	case aqi <= 50:
		severity = models.SeverityMild
		confidence = 85
	case aqi <= 100:
		severity = models.SeverityMild
		confidence = 75
		if conditions.HasRespiratoryCondition() {
			severity = models.SeverityModerate
		}
	case aqi <= 150:
		severity = models.SeverityModerate
		confidence = 70
		if conditions.HasRespiratoryCondition() {
			severity = models.SeveritySevere
		}
	default:
		severity = models.SeveritySevere
		confidence = 80
		if conditions.HasRespiratoryCondition() {
			severity = models.SeverityCritical
			confidence = 90
		}
	}

	return models.PredictionResult{
		Severity:        severity,
		Confidence:      confidence,
		Probabilities:   nil,
		Recommendations: p.getRecommendations(aqi, severity, conditions),
		ModelType:       models.ModelTypeRuleBased,
		IsRuleBased:     true,
	}
}

// getRecommendations 予測経路に共通の推奨文を生成する
func (p *SymptomPredictor) getRecommendations(aqi float64, severity models.Severity, conditions models.UserConditions) []string {
	var recommendations []string

	if aqi > 100 {
		recommendations = append(recommendations,
			"Stay indoors with windows closed",
			"Use air purifier if available",
		)
	}

	if severity == models.SeveritySevere || severity == models.SeverityCritical {
		if conditions.HasAsthma {
			recommendations = append(recommendations, "Have rescue inhaler readily available")
		}
		recommendations = append(recommendations,
			"Avoid all outdoor physical activities",
			"Consider contacting your healthcare provider",
		)
	}

	if severity == models.SeverityModerate {
		recommendations = append(recommendations, "Limit outdoor activities")
		if conditions.HasRespiratoryCondition() {
			recommendations = append(recommendations, "Take prescribed medications as directed")
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations,
			"Monitor symptoms and air quality",
			"Maintain normal activities with caution",
		)
	}

	return recommendations
}

// Aggregator 共有の集計サービスを返す（公開・エクスポートで再利用）
func (p *SymptomPredictor) Aggregator() *AggregationService {
	return p.aggregator
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
