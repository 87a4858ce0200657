package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"breathguard-api/pkg/models"
)

// fakeFederatedStore テスト用のインメモリ連合ストア
type fakeFederatedStore struct {
	records  []models.FederatedRecord
	queryErr error
	delay    time.Duration
}

func (f *fakeFederatedStore) Publish(ctx context.Context, statistics models.AggregatedStatistics, conditions models.UserConditions, location models.Coordinates, dataPointCount int) error {
	f.records = append(f.records, models.FederatedRecord{
		ID:             "fake",
		Location:       location.Rounded(),
		Conditions:     conditions,
		Statistics:     statistics,
		DataPointCount: dataPointCount,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (f *fakeFederatedStore) Query(ctx context.Context, conditions models.UserConditions, location *models.Coordinates, radiusKm float64) ([]models.FederatedRecord, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.records, nil
}

func personalLogs(n int) []models.SymptomLogEntry {
	logs := make([]models.SymptomLogEntry, 0, n)
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		severity := models.SeverityMild
		aqi := 40.0
		if i%2 == 1 {
			severity = models.SeveritySevere
			aqi = 280.0
		}
		logs = append(logs, models.SymptomLogEntry{
			Symptom:      "cough",
			Severity:     severity,
			Timestamp:    base.AddDate(0, 0, i),
			AQIAtLogTime: aqi,
		})
	}
	return logs
}

// 未学習時はルールベースで必ず予測が返る
func TestPredictWithoutTrainingFallsBackToRules(t *testing.T) {
	predictor := NewSymptomPredictor(nil, nil)

	result := predictor.Predict(120, models.UserConditions{HasAsthma: true})

	if !result.IsRuleBased {
		t.Error("Expected rule-based prediction without a trained model")
	}
	if result.ModelType != models.ModelTypeRuleBased {
		t.Errorf("Expected model type rule_based, got %s", result.ModelType)
	}
	if result.Severity != models.SeveritySevere {
		t.Errorf("Expected severe for asthma at AQI 120, got %s", result.Severity)
	}
	if result.Confidence != 70 {
		t.Errorf("Expected confidence 70, got %.0f", result.Confidence)
	}
	if result.Probabilities != nil {
		t.Error("Rule-based prediction must not carry probabilities")
	}
	if len(result.Recommendations) == 0 {
		t.Error("Expected at least one recommendation")
	}
}

// ルール決定表の全分岐
func TestRuleBasedDecisionTable(t *testing.T) {
	predictor := NewSymptomPredictor(nil, nil)
	asthma := models.UserConditions{HasAsthma: true}
	allergiesOnly := models.UserConditions{HasAllergies: true}
	none := models.UserConditions{}

	cases := []struct {
		aqi        float64
		conditions models.UserConditions
		severity   models.Severity
		confidence float64
	}{
		{30, asthma, models.SeverityMild, 85},
		{30, none, models.SeverityMild, 85},
		{80, none, models.SeverityMild, 75},
		{80, asthma, models.SeverityModerate, 75},
		{80, allergiesOnly, models.SeverityMild, 75}, // アレルギーのみは昇格しない
		{130, none, models.SeverityModerate, 70},
		{130, asthma, models.SeveritySevere, 70},
		{200, none, models.SeveritySevere, 80},
		{200, asthma, models.SeverityCritical, 90},
		{450, asthma, models.SeverityCritical, 90},
	}

	for _, tc := range cases {
		result := predictor.Predict(tc.aqi, tc.conditions)
		if result.Severity != tc.severity {
			t.Errorf("AQI %.0f %+v: expected %s, got %s", tc.aqi, tc.conditions, tc.severity, result.Severity)
		}
		if result.Confidence != tc.confidence {
			t.Errorf("AQI %.0f %+v: expected confidence %.0f, got %.0f", tc.aqi, tc.conditions, tc.confidence, result.Confidence)
		}
	}
}

// ログ10件以上で個人モデルが学習され、予測に使われる
func TestTrainPersonalModel(t *testing.T) {
	predictor := NewSymptomPredictor(nil, nil)

	resp, err := predictor.Train(context.Background(), personalLogs(20), nil, models.UserConditions{HasAsthma: true}, nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if !resp.Trained {
		t.Fatalf("Expected training to succeed: %s", resp.Message)
	}
	if resp.ModelType != models.ModelTypePersonal {
		t.Errorf("Expected personal model, got %s", resp.ModelType)
	}
	if resp.Report == nil || resp.Report.Examples != 20 {
		t.Errorf("Expected report with 20 examples, got %+v", resp.Report)
	}

	result := predictor.Predict(100, models.UserConditions{HasAsthma: true})
	if result.IsRuleBased {
		t.Error("Expected classifier prediction after personal training")
	}
	if result.ModelType != models.ModelTypePersonal {
		t.Errorf("Expected model type personal, got %s", result.ModelType)
	}

	// 確率はパーセントで合計約100
	var sum float64
	for _, p := range result.Probabilities {
		if p < 0 {
			t.Errorf("Negative probability: %f", p)
		}
		sum += p
	}
	if math.Abs(sum-100) > 0.5 {
		t.Errorf("Probabilities should sum to ~100, got %.2f", sum)
	}
}

// ログ不足時は連合データでコミュニティモデルを学習する
func TestTrainCommunityModelFromFederatedData(t *testing.T) {
	store := &fakeFederatedStore{}
	conditions := models.UserConditions{HasAsthma: true}

	// 匿名統計を事前に公開しておく
	aggregator := NewAggregationService()
	stats := aggregator.Aggregate(personalLogs(20))
	if err := store.Publish(context.Background(), stats, conditions, models.Coordinates{Lat: 35.68, Lng: 139.76}, 20); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	predictor := NewSymptomPredictor(store, nil)

	resp, err := predictor.Train(context.Background(), personalLogs(3), nil, conditions, &models.Coordinates{Lat: 35.7, Lng: 139.8})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if !resp.Trained {
		t.Fatalf("Expected community training to succeed: %s", resp.Message)
	}
	if resp.ModelType != models.ModelTypeCommunity {
		t.Errorf("Expected community model, got %s", resp.ModelType)
	}

	result := predictor.Predict(150, conditions)
	if result.ModelType != models.ModelTypeCommunity {
		t.Errorf("Expected community prediction, got %s", result.ModelType)
	}
}

// 連合ストア障害は致命的でなくルールベースに劣化する
func TestTrainDegradesWhenCollaboratorUnavailable(t *testing.T) {
	store := &fakeFederatedStore{queryErr: models.ErrCollaboratorUnavailable}
	predictor := NewSymptomPredictor(store, nil)

	resp, err := predictor.Train(context.Background(), personalLogs(3), nil, models.UserConditions{}, nil)
	if err != nil {
		t.Fatalf("Train should not fail on collaborator errors, got %v", err)
	}
	if resp.Trained {
		t.Error("Expected training to be skipped")
	}
	if resp.ModelType != models.ModelTypeRuleBased {
		t.Errorf("Expected rule_based, got %s", resp.ModelType)
	}

	result := predictor.Predict(80, models.UserConditions{})
	if !result.IsRuleBased {
		t.Error("Expected rule-based prediction after degraded training")
	}
}

// 連合ストア未設定でも同様に劣化する
func TestTrainWithoutFederatedStore(t *testing.T) {
	predictor := NewSymptomPredictor(nil, nil)

	resp, err := predictor.Train(context.Background(), personalLogs(3), nil, models.UserConditions{}, nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if resp.Trained || resp.ModelType != models.ModelTypeRuleBased {
		t.Errorf("Expected rule_based degradation, got %+v", resp)
	}
}

// 学習中の後続リクエストはキューされず破棄される
func TestConcurrentTrainingIsDiscarded(t *testing.T) {
	store := &fakeFederatedStore{delay: 200 * time.Millisecond}
	predictor := NewSymptomPredictor(store, nil)

	var wg sync.WaitGroup
	busyCount := 0
	var mu sync.Mutex

	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := predictor.Train(context.Background(), personalLogs(3), nil, models.UserConditions{}, nil)
			if errors.Is(err, models.ErrTrainingBusy) {
				mu.Lock()
				busyCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if busyCount != 2 {
		t.Errorf("Expected 2 concurrent requests to be discarded, got %d", busyCount)
	}

	// 学習完了後は再び受け付ける
	if _, err := predictor.Train(context.Background(), personalLogs(3), nil, models.UserConditions{}, nil); err != nil {
		t.Errorf("Expected training to be accepted after completion, got %v", err)
	}
}

// 学習失敗後も以前のモデル状態が保たれる
func TestFailedTrainingPreservesPriorModel(t *testing.T) {
	predictor := NewSymptomPredictor(nil, nil)

	if resp, _ := predictor.Train(context.Background(), personalLogs(20), nil, models.UserConditions{}, nil); !resp.Trained {
		t.Fatal("Initial training should succeed")
	}

	// 連合ストアなしの少数ログ学習は失敗するが、個人モデルは残る
	resp, err := predictor.Train(context.Background(), personalLogs(2), nil, models.UserConditions{}, nil)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if resp.Trained {
		t.Error("Expected degraded response")
	}

	result := predictor.Predict(100, models.UserConditions{})
	if result.ModelType != models.ModelTypePersonal {
		t.Errorf("Prior personal model should survive failed retraining, got %s", result.ModelType)
	}
}

// モデルの保存と復元を往復で確認する
func TestModelPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileModelStore(dir)

	predictor := NewSymptomPredictor(nil, store)
	if resp, _ := predictor.Train(context.Background(), personalLogs(20), nil, models.UserConditions{HasAsthma: true}, nil); !resp.Trained {
		t.Fatal("Training should succeed")
	}

	before := predictor.Predict(100, models.UserConditions{HasAsthma: true})

	if err := predictor.SaveModel(); err != nil {
		t.Fatalf("SaveModel failed: %v", err)
	}

	restored := NewSymptomPredictor(nil, NewFileModelStore(dir))
	if !restored.LoadModel() {
		t.Fatal("Expected persisted model to load")
	}

	after := restored.Predict(100, models.UserConditions{HasAsthma: true})
	if before.Severity != after.Severity {
		t.Errorf("Restored model should predict the same severity: %s vs %s", before.Severity, after.Severity)
	}
	for severity, prob := range before.Probabilities {
		if math.Abs(after.Probabilities[severity]-prob) > 0.11 {
			t.Errorf("Probability for %s drifted after restore: %.2f vs %.2f", severity, prob, after.Probabilities[severity])
		}
	}
}

// 保存対象が無いときのSaveModel
func TestSaveModelWithoutTrainedModel(t *testing.T) {
	predictor := NewSymptomPredictor(nil, NewFileModelStore(t.TempDir()))
	if err := predictor.SaveModel(); !errors.Is(err, models.ErrModelNotFound) {
		t.Errorf("Expected ErrModelNotFound, got %v", err)
	}
}

// 保存済みモデルが無いときのLoadModel
func TestLoadModelMissing(t *testing.T) {
	predictor := NewSymptomPredictor(nil, NewFileModelStore(t.TempDir()))
	if predictor.LoadModel() {
		t.Error("Expected LoadModel to report false with no persisted model")
	}
}
