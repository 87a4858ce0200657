package services

import (
	"math/rand"
	"testing"
	"time"

	"breathguard-api/pkg/models"
)

func makeFederatedRecord(bucket string, count int, avgSeverity float64) models.FederatedRecord {
	return models.FederatedRecord{
		ID:       "rec-1",
		Location: models.Coordinates{Lat: 35.7, Lng: 139.8},
		Conditions: models.UserConditions{
			HasAsthma: true,
		},
		Statistics: models.AggregatedStatistics{
			bucket: {Count: count, AvgSeverity: avgSeverity, MinSeverity: 0, MaxSeverity: 3},
		},
		DataPointCount: count,
		CreatedAt:      time.Now(),
	}
}

func TestBuildFederatedTrainingDataCapsExamplesPerBucket(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	// count=25 でも1バケットからは最大10件
	records := []models.FederatedRecord{
		makeFederatedRecord(models.BucketUnhealthy, 25, 2.0),
	}
	examples := BuildFederatedTrainingData(records, rng)
	if len(examples) != 10 {
		t.Errorf("Expected 10 examples (capped), got %d", len(examples))
	}

	// count=3 ならそのまま3件
	records = []models.FederatedRecord{
		makeFederatedRecord(models.BucketGood, 3, 0.4),
	}
	examples = BuildFederatedTrainingData(records, rng)
	if len(examples) != 3 {
		t.Errorf("Expected 3 examples, got %d", len(examples))
	}

	// count=0 のバケットはスキップ
	records = []models.FederatedRecord{
		makeFederatedRecord(models.BucketGood, 0, 0),
	}
	examples = BuildFederatedTrainingData(records, rng)
	if len(examples) != 0 {
		t.Errorf("Expected no examples for empty bucket, got %d", len(examples))
	}
}

func TestBuildFederatedTrainingDataFeatureRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	records := []models.FederatedRecord{
		makeFederatedRecord(models.BucketVeryUnhealthy, 10, 2.4),
	}
	examples := BuildFederatedTrainingData(records, rng)

	midpoint := models.BucketMidpoint(models.BucketVeryUnhealthy) // 250
	for i, ex := range examples {
		if len(ex.Features) != 5 {
			t.Fatalf("Example %d: expected 5 features, got %d", i, len(ex.Features))
		}

		// AQI特徴は (midpoint±10)/500 の範囲
		aqi := ex.Features[0] * 500
		if aqi < midpoint-10.001 || aqi > midpoint+10.001 {
			t.Errorf("Example %d: AQI %.2f outside midpoint±10 of %.0f", i, aqi, midpoint)
		}

		// 時刻特徴は[0,1)
		if ex.Features[4] < 0 || ex.Features[4] >= 1 {
			t.Errorf("Example %d: hour feature %.3f outside [0,1)", i, ex.Features[4])
		}

		// ラベルは round(2.4)=2 → severe のone-hot
		if ex.Label[models.SeveritySevere.Index()] != 1 {
			t.Errorf("Example %d: expected severe label, got %v", i, ex.Label)
		}
	}
}

func TestBuildFederatedTrainingDataClampsLabel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	// avgSeverityが範囲外でもラベルはクランプされる
	records := []models.FederatedRecord{
		makeFederatedRecord(models.BucketHazardous, 2, 5.7),
	}
	examples := BuildFederatedTrainingData(records, rng)
	for _, ex := range examples {
		if ex.Label[models.SeverityCritical.Index()] != 1 {
			t.Errorf("Expected out-of-range avg severity to clamp to critical, got %v", ex.Label)
		}
	}
}

func TestBuildPersonalTrainingData(t *testing.T) {
	conditions := models.UserConditions{HasCOPD: true}
	logs := []models.SymptomLogEntry{
		{
			Severity:     models.SeverityModerate,
			Timestamp:    time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
			AQIAtLogTime: 120,
		},
		{
			Severity:  models.SeveritySevere,
			Timestamp: time.Date(2026, 3, 11, 22, 30, 0, 0, time.UTC),
			// AQI未記録
		},
	}

	// 履歴の1件目はログ記録値を上書き、2件目は欠損（0）
	examples := BuildPersonalTrainingData(logs, []float64{200, 0}, conditions)
	if len(examples) != 2 {
		t.Fatalf("Expected 2 examples, got %d", len(examples))
	}

	if examples[0].Features[0] != 200.0/500 {
		t.Errorf("Expected history AQI 200 to override log AQI, got %.3f", examples[0].Features[0]*500)
	}
	if examples[0].Features[4] != 14.0/24 {
		t.Errorf("Expected hour feature 14/24, got %.3f", examples[0].Features[4])
	}
	if examples[0].Label[models.SeverityModerate.Index()] != 1 {
		t.Errorf("Expected moderate label, got %v", examples[0].Label)
	}

	// AQIが履歴にもログにも無いときは既定値100
	if examples[1].Features[0] != 100.0/500 {
		t.Errorf("Expected default AQI 100, got %.3f", examples[1].Features[0]*500)
	}
	if examples[1].Label[models.SeveritySevere.Index()] != 1 {
		t.Errorf("Expected severe label, got %v", examples[1].Label)
	}
}
