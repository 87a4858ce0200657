package services

import (
	"sort"

	"breathguard-api/pkg/models"
)

// SymptomDefinition カタログ上の1症状
type SymptomDefinition struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Score    int    `json:"score,omitempty"` // 疾患パターンに基づく優先度スコア
}

// weightedSymptom 疾患パターン内の症状と優先度
type weightedSymptom struct {
	id       string
	name     string
	priority int
}

// conditionPattern 疾患ごとの主要・二次症状パターン
type conditionPattern struct {
	primary   []weightedSymptom
	secondary []weightedSymptom
}

// SymptomCatalogService 疾患フラグと環境条件に基づいて症状候補を
// 優先度付けするサービス
type SymptomCatalogService struct {
	patterns    map[string]conditionPattern
	allSymptoms []SymptomDefinition
}

// NewSymptomCatalogService 症状カタログを初期化する
func NewSymptomCatalogService() *SymptomCatalogService {
	return &SymptomCatalogService{
		patterns: map[string]conditionPattern{
			"asthma": {
				primary: []weightedSymptom{
					{"wheezing", "Wheezing", 10},
					{"shortness_breath", "Shortness of breath", 9},
					{"chest_tightness", "Chest tightness", 9},
					{"cough", "Cough (especially at night)", 8},
					{"difficulty_breathing", "Difficulty breathing during exercise", 8},
				},
				secondary: []weightedSymptom{
					{"rapid_breathing", "Rapid breathing", 6},
					{"fatigue", "Fatigue", 5},
					{"trouble_sleeping", "Trouble sleeping", 5},
					{"anxiety", "Anxiety or panic", 4},
				},
			},
			"copd": {
				primary: []weightedSymptom{
					{"shortness_breath", "Shortness of breath", 10},
					{"chronic_cough", "Chronic cough", 9},
					{"mucus_production", "Mucus production", 9},
					{"wheezing", "Wheezing", 8},
					{"chest_tightness", "Chest tightness", 8},
				},
				secondary: []weightedSymptom{
					{"fatigue", "Fatigue", 7},
					{"weight_loss", "Unintended weight loss", 6},
					{"frequent_infections", "Frequent respiratory infections", 6},
					{"swollen_ankles", "Swollen ankles/feet/legs", 5},
				},
			},
			"allergies": {
				primary: []weightedSymptom{
					{"sneezing", "Sneezing", 10},
					{"runny_nose", "Runny or stuffy nose", 10},
					{"itchy_eyes", "Itchy, watery eyes", 9},
					{"cough", "Cough", 7},
					{"wheezing", "Wheezing", 7},
				},
				secondary: []weightedSymptom{
					{"itchy_throat", "Itchy throat", 6},
					{"postnasal_drip", "Post-nasal drip", 6},
					{"sinus_pressure", "Sinus pressure", 5},
					{"headache", "Headache", 4},
				},
			},
			"none": {
				primary: []weightedSymptom{
					{"cough", "Cough", 7},
					{"shortness_breath", "Shortness of breath", 7},
					{"chest_pain", "Chest discomfort", 6},
					{"wheezing", "Wheezing", 6},
				},
				secondary: []weightedSymptom{
					{"runny_nose", "Runny nose", 5},
					{"sneezing", "Sneezing", 5},
					{"fatigue", "Fatigue", 4},
					{"headache", "Headache", 4},
				},
			},
		},
		allSymptoms: []SymptomDefinition{
			{ID: "wheezing", Name: "Wheezing"},
			{ID: "shortness_breath", Name: "Shortness of breath"},
			{ID: "chest_tightness", Name: "Chest tightness"},
			{ID: "cough", Name: "Cough"},
			{ID: "chronic_cough", Name: "Chronic cough"},
			{ID: "difficulty_breathing", Name: "Difficulty breathing"},
			{ID: "rapid_breathing", Name: "Rapid breathing"},
			{ID: "mucus_production", Name: "Mucus production"},
			{ID: "sneezing", Name: "Sneezing"},
			{ID: "runny_nose", Name: "Runny or stuffy nose"},
			{ID: "itchy_eyes", Name: "Itchy, watery eyes"},
			{ID: "itchy_throat", Name: "Itchy throat"},
			{ID: "postnasal_drip", Name: "Post-nasal drip"},
			{ID: "sinus_pressure", Name: "Sinus pressure"},
			{ID: "chest_pain", Name: "Chest pain/discomfort"},
			{ID: "fatigue", Name: "Fatigue"},
			{ID: "headache", Name: "Headache"},
			{ID: "trouble_sleeping", Name: "Trouble sleeping"},
			{ID: "anxiety", Name: "Anxiety or panic"},
			{ID: "weight_loss", Name: "Unintended weight loss"},
			{ID: "swollen_ankles", Name: "Swollen ankles/feet/legs"},
			{ID: "frequent_infections", Name: "Frequent respiratory infections"},
			{ID: "fever", Name: "Fever"},
			{ID: "body_aches", Name: "Body aches"},
			{ID: "dizziness", Name: "Dizziness"},
		},
	}
}

// AllSymptoms 全症状の一覧を返す
func (sc *SymptomCatalogService) AllSymptoms() []SymptomDefinition {
	return sc.allSymptoms
}

// Triggers 症状ログで選択できるトリガー一覧
func (sc *SymptomCatalogService) Triggers() []string {
	return []string{
		"Air pollution",
		"Pollen/allergies",
		"Exercise",
		"Cold air",
		"Smoke exposure",
		"Strong odors",
		"Stress",
		"Weather change",
		"Dust",
		"Pet dander",
		"Unknown",
		"Other",
	}
}

// PrioritizedSymptoms 疾患フラグに基づいて症状をスコア順に並べる。
// スコアが付かない症状は名前順で後ろに続く。
func (sc *SymptomCatalogService) PrioritizedSymptoms(conditions models.UserConditions) []SymptomDefinition {
	var activePatterns []string
	if conditions.HasAsthma {
		activePatterns = append(activePatterns, "asthma")
	}
	if conditions.HasCOPD {
		activePatterns = append(activePatterns, "copd")
	}
	if conditions.HasAllergies {
		activePatterns = append(activePatterns, "allergies")
	}
	if len(activePatterns) == 0 {
		activePatterns = append(activePatterns, "none")
	}

	scores := make(map[string]int)
	for _, patternKey := range activePatterns {
		pattern := sc.patterns[patternKey]
		for _, symptom := range pattern.primary {
			scores[symptom.id] += symptom.priority
		}
		for _, symptom := range pattern.secondary {
			scores[symptom.id] += symptom.priority
		}
	}

	var scored, remaining []SymptomDefinition
	for _, symptom := range sc.allSymptoms {
		if score, ok := scores[symptom.ID]; ok {
			scored = append(scored, SymptomDefinition{ID: symptom.ID, Name: symptom.Name, Score: score})
		} else {
			remaining = append(remaining, symptom)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].Name < remaining[j].Name
	})

	return append(scored, remaining...)
}

// SmartSuggestions 現在のAQIと時間帯から記録候補の症状を提案する。
// AQIが悪い日は呼吸器症状、夜間〜早朝は喘息関連症状を優先する。
func (sc *SymptomCatalogService) SmartSuggestions(conditions models.UserConditions, currentAQI float64, hourOfDay int) []SymptomDefinition {
	prioritized := sc.PrioritizedSymptoms(conditions)

	filterByIDs := func(ids []string, limit int) []SymptomDefinition {
		idSet := make(map[string]bool, len(ids))
		for _, id := range ids {
			idSet[id] = true
		}
		var out []SymptomDefinition
		for _, symptom := range prioritized {
			if idSet[symptom.ID] {
				out = append(out, symptom)
				if len(out) >= limit {
					break
				}
			}
		}
		return out
	}

	if currentAQI > 100 {
		return filterByIDs([]string{"wheezing", "shortness_breath", "cough", "chest_tightness", "difficulty_breathing"}, 5)
	}

	if hourOfDay >= 22 || hourOfDay < 6 {
		return filterByIDs([]string{"cough", "wheezing", "trouble_sleeping", "chest_tightness"}, 5)
	}

	if len(prioritized) > 8 {
		prioritized = prioritized[:8]
	}
	return prioritized
}
