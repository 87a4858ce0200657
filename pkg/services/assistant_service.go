package services

import (
	"strings"
	"time"

	"breathguard-api/pkg/models"
)

// AssistantService 「Dr. Breathe」呼吸器ヘルスアシスタント。
// キーワードマッチによる決定的な応答を返す（外部AIサービスは使わない）。
type AssistantService struct{}

// NewAssistantService 新しいアシスタントサービスを作成
func NewAssistantService() *AssistantService {
	return &AssistantService{}
}

// assistantRule キーワード群と応答文の組
type assistantRule struct {
	keywords []string
	response string
}

var assistantRules = []assistantRule{
	{
		keywords: []string{"symptom", "breathing", "cough"},
		response: "I can help you track your symptoms. Have you noticed any patterns related to air quality or specific times of day? It's important to log your symptoms regularly.",
	},
	{
		keywords: []string{"air quality", "aqi"},
		response: "Based on your location, I can monitor the air quality for you. Poor air quality days can trigger respiratory symptoms. Would you like me to enable notifications for unhealthy air days?",
	},
	{
		keywords: []string{"medication", "inhaler"},
		response: "Remember to take your medication as prescribed. If you're experiencing increased symptoms, please consult with your healthcare provider. I can help you track when you use your inhaler.",
	},
	{
		keywords: []string{"exercise", "activity"},
		response: "Exercise is great for respiratory health! I recommend checking the air quality before outdoor activities. Would you like tips for exercising safely with respiratory conditions?",
	},
}

const assistantDefaultResponse = "I understand. As your respiratory health assistant, I can help you monitor air quality, track symptoms, and provide guidance. What specific concerns do you have today?"

// Reply ユーザー入力に対する応答を生成する
func (as *AssistantService) Reply(message string) models.ChatResponse {
	input := strings.ToLower(message)

	response := assistantDefaultResponse
	for _, rule := range assistantRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(input, keyword) {
				response = rule.response
				break
			}
		}
		if response != assistantDefaultResponse {
			break
		}
	}

	return models.ChatResponse{
		Response:  response,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
