package services

import (
	"strings"
	"testing"
)

func TestAssistantKeywordResponses(t *testing.T) {
	assistant := NewAssistantService()

	cases := []struct {
		message  string
		expected string // 応答に含まれるべき語句
	}{
		{"I have a bad cough today", "track your symptoms"},
		{"What is the AQI right now?", "air quality"},
		{"Should I use my inhaler?", "medication as prescribed"},
		{"Is it safe to exercise outside?", "Exercise is great"},
	}

	for _, tc := range cases {
		reply := assistant.Reply(tc.message)
		if !strings.Contains(reply.Response, tc.expected) {
			t.Errorf("Reply(%q) = %q, expected to contain %q", tc.message, reply.Response, tc.expected)
		}
		if reply.Timestamp == "" {
			t.Error("Expected reply to carry a timestamp")
		}
	}
}

func TestAssistantCaseInsensitiveMatching(t *testing.T) {
	assistant := NewAssistantService()

	lower := assistant.Reply("my breathing is difficult")
	upper := assistant.Reply("MY BREATHING IS DIFFICULT")
	if lower.Response != upper.Response {
		t.Error("Expected case-insensitive keyword matching")
	}
}

func TestAssistantDefaultResponse(t *testing.T) {
	assistant := NewAssistantService()

	reply := assistant.Reply("hello there")
	if !strings.Contains(reply.Response, "respiratory health assistant") {
		t.Errorf("Expected default response for unmatched input, got %q", reply.Response)
	}
}
