package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// テスト用の環境変数を設定
	testCases := map[string]string{
		"PORT":                   "9090",
		"ENVIRONMENT":            "test",
		"QDRANT_URL":             "test-cluster.qdrant.io:6334",
		"QDRANT_API_KEY":         "test-key",
		"OPENWEATHERMAP_API_KEY": "owm-key",
		"WAQI_API_TOKEN":         "waqi-token",
		"MODEL_DIR":              "/tmp/models",
	}

	// 環境変数を設定
	for key, value := range testCases {
		os.Setenv(key, value)
	}

	// テスト後にクリーンアップ
	defer func() {
		for key := range testCases {
			os.Unsetenv(key)
		}
	}()

	// 設定を読み込み
	cfg := LoadConfig()

	// 検証
	if cfg.Port != "9090" {
		t.Errorf("Expected Port to be '9090', got '%s'", cfg.Port)
	}

	if cfg.Environment != "test" {
		t.Errorf("Expected Environment to be 'test', got '%s'", cfg.Environment)
	}

	if cfg.QdrantURL != "test-cluster.qdrant.io:6334" {
		t.Errorf("Expected QdrantURL to be 'test-cluster.qdrant.io:6334', got '%s'", cfg.QdrantURL)
	}

	if cfg.QdrantAPIKey != "test-key" {
		t.Errorf("Expected QdrantAPIKey to be 'test-key', got '%s'", cfg.QdrantAPIKey)
	}

	if cfg.ModelDir != "/tmp/models" {
		t.Errorf("Expected ModelDir to be '/tmp/models', got '%s'", cfg.ModelDir)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	// 環境変数をクリア
	vars := []string{
		"PORT", "ENVIRONMENT", "QDRANT_URL", "QDRANT_API_KEY",
		"OPENWEATHERMAP_API_KEY", "WAQI_API_TOKEN", "MODEL_DIR",
	}

	for _, v := range vars {
		os.Unsetenv(v)
	}

	// 設定を読み込み
	cfg := LoadConfig()

	// デフォルト値の検証
	if cfg.Port != "8080" {
		t.Errorf("Expected default Port to be '8080', got '%s'", cfg.Port)
	}

	if cfg.Environment != "development" {
		t.Errorf("Expected default Environment to be 'development', got '%s'", cfg.Environment)
	}

	if cfg.ModelDir != "./data/models" {
		t.Errorf("Expected default ModelDir to be './data/models', got '%s'", cfg.ModelDir)
	}
}
