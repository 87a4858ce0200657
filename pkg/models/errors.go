package models

import "errors"

// Prediction pipeline errors.
// これらはすべて回復可能であり、UI層へ致命的エラーとして伝播させてはならない。
var (
	// ErrInsufficientData 学習に必要なログ/サンプル数が不足している
	ErrInsufficientData = errors.New("insufficient data to train model")

	// ErrCollaboratorUnavailable 連合ストアまたはモデルストアへのアクセス失敗
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrInference 未学習モデルまたは不正な入力での推論失敗
	ErrInference = errors.New("inference failed")

	// ErrModelNotFound 保存済みモデルが存在しない（初回起動時は正常系）
	ErrModelNotFound = errors.New("saved model not found")

	// ErrTrainingBusy 同一モデルスロットで学習が進行中
	ErrTrainingBusy = errors.New("training already in progress")
)
