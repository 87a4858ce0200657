package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"breathguard-api/pkg/models"
)

// ClassifierSnapshot 学習済み分類器の永続化形式
type ClassifierSnapshot struct {
	W1      [][]float64 `json:"w1"`
	B1      []float64   `json:"b1"`
	W2      [][]float64 `json:"w2"`
	B2      []float64   `json:"b2"`
	W3      [][]float64 `json:"w3"`
	B3      []float64   `json:"b3"`
	SavedAt time.Time   `json:"saved_at"`
}

// Snapshot 現在の重みをコピーして永続化形式を返す。
// 未学習の分類器はErrInferenceを返す。
func (c *SeverityClassifier) Snapshot() (*ClassifierSnapshot, error) {
	if !c.trained {
		return nil, fmt.Errorf("%w: cannot snapshot an untrained classifier", models.ErrInference)
	}
	return &ClassifierSnapshot{
		W1:      copy2D(c.w1),
		B1:      copy1D(c.b1),
		W2:      copy2D(c.w2),
		B2:      copy1D(c.b2),
		W3:      copy2D(c.w3),
		B3:      copy1D(c.b3),
		SavedAt: time.Now(),
	}, nil
}

// Restore スナップショットから重みを復元し、学習済み状態にする
func (c *SeverityClassifier) Restore(snap *ClassifierSnapshot) error {
	if err := validateShape(snap.W1, snap.B1, inputSize, hidden1Size); err != nil {
		return err
	}
	if err := validateShape(snap.W2, snap.B2, hidden1Size, hidden2Size); err != nil {
		return err
	}
	if err := validateShape(snap.W3, snap.B3, hidden2Size, outputSize); err != nil {
		return err
	}
	c.w1, c.b1 = copy2D(snap.W1), copy1D(snap.B1)
	c.w2, c.b2 = copy2D(snap.W2), copy1D(snap.B2)
	c.w3, c.b3 = copy2D(snap.W3), copy1D(snap.B3)
	c.trained = true
	return nil
}

func validateShape(w [][]float64, b []float64, in, out int) error {
	if len(w) != in || len(b) != out {
		return fmt.Errorf("%w: snapshot has unexpected layer shape %dx%d", models.ErrInference, len(w), len(b))
	}
	for _, row := range w {
		if len(row) != out {
			return fmt.Errorf("%w: snapshot has ragged weight matrix", models.ErrInference)
		}
	}
	return nil
}

func copy1D(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func copy2D(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = copy1D(m[i])
	}
	return out
}

// ModelStore 学習済みモデルの保存・読み込みインターフェース
type ModelStore interface {
	Save(modelID string, classifier *SeverityClassifier) error
	Load(modelID string) (*SeverityClassifier, error)
}

// FileModelStore モデルをJSONファイルとして保存するストア
type FileModelStore struct {
	dir string
}

// NewFileModelStore 保存先ディレクトリを指定してストアを作成
func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{dir: dir}
}

// Save 分類器のスナップショットをJSONで書き出す
func (fs *FileModelStore) Save(modelID string, classifier *SeverityClassifier) error {
	snap, err := classifier.Snapshot()
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshal model: %v", models.ErrCollaboratorUnavailable, err)
	}
	if err := os.MkdirAll(fs.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create model dir: %v", models.ErrCollaboratorUnavailable, err)
	}
	path := fs.modelPath(modelID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write model file: %v", models.ErrCollaboratorUnavailable, err)
	}
	log.Printf("💾 Model saved: %s", path)
	return nil
}

// Load 保存済みモデルを読み込む。ファイルが無い場合はErrModelNotFound。
func (fs *FileModelStore) Load(modelID string) (*SeverityClassifier, error) {
	data, err := os.ReadFile(fs.modelPath(modelID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrModelNotFound
		}
		return nil, fmt.Errorf("%w: read model file: %v", models.ErrCollaboratorUnavailable, err)
	}
	var snap ClassifierSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: corrupt model file: %v", models.ErrModelNotFound, err)
	}
	classifier := NewSeverityClassifier()
	if err := classifier.Restore(&snap); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrModelNotFound, err)
	}
	return classifier, nil
}

func (fs *FileModelStore) modelPath(modelID string) string {
	return filepath.Join(fs.dir, modelID+".json")
}
