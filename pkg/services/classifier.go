package services

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"breathguard-api/pkg/models"
)

// ネットワーク形状: 5入力 → 16(ReLU) → dropout → 8(ReLU) → 4(softmax)
const (
	inputSize   = 5
	hidden1Size = 16
	hidden2Size = 8
	outputSize  = 4
)

// TrainingConfig 学習1回分の設定
type TrainingConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	LearningRate    float64
	DropoutRate     float64
	MinExamples     int
	Label           string // ログ出力用（"personal" / "community"）
}

// PersonalTrainingConfig 個人データ用の学習設定。
// データ数が少ないため小さいバッチと長めのエポックを使う。
func PersonalTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          50,
		BatchSize:       4,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		DropoutRate:     0.2,
		MinExamples:     10,
		Label:           "personal",
	}
}

// CommunityTrainingConfig 連合（合成）データ用の学習設定
func CommunityTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:          30,
		BatchSize:       8,
		ValidationSplit: 0.15,
		LearningRate:    0.001,
		DropoutRate:     0.2,
		MinExamples:     5,
		Label:           "community",
	}
}

// SeverityClassifier 重症度4クラスを予測する小型フィードフォワードネット。
// 外部MLランタイムに依存せず、学習・推論ともに純Goで完結する。
type SeverityClassifier struct {
	w1 [][]float64 // [inputSize][hidden1Size]
	b1 []float64
	w2 [][]float64 // [hidden1Size][hidden2Size]
	b2 []float64
	w3 [][]float64 // [hidden2Size][outputSize]
	b3 []float64

	trained bool
	rng     *rand.Rand
}

// NewSeverityClassifier 重みを初期化した未学習の分類器を作成
func NewSeverityClassifier() *SeverityClassifier {
	c := &SeverityClassifier{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	c.initializeWeights()
	return c
}

// initializeWeights He初期化で重みを設定する
func (c *SeverityClassifier) initializeWeights() {
	c.w1, c.b1 = c.newLayer(inputSize, hidden1Size)
	c.w2, c.b2 = c.newLayer(hidden1Size, hidden2Size)
	c.w3, c.b3 = c.newLayer(hidden2Size, outputSize)
}

func (c *SeverityClassifier) newLayer(in, out int) ([][]float64, []float64) {
	scale := math.Sqrt(2.0 / float64(in))
	w := make([][]float64, in)
	for i := range w {
		w[i] = make([]float64, out)
		for j := range w[i] {
			w[i][j] = c.rng.NormFloat64() * scale
		}
	}
	return w, make([]float64, out)
}

// IsTrained 学習済みかどうか
func (c *SeverityClassifier) IsTrained() bool {
	return c.trained
}

// Train サンプル集合でネットワークを学習する。
// サンプル数がcfg.MinExamples未満の場合はErrInsufficientDataを返す。
// 検証分割は監視のためだけに使い、早期終了は行わない。
func (c *SeverityClassifier) Train(examples []models.TrainingExample, cfg TrainingConfig) (*models.TrainingReport, error) {
	if len(examples) < cfg.MinExamples {
		return nil, fmt.Errorf("%w: %d examples (need at least %d)", models.ErrInsufficientData, len(examples), cfg.MinExamples)
	}
	for _, ex := range examples {
		if len(ex.Features) != inputSize || len(ex.Label) != outputSize {
			return nil, fmt.Errorf("%w: malformed example (features=%d labels=%d)", models.ErrInference, len(ex.Features), len(ex.Label))
		}
	}

	start := time.Now()

	// 学習/検証分割（シャッフル後に後方を検証に回す）
	shuffled := make([]models.TrainingExample, len(examples))
	copy(shuffled, examples)
	c.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	valCount := int(float64(len(shuffled)) * cfg.ValidationSplit)
	trainSet := shuffled[:len(shuffled)-valCount]
	valSet := shuffled[len(shuffled)-valCount:]

	opt := newAdamState(cfg.LearningRate)

	var trainLoss, valLoss float64
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		c.rng.Shuffle(len(trainSet), func(i, j int) {
			trainSet[i], trainSet[j] = trainSet[j], trainSet[i]
		})

		trainLoss = 0
		batches := 0
		for offset := 0; offset < len(trainSet); offset += cfg.BatchSize {
			end := offset + cfg.BatchSize
			if end > len(trainSet) {
				end = len(trainSet)
			}
			trainLoss += c.trainBatch(trainSet[offset:end], opt, cfg.DropoutRate)
			batches++
		}
		if batches > 0 {
			trainLoss /= float64(batches)
		}

		valLoss = c.evaluate(valSet)
		if epoch%10 == 0 {
			log.Printf("📈 %s model - epoch %d: loss = %.4f, val_loss = %.4f", cfg.Label, epoch, trainLoss, valLoss)
		}
	}

	c.trained = true
	log.Printf("✅ %s model training completed (%d examples, %d epochs)", cfg.Label, len(examples), cfg.Epochs)

	return &models.TrainingReport{
		Examples:        len(examples),
		Epochs:          cfg.Epochs,
		FinalLoss:       trainLoss,
		ValidationLoss:  valLoss,
		TrainedAt:       time.Now(),
		DurationSeconds: time.Since(start).Seconds(),
	}, nil
}

// Predict 特徴ベクトルから4クラスの確率分布を返す。
// 合計は常に約1で、負の値は含まれない。
func (c *SeverityClassifier) Predict(features []float64) ([]float64, error) {
	if !c.trained {
		return nil, fmt.Errorf("%w: classifier has not been trained", models.ErrInference)
	}
	if len(features) != inputSize {
		return nil, fmt.Errorf("%w: expected %d features, got %d", models.ErrInference, inputSize, len(features))
	}
	_, _, probs := c.forward(features, 0, nil)
	return probs, nil
}

// forward 順伝播。dropoutRate>0のとき第1隠れ層にinverted dropoutを適用し、
// 適用マスクを返す（学習時のみ使用）。
func (c *SeverityClassifier) forward(features []float64, dropoutRate float64, mask []float64) (h1, h2, probs []float64) {
	h1 = make([]float64, hidden1Size)
	for j := 0; j < hidden1Size; j++ {
		sum := c.b1[j]
		for i := 0; i < inputSize; i++ {
			sum += features[i] * c.w1[i][j]
		}
		h1[j] = relu(sum)
		if dropoutRate > 0 && mask != nil {
			h1[j] *= mask[j]
		}
	}

	h2 = make([]float64, hidden2Size)
	for j := 0; j < hidden2Size; j++ {
		sum := c.b2[j]
		for i := 0; i < hidden1Size; i++ {
			sum += h1[i] * c.w2[i][j]
		}
		h2[j] = relu(sum)
	}

	logits := make([]float64, outputSize)
	for j := 0; j < outputSize; j++ {
		sum := c.b3[j]
		for i := 0; i < hidden2Size; i++ {
			sum += h2[i] * c.w3[i][j]
		}
		logits[j] = sum
	}

	return h1, h2, softmax(logits)
}

// trainBatch 1ミニバッチ分の勾配を計算してAdamで更新し、平均損失を返す
func (c *SeverityClassifier) trainBatch(batch []models.TrainingExample, opt *adamState, dropoutRate float64) float64 {
	gw1 := zeros2D(inputSize, hidden1Size)
	gb1 := make([]float64, hidden1Size)
	gw2 := zeros2D(hidden1Size, hidden2Size)
	gb2 := make([]float64, hidden2Size)
	gw3 := zeros2D(hidden2Size, outputSize)
	gb3 := make([]float64, outputSize)

	var loss float64
	for _, ex := range batch {
		mask := c.dropoutMask(dropoutRate)
		h1, h2, probs := c.forward(ex.Features, dropoutRate, mask)

		loss += crossEntropy(probs, ex.Label)

		// 出力層: softmax + cross-entropy の勾配は probs - label
		dOut := make([]float64, outputSize)
		for j := 0; j < outputSize; j++ {
			dOut[j] = probs[j] - ex.Label[j]
		}
		for i := 0; i < hidden2Size; i++ {
			for j := 0; j < outputSize; j++ {
				gw3[i][j] += h2[i] * dOut[j]
			}
		}
		for j := 0; j < outputSize; j++ {
			gb3[j] += dOut[j]
		}

		// 第2隠れ層
		dH2 := make([]float64, hidden2Size)
		for i := 0; i < hidden2Size; i++ {
			if h2[i] > 0 {
				for j := 0; j < outputSize; j++ {
					dH2[i] += dOut[j] * c.w3[i][j]
				}
			}
		}
		for i := 0; i < hidden1Size; i++ {
			for j := 0; j < hidden2Size; j++ {
				gw2[i][j] += h1[i] * dH2[j]
			}
		}
		for j := 0; j < hidden2Size; j++ {
			gb2[j] += dH2[j]
		}

		// 第1隠れ層（dropoutマスクを勾配にも適用）
		dH1 := make([]float64, hidden1Size)
		for i := 0; i < hidden1Size; i++ {
			if h1[i] > 0 {
				for j := 0; j < hidden2Size; j++ {
					dH1[i] += dH2[j] * c.w2[i][j]
				}
				if mask != nil {
					dH1[i] *= mask[i]
				}
			}
		}
		for i := 0; i < inputSize; i++ {
			for j := 0; j < hidden1Size; j++ {
				gw1[i][j] += ex.Features[i] * dH1[j]
			}
		}
		for j := 0; j < hidden1Size; j++ {
			gb1[j] += dH1[j]
		}
	}

	n := float64(len(batch))
	scale2D(gw1, 1/n)
	scale1D(gb1, 1/n)
	scale2D(gw2, 1/n)
	scale1D(gb2, 1/n)
	scale2D(gw3, 1/n)
	scale1D(gb3, 1/n)

	opt.step()
	opt.update2D("w1", c.w1, gw1)
	opt.update1D("b1", c.b1, gb1)
	opt.update2D("w2", c.w2, gw2)
	opt.update1D("b2", c.b2, gb2)
	opt.update2D("w3", c.w3, gw3)
	opt.update1D("b3", c.b3, gb3)

	return loss / n
}

// dropoutMask inverted dropout用のマスクを生成する（推論時はnil）
func (c *SeverityClassifier) dropoutMask(rate float64) []float64 {
	if rate <= 0 {
		return nil
	}
	mask := make([]float64, hidden1Size)
	keep := 1 - rate
	for i := range mask {
		if c.rng.Float64() < keep {
			mask[i] = 1 / keep
		}
	}
	return mask
}

// evaluate 検証セットでの平均損失を返す（dropoutなし）
func (c *SeverityClassifier) evaluate(examples []models.TrainingExample) float64 {
	if len(examples) == 0 {
		return 0
	}
	var loss float64
	for _, ex := range examples {
		_, _, probs := c.forward(ex.Features, 0, nil)
		loss += crossEntropy(probs, ex.Label)
	}
	return loss / float64(len(examples))
}

// BuildFeatureVector 予測・学習で共通の特徴ベクトルを構成する。
// [AQI/500, 喘息, COPD, アレルギー, 時刻/24]
func BuildFeatureVector(aqi float64, conditions models.UserConditions, hourOfDay float64) []float64 {
	return []float64{
		clamp(aqi/500, 0, 1),
		boolToFloat(conditions.HasAsthma),
		boolToFloat(conditions.HasCOPD),
		boolToFloat(conditions.HasAllergies),
		clamp(hourOfDay/24, 0, 1),
	}
}

// OneHotLabel 重症度インデックスをone-hotベクトルに変換する（範囲外はクランプ）
func OneHotLabel(severityIndex int) []float64 {
	if severityIndex < 0 {
		severityIndex = 0
	}
	if severityIndex > outputSize-1 {
		severityIndex = outputSize - 1
	}
	label := make([]float64, outputSize)
	label[severityIndex] = 1
	return label
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// softmax 数値安定版ソフトマックス
func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// crossEntropy カテゴリカル交差エントロピー
func crossEntropy(probs, label []float64) float64 {
	const eps = 1e-12
	var loss float64
	for i := range label {
		if label[i] > 0 {
			loss -= label[i] * math.Log(probs[i]+eps)
		}
	}
	return loss
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func zeros2D(rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	return out
}

func scale1D(v []float64, f float64) {
	for i := range v {
		v[i] *= f
	}
}

func scale2D(m [][]float64, f float64) {
	for i := range m {
		scale1D(m[i], f)
	}
}
