package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"breathguard-api/pkg/models"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

const (
	federatedCollectionName = "federated_symptom_records"
	federatedVectorSize     = 5
	federatedQueryLimit     = 100
	defaultQueryRadiusKm    = 50.0
	collaboratorTimeout     = 10 * time.Second
)

// FederatedDataStore 匿名化された集計レコードを共有する外部ストアの契約。
// コアはこのインターフェースだけを消費し、ストレージエンジンは定義しない。
type FederatedDataStore interface {
	Publish(ctx context.Context, statistics models.AggregatedStatistics, conditions models.UserConditions, location models.Coordinates, dataPointCount int) error
	Query(ctx context.Context, conditions models.UserConditions, location *models.Coordinates, radiusKm float64) ([]models.FederatedRecord, error)
}

// FederatedLearningService はQdrantを連合データストアとして使う実装です。
// レコードは疾患フラグと粗い位置から作る特徴ベクトルでインデックスされ、
// ペイロードに匿名統計のJSONを保持します（追記専用・個人識別子なし）。
type FederatedLearningService struct {
	pointsClient      qdrant.PointsClient
	collectionsClient qdrant.CollectionsClient
}

// NewFederatedLearningService Qdrantへ接続し、コレクションを準備して返します。
func NewFederatedLearningService(qdrantURL string, qdrantAPIKey string) (*FederatedLearningService, error) {
	var dialOpts []grpc.DialOption

	// APIキーの有無で、Cloud接続(TLS+APIキー)とローカル接続(非セキュア)を切り替える
	if qdrantAPIKey != "" {
		log.Println("Qdrant Cloud (TLS) への接続を準備します...")
		creds := credentials.NewTLS(&tls.Config{})
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))

		authInterceptor := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
			ctx = metadata.AppendToOutgoingContext(ctx, "api-key", qdrantAPIKey)
			return invoker(ctx, method, req, reply, cc, opts...)
		}
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(authInterceptor))
	} else {
		log.Println("ローカルのQdrant (非TLS) への接続を準備します...")
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(qdrantURL, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant grpc client: %v", models.ErrCollaboratorUnavailable, err)
	}

	service := &FederatedLearningService{
		pointsClient:      qdrant.NewPointsClient(conn),
		collectionsClient: qdrant.NewCollectionsClient(conn),
	}

	if err := service.ensureCollection(); err != nil {
		return nil, err
	}
	return service, nil
}

// ensureCollection コレクションの存在を確認し、無ければ作成する
func (fs *FederatedLearningService) ensureCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
	defer cancel()

	res, err := fs.collectionsClient.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("%w: list collections: %v", models.ErrCollaboratorUnavailable, err)
	}
	for _, collection := range res.GetCollections() {
		if collection.GetName() == federatedCollectionName {
			log.Printf("コレクション '%s' は既に存在します。", federatedCollectionName)
			return nil
		}
	}

	_, err = fs.collectionsClient.Create(ctx, &qdrant.CreateCollection{
		CollectionName: federatedCollectionName,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     federatedVectorSize,
					Distance: qdrant.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create collection: %v", models.ErrCollaboratorUnavailable, err)
	}
	log.Printf("コレクション '%s' を作成しました。", federatedCollectionName)
	return nil
}

// Publish 匿名統計を1レコードとして公開する。
// 位置は小数第1位に丸め、個人識別子は一切含めない。レコードは追記専用。
func (fs *FederatedLearningService) Publish(ctx context.Context, statistics models.AggregatedStatistics, conditions models.UserConditions, location models.Coordinates, dataPointCount int) error {
	ctx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	record := models.FederatedRecord{
		ID:             uuid.New().String(),
		Location:       location.Rounded(),
		Conditions:     conditions,
		Statistics:     statistics,
		DataPointCount: dataPointCount,
		CreatedAt:      time.Now().UTC(),
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %v", models.ErrCollaboratorUnavailable, err)
	}

	payload := map[string]*qdrant.Value{
		"record":        {Kind: &qdrant.Value_StringValue{StringValue: string(recordJSON)}},
		"has_asthma":    {Kind: &qdrant.Value_BoolValue{BoolValue: conditions.HasAsthma}},
		"has_copd":      {Kind: &qdrant.Value_BoolValue{BoolValue: conditions.HasCOPD}},
		"has_allergies": {Kind: &qdrant.Value_BoolValue{BoolValue: conditions.HasAllergies}},
		"lat":           {Kind: &qdrant.Value_DoubleValue{DoubleValue: record.Location.Lat}},
		"lng":           {Kind: &qdrant.Value_DoubleValue{DoubleValue: record.Location.Lng}},
		"created_at":    {Kind: &qdrant.Value_StringValue{StringValue: record.CreatedAt.Format(time.RFC3339)}},
	}

	points := []*qdrant.PointStruct{
		{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: record.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{
						Data: federatedIndexVector(conditions, record.Location),
					},
				},
			},
			Payload: payload,
		},
	}

	waitUpsert := true
	_, err = fs.pointsClient.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: federatedCollectionName,
		Points:         points,
		Wait:           &waitUpsert,
	})
	if err != nil {
		return fmt.Errorf("%w: upsert federated record: %v", models.ErrCollaboratorUnavailable, err)
	}

	log.Printf("📤 匿名統計レコード '%s' を連合ストアに公開しました（%dログ分）。", record.ID, dataPointCount)
	return nil
}

// Query 条件・位置が近いユーザーの匿名レコードを取得する。
// 位置が与えられた場合はradiusKm（デフォルト50km）で絞り込む。
func (fs *FederatedLearningService) Query(ctx context.Context, conditions models.UserConditions, location *models.Coordinates, radiusKm float64) ([]models.FederatedRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	if radiusKm <= 0 {
		radiusKm = defaultQueryRadiusKm
	}

	queryLocation := models.Coordinates{}
	if location != nil {
		queryLocation = location.Rounded()
	}

	withPayload := true
	searchResult, err := fs.pointsClient.Search(ctx, &qdrant.SearchPoints{
		CollectionName: federatedCollectionName,
		Vector:         federatedIndexVector(conditions, queryLocation),
		Limit:          federatedQueryLimit,
		Filter:         conditionFilter(conditions),
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: withPayload}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search federated records: %v", models.ErrCollaboratorUnavailable, err)
	}

	seen := make(map[string]bool)
	records := make([]models.FederatedRecord, 0, len(searchResult.GetResult()))
	for _, point := range searchResult.GetResult() {
		recordValue, ok := point.GetPayload()["record"]
		if !ok {
			continue
		}
		var record models.FederatedRecord
		if err := json.Unmarshal([]byte(recordValue.GetStringValue()), &record); err != nil {
			log.Printf("⚠️ 連合レコードのデコードに失敗しました: %v", err)
			continue
		}
		if seen[record.ID] {
			continue
		}
		if location != nil {
			distance := haversineKm(location.Lat, location.Lng, record.Location.Lat, record.Location.Lng)
			if distance > radiusKm {
				continue
			}
		}
		seen[record.ID] = true
		records = append(records, record)
	}

	log.Printf("🔍 連合ストアから %d 件の匿名レコードを取得しました。", len(records))
	return records, nil
}

// federatedIndexVector 疾患フラグと粗い位置からインデックス用ベクトルを作る。
// 緯度経度は[0,1]に正規化する。
func federatedIndexVector(conditions models.UserConditions, location models.Coordinates) []float32 {
	return []float32{
		float32(boolToFloat(conditions.HasAsthma)),
		float32(boolToFloat(conditions.HasCOPD)),
		float32(boolToFloat(conditions.HasAllergies)),
		float32((location.Lat + 90) / 180),
		float32((location.Lng + 180) / 360),
	}
}

// conditionFilter ユーザーが持つ疾患のいずれかに一致するレコードへ絞るフィルタ。
// 疾患が1つも無い場合はフィルタなし（全体から取得）。
func conditionFilter(conditions models.UserConditions) *qdrant.Filter {
	var should []*qdrant.Condition
	appendFlag := func(key string, set bool) {
		if !set {
			return
		}
		should = append(should, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Boolean{Boolean: true},
					},
				},
			},
		})
	}
	appendFlag("has_asthma", conditions.HasAsthma)
	appendFlag("has_copd", conditions.HasCOPD)
	appendFlag("has_allergies", conditions.HasAllergies)

	if len(should) == 0 {
		return nil
	}
	return &qdrant.Filter{Should: should}
}

// haversineKm 2点間の距離をkmで返す
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}
