package store

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/xhad/croprag/internal/models"
)

// QdrantStore keeps the collection in Qdrant, with the record fields as payload.
type QdrantStore struct {
	config      VectorStoreConfig
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	logger      *slog.Logger
}

// NewQdrantStore connects to Qdrant at the configured gRPC address.
func NewQdrantStore(ctx context.Context, config VectorStoreConfig) (*QdrantStore, error) {
	conn, err := grpc.NewClient(config.URL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", config.URL, err)
	}

	if _, err := pb.NewQdrantClient(conn).HealthCheck(ctx, &pb.HealthCheckRequest{}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("qdrant health check %s: %w", config.URL, err)
	}

	return &QdrantStore{
		config:      config,
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		logger:      slog.Default().With("component", "store", "backend", BackendQdrant, "collection", config.Collection),
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error {
	return q.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (q *QdrantStore) EnsureCollection(ctx context.Context) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.config.Collection {
			q.logger.Info("collection already exists")
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.config.Collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.config.VectorDim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		// another process created it between List and Create
		if status.Code(err) == codes.AlreadyExists {
			q.logger.Info("collection already exists", "err", err)
			return nil
		}
		return fmt.Errorf("create collection %s: %w", q.config.Collection, err)
	}

	q.logger.Info("collection created", "dimension", q.config.VectorDim)
	return nil
}

// Dimension returns the size of the collection's unnamed vector.
func (q *QdrantStore) Dimension(ctx context.Context) (int, error) {
	resp, err := q.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: q.config.Collection})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, fmt.Errorf("get collection %s: %w", q.config.Collection, err)
	}
	size := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	return int(size), nil
}

func (q *QdrantStore) UpsertBatch(ctx context.Context, records []models.CropRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: payloadOf(r),
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.config.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search. Qdrant reports cosine similarity,
// which is converted to a distance.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]models.MatchResult, error) {
	if k <= 0 {
		return []models.MatchResult{}, nil
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.config.Collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			q.logger.Warn("collection does not exist, returning no matches")
			return []models.MatchResult{}, nil
		}
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]models.MatchResult, len(resp.GetResult()))
	for i, p := range resp.GetResult() {
		r := recordOf(p.GetId().GetUuid(), p.GetPayload())
		matches[i] = r.Match(1 - float64(p.GetScore()))
	}
	return matches, nil
}

// Stale scrolls through points whose model payload differs from model.
func (q *QdrantStore) Stale(ctx context.Context, model string, limit int) ([]models.CropRecord, error) {
	n := uint32(limit)
	resp, err := q.points.Scroll(ctx, &pb.ScrollPoints{
		CollectionName: q.config.Collection,
		Filter: &pb.Filter{
			MustNot: []*pb.Condition{fieldMatch("model", model)},
		},
		Limit:       &n,
		WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("scroll stale points: %w", err)
	}

	records := make([]models.CropRecord, 0, len(resp.GetResult()))
	for _, p := range resp.GetResult() {
		records = append(records, recordOf(p.GetId().GetUuid(), p.GetPayload()))
	}
	return records, nil
}

func payloadOf(r models.CropRecord) map[string]*pb.Value {
	str := func(s string) *pb.Value {
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: sanitizeUTF8(s)}}
	}
	num := func(f float64) *pb.Value {
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: f}}
	}

	return map[string]*pb.Value{
		"text":             str(r.Description),
		"nitrogen":         num(r.Nitrogen),
		"phosphorus":       num(r.Phosphorus),
		"potassium":        num(r.Potassium),
		"temperature":      num(r.Temperature),
		"humidity":         num(r.Humidity),
		"ph_value":         num(r.PH),
		"recommended_crop": str(r.RecommendedCrop),
		"chemical":         str(r.Chemical),
		"threshold":        str(r.Threshold),
		"disease":          str(r.Disease),
		"affected_crops":   str(r.AffectedCrops),
		"model":            str(r.Model),
	}
}

func recordOf(id string, payload map[string]*pb.Value) models.CropRecord {
	num := func(key string) float64 {
		v := payload[key]
		if i, ok := v.GetKind().(*pb.Value_IntegerValue); ok {
			return float64(i.IntegerValue)
		}
		return v.GetDoubleValue()
	}
	str := func(key string) string {
		return payload[key].GetStringValue()
	}

	return models.CropRecord{
		ID:              id,
		Description:     str("text"),
		Nitrogen:        num("nitrogen"),
		Phosphorus:      num("phosphorus"),
		Potassium:       num("potassium"),
		Temperature:     num("temperature"),
		Humidity:        num("humidity"),
		PH:              num("ph_value"),
		RecommendedCrop: str("recommended_crop"),
		Chemical:        str("chemical"),
		Threshold:       str("threshold"),
		Disease:         str("disease"),
		AffectedCrops:   str("affected_crops"),
		Model:           str("model"),
	}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
