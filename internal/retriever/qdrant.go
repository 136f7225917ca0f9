package retriever

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantIndex implements Index over a Qdrant instance via gRPC. One Qdrant
// collection per namespace keeps paper indexes isolated from the style
// corpus and from each other, so a job's writes never block another job's
// reads.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	dims        int
}

// NewQdrantIndex connects to Qdrant at the given gRPC address.
func NewQdrantIndex(addr string, dims int) (*QdrantIndex, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("retriever: dial qdrant %s: %w", addr, err)
	}
	return &QdrantIndex{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		dims:        dims,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

// ensureCollection creates the namespace collection if missing.
func (q *QdrantIndex) ensureCollection(ctx context.Context, namespace string) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("retriever: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == namespace {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: namespace,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("retriever: create collection %s: %w", namespace, err)
	}
	return nil
}

// Upsert stores items into the namespace collection.
func (q *QdrantIndex) Upsert(ctx context.Context, namespace string, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, namespace); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(items))
	for i, it := range items {
		payload := make(map[string]*pb.Value, len(it.Metadata)+2)
		payload["item_id"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: it.ID}}
		payload["text"] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: it.Text}}
		for k, v := range it.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				// Qdrant point IDs must be UUIDs or integers; derive a
				// stable UUID from the item ID.
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.NewSHA1(uuid.NameSpaceOID, []byte(it.ID)).String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: it.Vector},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: namespace,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("retriever: upsert %d points: %w", len(items), err)
	}
	return nil
}

// Query performs similarity search with optional metadata filters.
func (q *QdrantIndex) Query(ctx context.Context, namespace string, vector []float32, k int, filter map[string]string) ([]Hit, error) {
	req := &pb.SearchPoints{
		CollectionName: namespace,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filter) > 0 {
		must := make([]*pb.Condition, 0, len(filter))
		for key, val := range filter {
			must = append(must, fieldMatch(key, val))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("retriever: search %s: %w", namespace, err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		h := Hit{
			Score:    r.GetScore(),
			Metadata: make(map[string]string),
		}
		for key, val := range r.GetPayload() {
			s := val.GetStringValue()
			switch key {
			case "item_id":
				h.ID = s
			case "text":
				h.Text = s
			default:
				h.Metadata[key] = s
			}
		}
		hits[i] = h
	}
	return hits, nil
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
