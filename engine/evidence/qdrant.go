package evidence

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantStore is the indexed search backend: clause embeddings mirrored
// into a Qdrant collection, points keyed by clause ordinal. It is the sole
// owner of all Qdrant operations.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewQdrantStore connects to Qdrant at the given gRPC address.
func NewQdrantStore(addr, collection string) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("evidence: dial qdrant %s: %w", addr, err)
	}
	return &QdrantStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close closes the underlying gRPC connection.
func (q *QdrantStore) Close() error { return q.conn.Close() }

// Ready reports whether the collection exists and is reachable. Used at
// startup to decide between indexed and linear-scan search.
func (q *QdrantStore) Ready(ctx context.Context) bool {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return true
		}
	}
	return false
}

// EnsureCollection creates the collection if it doesn't exist.
func (q *QdrantStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("evidence: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Euclid,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("evidence: create collection %s: %w", q.collection, err)
	}
	return nil
}

// UpsertIndex mirrors every clause of the loaded index into the collection,
// keyed by ordinal. Called by the offline indexer, never at request time.
func (q *QdrantStore) UpsertIndex(ctx context.Context, index *Index) error {
	const batch = 256
	for start := 0; start < index.Len(); start += batch {
		end := start + batch
		if end > index.Len() {
			end = index.Len()
		}

		points := make([]*pb.PointStruct, 0, end-start)
		for ord := start; ord < end; ord++ {
			c := index.Clause(ord)
			points = append(points, &pb.PointStruct{
				Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(ord)}},
				Vectors: &pb.Vectors{
					VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: index.Vector(ord)}},
				},
				Payload: map[string]*pb.Value{
					"company":     {Kind: &pb.Value_StringValue{StringValue: c.Insurer}},
					"policy_type": {Kind: &pb.Value_StringValue{StringValue: c.PolicyCategory}},
					"clause_id":   {Kind: &pb.Value_StringValue{StringValue: c.ClauseID}},
				},
			})
		}

		wait := true
		_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
			CollectionName: q.collection,
			Wait:           &wait,
			Points:         points,
		})
		if err != nil {
			return fmt.Errorf("evidence: upsert points %d..%d: %w", start, end, err)
		}
	}
	return nil
}

// Search performs k-NN over the given candidate ordinals only, returning
// hits ascending by Euclidean distance.
func (q *QdrantStore) Search(ctx context.Context, vector []float32, candidates []int, topK int) ([]Hit, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]*pb.PointId, len(candidates))
	for i, ord := range candidates {
		ids[i] = &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(ord)}}
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter: &pb.Filter{
			Must: []*pb.Condition{{
				ConditionOneOf: &pb.Condition_HasId{
					HasId: &pb.HasIdCondition{HasId: ids},
				},
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("evidence: search: %w", err)
	}

	hits := make([]Hit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = Hit{Ordinal: int(r.GetId().GetNum()), Distance: r.GetScore()}
	}
	return hits, nil
}
