// Package semantic owns the vector index: a Qdrant-backed store for
// production and an in-memory index with the same behaviour for tests and
// local runs.
package semantic

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// Index is what the upsert pipeline and the query service need from a store.
type Index interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, entries []domain.StoredEntry) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
}

// pointsAPI is the subset of pb.PointsClient used here.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient used here.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config locates a Qdrant collection.
type Config struct {
	Addr       string
	APIKey     string
	TLS        bool
	Collection string
	Timeout    time.Duration // per-RPC deadline; zero leaves ctx as is
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	timeout     time.Duration
}

// apiKey attaches the Qdrant api-key header to every RPC.
type apiKey struct {
	key    string
	secure bool
}

func (k apiKey) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"api-key": k.key}, nil
}

func (k apiKey) RequireTransportSecurity() bool { return k.secure }

// New creates a VectorStore for the collection at cfg.Addr (gRPC port).
func New(cfg Config) (*VectorStore, error) {
	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if cfg.APIKey != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(apiKey{key: cfg.APIKey, secure: cfg.TLS}))
	}
	conn, err := grpc.NewClient(cfg.Addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", cfg.Addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		timeout:     cfg.Timeout,
	}, nil
}

// NewWithClients builds a VectorStore over existing clients. Close is a no-op.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// WithTimeout sets the per-RPC deadline and returns v.
func (v *VectorStore) WithTimeout(d time.Duration) *VectorStore {
	v.timeout = d
	return v
}

func (v *VectorStore) rpcContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, v.timeout)
}

// Collection returns the collection name.
func (v *VectorStore) Collection() string { return v.collection }

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Exists reports whether the collection is present.
func (v *VectorStore) Exists(ctx context.Context) (bool, error) {
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	list, err := v.collections.List(rctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureCollection creates the collection with a cosine metric if it is
// missing. An existing collection is left as is.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	ok, err := v.Exists(ctx)
	if err != nil || ok {
		return err
	}
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	_, err = v.collections.Create(rctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// DeleteCollection drops the collection.
func (v *VectorStore) DeleteCollection(ctx context.Context) error {
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	_, err := v.collections.Delete(rctx, &pb.DeleteCollection{CollectionName: v.collection})
	if err != nil {
		return fmt.Errorf("semantic: delete collection %s: %w", v.collection, err)
	}
	return nil
}

// Upsert writes entries in one call, waiting for the write to be applied.
// Point ids are derived from entry ids, so writing the same entry twice
// replaces it.
func (v *VectorStore) Upsert(ctx context.Context, entries []domain.StoredEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		payload := make(map[string]*pb.Value, len(e.Metadata))
		for k, s := range e.Metadata {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: domain.PointID(e.ID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: e.Vector},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	_, err := v.points.Upsert(rctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(entries), err)
	}
	return nil
}

// Search returns the topK nearest entries with their metadata.
func (v *VectorStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	resp, err := v.points.Search(rctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		meta := make(map[string]string, len(r.GetPayload()))
		for k, val := range r.GetPayload() {
			meta[k] = val.GetStringValue()
		}
		id := meta[domain.MetaRowID]
		if id == "" {
			id = r.GetId().GetUuid()
		}
		results[i] = SearchResult{ID: id, Score: r.GetScore(), Metadata: meta}
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (v *VectorStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	rctx, cancel := v.rpcContext(ctx)
	defer cancel()
	resp, err := v.points.Count(rctx, &pb.CountPoints{CollectionName: v.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

var _ Index = (*VectorStore)(nil)
