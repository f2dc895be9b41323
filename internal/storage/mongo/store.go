// Package mongo implements the DocumentStore on a MongoDB collection. Each
// document is stored as {_id: key, data: fields, raw: encoded}. Server-side
// paging runs as an aggregation pipeline and only supports decoded comparison.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/syntrixbase/pager/internal/codec"
	"github.com/syntrixbase/pager/internal/keyspace"
	"github.com/syntrixbase/pager/internal/storage/config"
	"github.com/syntrixbase/pager/internal/storage/types"
	"github.com/syntrixbase/pager/pkg/model"
)

type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	batchSize  int32
	timeout    time.Duration
	owned      bool
}

var _ types.Store = (*Store)(nil)

// Connect opens a client, pings it and returns a store that owns the client.
func Connect(ctx context.Context, cfg config.MongoConfig, timeout time.Duration) (*Store, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := types.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := NewDocumentStore(client, client.Database(cfg.DatabaseName).Collection(cfg.Collection), cfg.BatchSize, timeout)
	s.owned = true
	return s, nil
}

// NewDocumentStore wraps an existing collection. The client is not closed by Close.
func NewDocumentStore(client *mongo.Client, coll *mongo.Collection, batchSize int32, timeout time.Duration) *Store {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Store{client: client, collection: coll, batchSize: batchSize, timeout: timeout}
}

func (m *Store) classify(ctx context.Context, err error) error {
	if err != nil && mongo.IsTimeout(err) {
		err = fmt.Errorf("%w: %v", model.ErrStoreTimeout, err)
	}
	return types.ClassifyError(ctx, err)
}

// ScanKeys applies the store timeout to each round trip (the initial find and
// every getMore), not to the scan as a whole.
func (m *Store) ScanKeys(ctx context.Context, pattern keyspace.Pattern, fn func(batch []string) error) error {
	findOptions := options.Find().
		SetProjection(bson.D{{Key: "_id", Value: 1}}).
		SetBatchSize(m.batchSize)
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$regex", Value: pattern.Regexp()}}}}

	findCtx, cancel := types.WithTimeout(ctx, m.timeout)
	cursor, err := m.collection.Find(findCtx, filter, findOptions)
	cancel()
	if err != nil {
		return m.classify(ctx, err)
	}
	defer cursor.Close(context.Background())

	next := func() bool {
		if cursor.RemainingBatchLength() > 0 {
			return cursor.Next(ctx)
		}
		opCtx, cancel := types.WithTimeout(ctx, m.timeout)
		defer cancel()
		return cursor.Next(opCtx)
	}

	batch := make([]string, 0, m.batchSize)
	for next() {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		batch = append(batch, doc.ID)
		if len(batch) == int(m.batchSize) {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]string, 0, m.batchSize)
		}
	}
	if err := cursor.Err(); err != nil {
		return m.classify(ctx, err)
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func (m *Store) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	opCtx, cancel := types.WithTimeout(ctx, m.timeout)
	defer cancel()

	findOptions := options.Find().SetProjection(bson.D{{Key: "raw", Value: 1}})
	cursor, err := m.collection.Find(opCtx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: keys}}}}, findOptions)
	if err != nil {
		return nil, m.classify(ctx, err)
	}
	defer cursor.Close(context.Background())

	var docs []storedDocument
	if err := cursor.All(opCtx, &docs); err != nil {
		return nil, m.classify(ctx, err)
	}

	byKey := make(map[string][]byte, len(docs))
	for _, d := range docs {
		byKey[d.ID] = []byte(d.Raw)
	}
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, nil
}

func (m *Store) Get(ctx context.Context, key string) ([]byte, error) {
	opCtx, cancel := types.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc storedDocument
	err := m.collection.FindOne(opCtx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, m.classify(ctx, err)
	}
	return []byte(doc.Raw), nil
}

type procedure struct {
	spec types.ProcedureSpec
}

func (p *procedure) Spec() types.ProcedureSpec { return p.spec }

func (m *Store) CompileProcedure(spec types.ProcedureSpec) (types.Procedure, error) {
	if spec.Mode == "" {
		spec.Mode = model.ModeDecoded
	}
	if spec.Mode != model.ModeDecoded {
		return nil, fmt.Errorf("%w: mongo compares decoded fields only, not %q", model.ErrProcedureUnsupported, spec.Mode)
	}
	return &procedure{spec: spec}, nil
}

func (m *Store) RunProcedure(ctx context.Context, proc types.Procedure, args types.ProcedureArgs) (*types.ProcedureResult, error) {
	p, ok := proc.(*procedure)
	if !ok {
		return nil, fmt.Errorf("%w: procedure was not compiled by the mongo store", model.ErrProcedureUnsupported)
	}

	opCtx, cancel := types.WithTimeout(ctx, m.timeout)
	defer cancel()

	cursor, err := m.collection.Aggregate(opCtx, makePipeline(p.spec, args))
	if err != nil {
		return nil, m.procedureFailure(ctx, p.spec, err)
	}
	defer cursor.Close(context.Background())

	var facets []facetResult
	if err := cursor.All(opCtx, &facets); err != nil {
		return nil, m.procedureFailure(ctx, p.spec, err)
	}

	res := &types.ProcedureResult{}
	if len(facets) == 0 {
		return res, nil
	}
	if len(facets[0].Total) > 0 {
		res.Total = int(facets[0].Total[0].N)
	}
	res.Entries = make([]types.Entry, 0, len(facets[0].Page))
	for _, d := range facets[0].Page {
		res.Entries = append(res.Entries, types.Entry{Key: d.ID, Value: []byte(d.Raw)})
	}
	return res, nil
}

func (m *Store) procedureFailure(ctx context.Context, spec types.ProcedureSpec, err error) error {
	if mongo.IsTimeout(err) {
		err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return types.ProcedureFailure(ctx, spec, err)
}

// Put stores value under key. Values that do not decode are kept raw only, so
// the pipeline never sees them.
func (m *Store) Put(ctx context.Context, key string, value []byte) error {
	opCtx, cancel := types.WithTimeout(ctx, m.timeout)
	defer cancel()

	doc := storedDocument{ID: key, Raw: string(value)}
	if data, err := codec.Decode(value); err == nil {
		doc.Decoded = true
		doc.Data = toBSONData(data)
	}
	_, err := m.collection.ReplaceOne(opCtx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	return m.classify(ctx, err)
}

func (m *Store) Delete(ctx context.Context, key string) error {
	opCtx, cancel := types.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.collection.DeleteOne(opCtx, bson.D{{Key: "_id", Value: key}})
	if err != nil {
		return m.classify(ctx, err)
	}
	if res.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (m *Store) Close(ctx context.Context) error {
	if !m.owned {
		return nil
	}
	return m.client.Disconnect(ctx)
}
