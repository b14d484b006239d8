package sink

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowkit/etl/pkg/bufpool"
	"github.com/flowkit/etl/pkg/etlerr"
	"github.com/flowkit/etl/pkg/record"
	"github.com/flowkit/etl/pkg/schema"
)

// MongoConfig configures Mongo (the sink config's `uri` naming the
// cluster URI, `database` and `collection` naming the target).
type MongoConfig struct {
	URI              string
	Database         string
	Collection       string
	BatchSize        int
	WriteThreads     int
	RaiseChangeEvery int64
}

// Mongo is a supplemental Sink, batching records into InsertMany calls.
// Grounded on go.mod's direct dependency on go.mongodb.org/mongo-driver;
// no pack example wires it, so the batching shape follows this package's
// own BatchedSQL/Elasticsearch sinks for consistency.
type Mongo struct {
	*Base
	schema *schema.Schema
	coll   *mongo.Collection
	cfg    MongoConfig
}

func NewMongo(ctx context.Context, cfg MongoConfig, s *schema.Schema) (*Mongo, error) {
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, etlerr.Config("mongo sink: database and collection must not be empty")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.WriteThreads <= 0 {
		cfg.WriteThreads = 1
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, etlerr.Config("mongo sink: connect: %v", err)
	}
	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return &Mongo{
		Base:   NewBase(cfg.RaiseChangeEvery),
		schema: s,
		coll:   coll,
		cfg:    cfg,
	}, nil
}

func (s *Mongo) Schema() *schema.Schema { return s.schema }

type mongoBatch struct {
	docs      []any
	startLine int64
}

func (s *Mongo) Load(ctx context.Context, pool *bufpool.Pool, in <-chan *record.Record) error {
	jobs := make(chan mongoBatch, s.cfg.WriteThreads)
	errs := make(chan error, s.cfg.WriteThreads)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WriteThreads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := s.insertMany(ctx, job); err != nil {
					select {
					case errs <- err:
					default:
					}
					continue
				}
				s.AdvanceLine(int64(len(job.docs)))
			}
		}()
	}

	var batch []any
	var line int64
	var readErr error

readLoop:
	for {
		select {
		case <-ctx.Done():
			readErr = etlerr.Cancelled()
			break readLoop
		case r, ok := <-in:
			if !ok {
				break readLoop
			}
			line++
			doc, err := rowMap(r, s.schema)
			pool.ReturnBuffer(r.Buffer())
			if err != nil {
				readErr = etlerr.Load(line, err)
				break readLoop
			}
			batch = append(batch, doc)
			if len(batch) >= s.cfg.BatchSize {
				select {
				case jobs <- mongoBatch{docs: batch, startLine: line - int64(len(batch)) + 1}:
				case <-ctx.Done():
					readErr = etlerr.Cancelled()
					break readLoop
				}
				batch = nil
			}
		}
	}

	if readErr == nil && len(batch) > 0 {
		jobs <- mongoBatch{docs: batch, startLine: line - int64(len(batch)) + 1}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	if readErr == nil {
		for err := range errs {
			if readErr == nil {
				readErr = err
			}
		}
	}
	if readErr != nil {
		s.EmitError(readErr, line, "")
		return readErr
	}
	s.EmitFinish()
	return nil
}

func (s *Mongo) insertMany(ctx context.Context, job mongoBatch) error {
	_, err := s.coll.InsertMany(ctx, job.docs)
	if err != nil {
		return etlerr.Load(job.startLine, err)
	}
	return nil
}
