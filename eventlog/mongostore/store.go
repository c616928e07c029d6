// Package mongostore wires eventlog.Repository to MongoDB, grounded on
// the teacher's features/runlog/mongo client (goa-ai), generalized from a
// single run_id index to the dual task/run indexing eventlog.Event needs
// and ported to the v2 driver.
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"goa.design/swarmassistant/eventlog"
)

const (
	defaultCollection = "task_execution_events"
	defaultTimeout    = 5 * time.Second
)

// Options configures Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements eventlog.Repository over a MongoDB collection, indexed
// for both task-scoped and run-scoped cursor pagination.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

type eventDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	EventID      string        `bson:"event_id"`
	RunID        string        `bson:"run_id"`
	TaskID       string        `bson:"task_id"`
	EventType    string        `bson:"event_type"`
	Payload      string        `bson:"payload"`
	OccurredAt   time.Time     `bson:"occurred_at"`
	TaskSequence uint64        `bson:"task_sequence"`
	RunSequence  uint64        `bson:"run_sequence"`
	TraceID      string        `bson:"trace_id,omitempty"`
	SpanID       string        `bson:"span_id,omitempty"`
}

// NewStore builds a Mongo-backed eventlog.Repository, creating the
// task/run compound indexes used by ListByTask/ListByRun if they don't
// already exist.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)
	indexCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(indexCtx, coll); err != nil {
		return nil, err
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "task_id", Value: 1}, {Key: "task_sequence", Value: 1}}},
		{Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "run_sequence", Value: 1}}},
	})
	return err
}

// Append implements eventlog.Repository.
func (s *Store) Append(ctx context.Context, event eventlog.Event) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	doc := eventDocument{
		EventID:      event.EventID,
		RunID:        event.RunID,
		TaskID:       event.TaskID,
		EventType:    string(event.EventType),
		Payload:      event.Payload,
		OccurredAt:   event.OccurredAt.UTC(),
		TaskSequence: event.TaskSequence,
		RunSequence:  event.RunSequence,
		TraceID:      event.TraceID,
		SpanID:       event.SpanID,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

// ListByTask implements eventlog.Repository.
func (s *Store) ListByTask(ctx context.Context, taskID string, afterSequence uint64, limit int) ([]eventlog.Event, error) {
	return s.list(ctx, bson.D{
		{Key: "task_id", Value: taskID},
		{Key: "task_sequence", Value: bson.D{{Key: "$gt", Value: afterSequence}}},
	}, "task_sequence", limit)
}

// ListByRun implements eventlog.Repository.
func (s *Store) ListByRun(ctx context.Context, runID string, afterSequence uint64, limit int) ([]eventlog.Event, error) {
	return s.list(ctx, bson.D{
		{Key: "run_id", Value: runID},
		{Key: "run_sequence", Value: bson.D{{Key: "$gt", Value: afterSequence}}},
	}, "run_sequence", limit)
}

func (s *Store) list(ctx context.Context, filter bson.D, sortKey string, limit int) ([]eventlog.Event, error) {
	limit = eventlog.ClampLimit(limit)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: sortKey, Value: 1}}).
		SetLimit(int64(limit)),
	)
	if err != nil {
		// Errors surface as an empty page rather than propagating into
		// coordination logic; callers that need the fault still get it.
		return nil, err
	}
	defer cur.Close(ctx)

	var events []eventlog.Event
	for cur.Next(ctx) {
		var doc eventDocument
		if err := cur.Decode(&doc); err != nil {
			return events, err
		}
		events = append(events, eventlog.Event{
			EventID:      doc.EventID,
			RunID:        doc.RunID,
			TaskID:       doc.TaskID,
			EventType:    eventlog.EventType(doc.EventType),
			Payload:      doc.Payload,
			OccurredAt:   doc.OccurredAt,
			TaskSequence: doc.TaskSequence,
			RunSequence:  doc.RunSequence,
			TraceID:      doc.TraceID,
			SpanID:       doc.SpanID,
		})
	}
	return events, cur.Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
