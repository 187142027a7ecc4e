package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/finobytes/maxreward/pkg/referral"
)

const snapshotCollection = "snapshots"

// MongoStore keeps snapshots in a MongoDB collection. The tree is stored as
// its renderer JSON so that documents read back byte-for-byte identical.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoSnapshot struct {
	ID          string           `bson:"_id"`
	MemberID    string           `bson:"member_id"`
	CreatedAt   time.Time        `bson:"created_at"`
	PayloadHash string           `bson:"payload_hash"`
	Summary     referral.Summary `bson:"summary"`
	Rejected    int              `bson:"rejected"`
	Unreachable int              `bson:"unreachable"`
	TreeJSON    string           `bson:"tree_json,omitempty"`
}

// OpenMongo connects to uri, pings the deployment and ensures the
// (member_id, created_at) index exists.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "maxreward"
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(snapshotCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "member_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create snapshot index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Save(ctx context.Context, snap *Snapshot) error {
	prepare(snap)
	doc := mongoSnapshot{
		ID:          snap.ID,
		MemberID:    snap.MemberID,
		CreatedAt:   snap.CreatedAt,
		PayloadHash: snap.PayloadHash,
		Summary:     snap.Summary,
		Rejected:    snap.Rejected,
		Unreachable: snap.Unreachable,
	}
	if snap.Tree != nil {
		raw, err := json.Marshal(snap.Tree)
		if err != nil {
			return err
		}
		doc.TreeJSON = string(raw)
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	var doc mongoSnapshot
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.snapshot()
}

func (s *MongoStore) List(ctx context.Context, memberID string, limit int) ([]*Snapshot, error) {
	filter := bson.M{}
	if memberID != "" {
		filter["member_id"] = memberID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"tree_json": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*Snapshot
	for cur.Next(ctx) {
		var doc mongoSnapshot
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		snap, err := doc.snapshot()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, cur.Err()
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (d mongoSnapshot) snapshot() (*Snapshot, error) {
	snap := &Snapshot{
		ID:          d.ID,
		MemberID:    d.MemberID,
		CreatedAt:   d.CreatedAt.UTC(),
		PayloadHash: d.PayloadHash,
		Summary:     d.Summary,
		Rejected:    d.Rejected,
		Unreachable: d.Unreachable,
	}
	if d.TreeJSON != "" {
		if err := json.Unmarshal([]byte(d.TreeJSON), &snap.Tree); err != nil {
			return nil, fmt.Errorf("decode snapshot tree: %w", err)
		}
	}
	return snap, nil
}

var _ Store = (*MongoStore)(nil)
