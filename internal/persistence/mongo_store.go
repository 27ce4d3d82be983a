package persistence

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/packflow/pkg/api"
)

// MongoStore is a FlowStore backed by MongoDB. Instances live in one
// collection keyed by instance id; the store version lives in a single
// document of a sibling "<collection>_meta" collection.
type MongoStore struct {
	coll *mongo.Collection
	meta *mongo.Collection
}

var _ FlowStore = (*MongoStore)(nil)

const mongoMetaID = "store"

// NewMongoStore creates a Mongo-backed flow store.
// dbName defaults to "packflow" if empty, collName defaults to "flow_instances".
func NewMongoStore(client *mongo.Client, dbName, collName string) *MongoStore {
	if dbName == "" {
		dbName = "packflow"
	}
	if collName == "" {
		collName = "flow_instances"
	}
	db := client.Database(dbName)
	return &MongoStore{
		coll: db.Collection(collName),
		meta: db.Collection(collName + "_meta"),
	}
}

type mongoInstanceDoc struct {
	ID        string `bson:"_id"`
	FlowID    string `bson:"flow_id"`
	State     string `bson:"state"`
	Revision  int64  `bson:"revision"`
	CreatedAt int64  `bson:"created_at"`
	Payload   []byte `bson:"payload"`
}

type mongoMetaDoc struct {
	ID        string `bson:"_id"`
	Version   int64  `bson:"version"`
	UpdatedAt int64  `bson:"updated_at"`
}

func (s *MongoStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc mongoInstanceDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": instanceID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeInstance(doc.Payload)
}

func (s *MongoStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if flow != "" {
		filter["flow_id"] = string(flow)
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var results []api.Instance
	for cur.Next(ctx) {
		var doc mongoInstanceDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		inst, err := decodeInstance(doc.Payload)
		if err != nil {
			return nil, err
		}
		results = append(results, inst)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *MongoStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	payload, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m := inst.Meta()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if m.Revision == 1 {
		doc := mongoInstanceDoc{
			ID:        m.InstanceID,
			FlowID:    string(inst.Flow()),
			State:     inst.StateName(),
			Revision:  m.Revision,
			CreatedAt: m.CreatedAt.UnixNano(),
			Payload:   payload,
		}
		if _, err := s.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return s.conflict(ctx, m)
			}
			return err
		}
	} else {
		update := bson.M{
			"$set": bson.M{
				"state":    inst.StateName(),
				"revision": m.Revision,
				"payload":  payload,
			},
		}
		res, err := s.coll.UpdateOne(ctx, bson.M{"_id": m.InstanceID, "revision": m.Revision - 1}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.conflict(ctx, m)
		}
	}
	return s.bump(ctx, writeTime(inst))
}

func (s *MongoStore) conflict(ctx context.Context, m *api.Envelope) error {
	var doc mongoInstanceDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": m.InstanceID}).Decode(&doc)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return err
	}
	return conflict(m.InstanceID, doc.Revision, m.Revision)
}

func (s *MongoStore) Delete(ctx context.Context, instanceID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": instanceID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrInstanceNotFound
	}
	return s.bump(ctx, time.Now().UTC())
}

func (s *MongoStore) Version(ctx context.Context) (api.StoreVersion, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var doc mongoMetaDoc
	err := s.meta.FindOne(ctx, bson.M{"_id": mongoMetaID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return api.StoreVersion{}, nil
		}
		return api.StoreVersion{}, err
	}
	return storeVersion(doc.Version, doc.UpdatedAt), nil
}

func (s *MongoStore) bump(ctx context.Context, at time.Time) error {
	update := bson.M{
		"$inc": bson.M{"version": 1},
		"$set": bson.M{"updated_at": at.UnixNano()},
	}
	_, err := s.meta.UpdateOne(ctx, bson.M{"_id": mongoMetaID}, update, options.Update().SetUpsert(true))
	return err
}
