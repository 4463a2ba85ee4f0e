package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/hyperjump/shohin/internal/models"
)

const (
	DefaultMongoDatabase   = "product_scraper"
	DefaultMongoCollection = "products"
)

// MongoStore implements Store on a MongoDB collection. Each document holds the
// record sections at the top level next to _id, title and timestamps.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewMongoStore connects to uri and verifies the connection with a ping.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongodb uri is required")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &MongoStore{
		client: client,
		coll:   client.Database(database).Collection(collection),
		now:    time.Now,
	}, nil
}

// mongoHeader holds the fields MongoStore keeps next to the record sections.
type mongoHeader struct {
	ID        string    `bson:"_id"`
	Title     string    `bson:"title"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Upsert sets every record section and refreshes updated_at; created_at is
// written only on insert.
func (s *MongoStore) Upsert(ctx context.Context, doc *models.StoredDocument) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	sections, err := recordToBSON(doc.Record)
	if err != nil {
		return err
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	set := append(sections,
		bson.E{Key: "source_url", Value: doc.SourceURL},
		bson.E{Key: "title", Value: doc.Title},
		bson.E{Key: "updated_at", Value: now},
	)
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: now}}},
	}
	_, err = s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return err
	}

	var header mongoHeader
	err = s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: doc.ID}},
		options.FindOne().SetProjection(bson.D{{Key: "created_at", Value: 1}})).Decode(&header)
	if err != nil {
		return fmt.Errorf("failed to read back %s: %w", doc.ID, err)
	}
	doc.CreatedAt = header.CreatedAt
	doc.UpdatedAt = now
	return nil
}

// Get returns a document by ID.
func (s *MongoStore) Get(ctx context.Context, id string) (*models.StoredDocument, error) {
	raw, err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return documentFromBSON(raw)
}

// List returns documents with offset and limit.
func (s *MongoStore) List(ctx context.Context, offset, limit int) ([]*models.StoredDocument, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []*models.StoredDocument
	for cur.Next(ctx) {
		doc, err := documentFromBSON(cur.Current)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cur.Err()
}

// Count returns the total number of documents.
func (s *MongoStore) Count(ctx context.Context) (int64, error) {
	return s.coll.CountDocuments(ctx, bson.D{})
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// recordToBSON converts the record's sections into BSON elements through its
// JSON form, so null scalars and [] lists are kept as such.
func recordToBSON(record *models.ProductRecord) (bson.D, error) {
	if record == nil {
		record = models.NewProductRecord()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	var sections bson.D
	if err := bson.UnmarshalExtJSON(data, false, &sections); err != nil {
		return nil, fmt.Errorf("failed to convert record to bson: %w", err)
	}
	return sections, nil
}

func documentFromBSON(raw bson.Raw) (*models.StoredDocument, error) {
	var header mongoHeader
	if err := bson.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	data, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document %s: %w", header.ID, err)
	}
	var record models.ProductRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", header.ID, err)
	}
	record.Normalize()
	return &models.StoredDocument{
		ID:        header.ID,
		SourceURL: record.Metadata.SourceURL,
		Title:     header.Title,
		Record:    &record,
		CreatedAt: header.CreatedAt.UTC(),
		UpdatedAt: header.UpdatedAt.UTC(),
	}, nil
}
