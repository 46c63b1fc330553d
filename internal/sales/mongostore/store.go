// Package mongostore persists sales documents in MongoDB. Each document is
// stored whole, lines embedded, with every amount encoded as a decimal string.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

const (
	documentsCollection = "sales_documents"
	countersCollection  = "counters"
	numberCounter       = "sales_document_number"
)

// Store implements sales.DocumentStore and sales.DocumentLister.
type Store struct {
	db  *mongo.Database
	now func() time.Time
}

var (
	_ sales.DocumentStore  = (*Store)(nil)
	_ sales.DocumentLister = (*Store)(nil)
)

// New constructs a store over the given database.
func New(db *mongo.Database) *Store {
	return &Store{db: db, now: time.Now}
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the listing index used by the expiry scan.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(documentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}},
	})
	return err
}

func (s *Store) FetchDocument(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error) {
	var rec documentRecord
	err := s.db.Collection(documentsCollection).
		FindOne(ctx, bson.M{"_id": id, "type": string(docType)}).
		Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
		}
		return nil, err
	}
	return rec.toDocument()
}

func (s *Store) CreateDocument(ctx context.Context, docType documents.DocumentType, doc *documents.SalesDocument) (string, error) {
	seq, err := s.nextSequence(ctx)
	if err != nil {
		return "", err
	}
	id := documents.FormatNumber(docType, doc.TransactionDate, seq)

	rec := recordFrom(doc)
	rec.ID = id
	rec.Type = string(docType)
	rec.UpdatedAt = s.now().UTC()
	if _, err := s.db.Collection(documentsCollection).InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("mongostore: insert: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateDocument(ctx context.Context, docType documents.DocumentType, id string, doc *documents.SalesDocument) error {
	rec := recordFrom(doc)
	rec.ID = id
	rec.Type = string(docType)
	rec.UpdatedAt = s.now().UTC()

	res, err := s.db.Collection(documentsCollection).
		ReplaceOne(ctx, bson.M{"_id": id, "type": string(docType)}, rec)
	if err != nil {
		return fmt.Errorf("mongostore: replace: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, filter sales.ListFilter) ([]*documents.SalesDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "transaction_date", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cur, err := s.db.Collection(documentsCollection).Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*documents.SalesDocument
	for cur.Next(ctx) {
		var rec documentRecord
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		doc, err := rec.toDocument()
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cur.Err()
}

func listQuery(filter sales.ListFilter) bson.M {
	q := bson.M{"type": string(filter.Type)}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		q["status"] = bson.M{"$in": statuses}
	}
	return q
}

func (s *Store) nextSequence(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.db.Collection(countersCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": numberCounter},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongostore: next number: %w", err)
	}
	return counter.Seq, nil
}
