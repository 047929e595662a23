package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sand/solnests/backend/internal/entities"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// documentInserter is the part of *mongo.Collection the repository writes through.
type documentInserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// TransfersDocumentRepository appends confirmed transfers to a MongoDB collection.
type TransfersDocumentRepository struct {
	logger     *slog.Logger
	collection documentInserter
}

func NewTransfersDocumentRepository(logger *slog.Logger, collection documentInserter) *TransfersDocumentRepository {
	return &TransfersDocumentRepository{logger: logger, collection: collection}
}

// ConnectMongo connects to uri and returns the client after a ping.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri cannot be empty")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureSignatureIndex makes signature unique in the transfers collection.
func EnsureSignatureIndex(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "signature", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("signature_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collection.Name(), err)
	}

	return nil
}

// Append inserts one document per confirmed transfer.
func (r *TransfersDocumentRepository) Append(ctx context.Context, record entities.TransferRecord) error {
	res, err := r.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		r.logger.InfoContext(ctx, "Transfer already recorded", "tx_signature", record.Signature)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert transfer document: %w", err)
	}

	r.logger.InfoContext(ctx, "Transfer document recorded",
		"tx_signature", record.Signature,
		"document_id", fmt.Sprint(res.InsertedID))

	return nil
}
