package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// EnsureIndexes creates the indexes of every collection owned by this package.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type indexer interface {
		CreateIndexes(ctx context.Context) error
	}
	for _, ix := range []indexer{
		&cartRepository{collection: db.Collection(cartsCollection)},
		&orderRepository{collection: db.Collection(ordersCollection)},
		&couponRepository{collection: db.Collection(couponsCollection)},
		&outboxRepository{collection: db.Collection(outboxCollection)},
		&productRepository{collection: db.Collection(productsCollection)},
	} {
		if err := ix.CreateIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// pageOptions turns a 1-based page and a limit into skip/limit find options.
func pageOptions(page, limit int) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
}
