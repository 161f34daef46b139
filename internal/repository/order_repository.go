package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type orderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &orderRepository{collection: db.Collection(ordersCollection)}
}

func (m *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1

	if _, err := m.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (m *orderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

func (m *orderRepository) Save(ctx context.Context, order *domain.Order, expectedVersion int64) error {
	prevVersion, prevUpdated := order.Version, order.UpdatedAt
	order.Version = expectedVersion + 1
	order.UpdatedAt = time.Now()

	filter := bson.M{"_id": order.ID, "version": expectedVersion}
	res, err := m.collection.ReplaceOne(ctx, filter, order)
	if err != nil {
		order.Version, order.UpdatedAt = prevVersion, prevUpdated
		return fmt.Errorf("failed to save order: %w", err)
	}
	if res.MatchedCount == 0 {
		order.Version, order.UpdatedAt = prevVersion, prevUpdated
		n, err := m.collection.CountDocuments(ctx, bson.M{"_id": order.ID})
		if err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		if n == 0 {
			return ErrOrderNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// confirmed orders carry no expires_at
var placedFilter = bson.M{"expires_at": bson.M{"$exists": false}}

func (m *orderRepository) ListByUser(ctx context.Context, userID string, page, limit int) ([]*domain.Order, int64, error) {
	filter := bson.M{"user_id": userID}
	for k, v := range placedFilter {
		filter[k] = v
	}
	return m.list(ctx, filter, page, limit)
}

func (m *orderRepository) List(ctx context.Context, page, limit int) ([]*domain.Order, int64, error) {
	return m.list(ctx, placedFilter, page, limit)
}

func (m *orderRepository) list(ctx context.Context, filter bson.M, page, limit int) ([]*domain.Order, int64, error) {
	total, err := m.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	opts := pageOptions(page, limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]*domain.Order, 0)
	if err := cur.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, total, nil
}

// DeleteExpiredDrafts removes drafts whose expiry has passed and returns them.
func (m *orderRepository) DeleteExpiredDrafts(ctx context.Context, now time.Time) ([]*domain.Order, error) {
	filter := bson.M{"expires_at": bson.M{"$lte": now}}
	cur, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired drafts: %w", err)
	}
	var drafts []*domain.Order
	if err := cur.All(ctx, &drafts); err != nil {
		return nil, fmt.Errorf("failed to decode expired drafts: %w", err)
	}

	deleted := drafts[:0]
	for _, d := range drafts {
		// a draft confirmed in the meantime has lost expires_at and does not match
		res, err := m.collection.DeleteOne(ctx, bson.M{"_id": d.ID, "version": d.Version, "expires_at": bson.M{"$lte": now}})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete draft %s: %w", d.ID, err)
		}
		if res.DeletedCount == 1 {
			deleted = append(deleted, d)
		}
	}
	return deleted, nil
}

func (m *orderRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index(),
		},
		{
			// drafts vanish at expires_at; confirmed orders have no such field
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	return nil
}
