package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps stock inside the product documents (stock: [{size, quantity}])
// and soft reservations in their own collection.
type MongoStore struct {
	products     *mongo.Collection
	reservations *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		products:     db.Collection("products"),
		reservations: db.Collection("reservations"),
	}
}

func (m *MongoStore) Available(ctx context.Context, productID, size string) (int, error) {
	var p domain.Product
	filter := bson.M{"_id": productID, "is_deleted": bson.M{"$ne": true}}
	opts := options.FindOne().SetProjection(bson.M{"stock": 1})

	if err := m.products.FindOne(ctx, filter, opts).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to load stock: %w", err)
	}

	q, ok := p.StockFor(size)
	if !ok {
		return 0, ErrSizeNotFound
	}
	return q, nil
}

// Decrement applies one guarded $inc per bucket. When a bucket cannot cover its line,
// the buckets already decremented are restored before returning.
func (m *MongoStore) Decrement(ctx context.Context, lines []domain.StockLine) error {
	merged := merge(lines)
	applied := make([]domain.StockLine, 0, len(merged))

	for _, l := range merged {
		if err := m.decrementOne(ctx, l); err != nil {
			if len(applied) > 0 {
				if rbErr := m.Increment(context.WithoutCancel(ctx), applied); rbErr != nil {
					logging.FromCtx(ctx).Error("stock rollback failed", "lines", applied, "error", rbErr)
				}
			}
			return err
		}
		applied = append(applied, l)
	}
	return nil
}

func (m *MongoStore) decrementOne(ctx context.Context, l domain.StockLine) error {
	filter := bson.M{
		"_id": l.ProductID,
		"stock": bson.M{"$elemMatch": bson.M{
			"size":     l.Size,
			"quantity": bson.M{"$gte": l.Quantity},
		}},
	}
	update := bson.M{
		"$inc": bson.M{"stock.$.quantity": -l.Quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	available, err := m.Available(ctx, l.ProductID, l.Size)
	if err != nil {
		return err
	}
	return &ShortageError{ProductID: l.ProductID, Size: l.Size, Requested: l.Quantity, Available: available}
}

func (m *MongoStore) Increment(ctx context.Context, lines []domain.StockLine) error {
	for _, l := range merge(lines) {
		filter := bson.M{"_id": l.ProductID, "stock.size": l.Size}
		update := bson.M{
			"$inc": bson.M{"stock.$.quantity": l.Quantity},
			"$set": bson.M{"updated_at": time.Now()},
		}

		result, err := m.products.UpdateOne(ctx, filter, update)
		if err != nil {
			return fmt.Errorf("failed to increment stock: %w", err)
		}
		if result.MatchedCount == 0 {
			return fmt.Errorf("restock product %s size %s: %w", l.ProductID, l.Size, ErrSizeNotFound)
		}
	}
	return nil
}

func (m *MongoStore) Reserve(ctx context.Context, id string, lines []domain.StockLine, expiresAt time.Time) (*domain.Reservation, error) {
	if err := m.Decrement(ctx, lines); err != nil {
		return nil, err
	}

	reservation := &domain.Reservation{
		ID:        id,
		Items:     lines,
		Status:    domain.ReservationReserved,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if _, err := m.reservations.InsertOne(ctx, reservation); err != nil {
		if rbErr := m.Increment(context.WithoutCancel(ctx), lines); rbErr != nil {
			logging.FromCtx(ctx).Error("stock rollback failed", "reservation_id", id, "error", rbErr)
		}
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}
	return reservation, nil
}

func (m *MongoStore) GetReservation(ctx context.Context, id string) (*domain.Reservation, error) {
	var r domain.Reservation
	if err := m.reservations.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrReservationNotFound
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return &r, nil
}

func (m *MongoStore) Commit(ctx context.Context, id string) error {
	filter := bson.M{
		"_id":        id,
		"status":     domain.ReservationReserved,
		"expires_at": bson.M{"$gt": time.Now()},
	}
	update := bson.M{"$set": bson.M{"status": domain.ReservationCommitted}}

	result, err := m.reservations.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return m.explainMiss(ctx, id)
}

func (m *MongoStore) Release(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "status": domain.ReservationReserved}
	update := bson.M{"$set": bson.M{"status": domain.ReservationReleased}}

	var before domain.Reservation
	err := m.reservations.FindOneAndUpdate(ctx, filter, update).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return m.explainMiss(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return m.Increment(ctx, before.Items)
}

func (m *MongoStore) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	filter := bson.M{"status": domain.ReservationReserved, "expires_at": bson.M{"$lte": now}}
	cursor, err := m.reservations.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return 0, fmt.Errorf("failed to find expired reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &ids); err != nil {
		return 0, fmt.Errorf("failed to decode expired reservations: %w", err)
	}

	released := 0
	for _, r := range ids {
		err := m.Release(ctx, r.ID)
		if errors.Is(err, ErrInvalidStatus) {
			continue // released or committed concurrently
		}
		if err != nil {
			return released, err
		}
		released++
	}
	return released, nil
}

func (m *MongoStore) explainMiss(ctx context.Context, id string) error {
	r, err := m.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != domain.ReservationReserved {
		return ErrInvalidStatus
	}
	return ErrReservationExpired
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	_, err := m.reservations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create reservation indexes: %w", err)
	}
	return nil
}

var _ Store = (*MongoStore)(nil)
