package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type offerRepository struct {
	collection *mongo.Collection
}

func NewOfferRepository(db *mongo.Database) OfferRepository {
	return &offerRepository{collection: db.Collection(offersCollection)}
}

func (m *offerRepository) Create(ctx context.Context, offer *domain.Offer) error {
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = time.Now()
	}
	if _, err := m.collection.InsertOne(ctx, offer); err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

func (m *offerRepository) Get(ctx context.Context, id string) (*domain.Offer, error) {
	var o domain.Offer
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return &o, nil
}

func (m *offerRepository) List(ctx context.Context) ([]*domain.Offer, error) {
	cur, err := m.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	offers := make([]*domain.Offer, 0)
	if err := cur.All(ctx, &offers); err != nil {
		return nil, fmt.Errorf("failed to decode offers: %w", err)
	}
	return offers, nil
}

func (m *offerRepository) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrOfferNotFound
	}
	return nil
}
