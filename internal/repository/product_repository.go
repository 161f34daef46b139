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

type productRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) ProductRepository {
	return &productRepository{collection: db.Collection(productsCollection)}
}

func (m *productRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.collection.FindOne(ctx, bson.M{"_id": id, "is_deleted": bson.M{"$ne": true}}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// GetMany returns the live products among ids keyed by id. Missing ids are simply absent.
func (m *productRepository) GetMany(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	out := make(map[string]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	filter := bson.M{"_id": bson.M{"$in": ids}, "is_deleted": bson.M{"$ne": true}}
	cur, err := m.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	var products []*domain.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (m *productRepository) ListByCategory(ctx context.Context, categoryID string) ([]*domain.Product, error) {
	cur, err := m.collection.Find(ctx, bson.M{"category_id": categoryID, "is_deleted": bson.M{"$ne": true}})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	var products []*domain.Product
	if err := cur.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *productRepository) SetOffer(ctx context.Context, productID, offerID string, offerPrice, prev float64) error {
	prevKey := prevOfferKey(offerID)
	set := bson.M{"offer_price": offerPrice, "updated_at": time.Now()}
	set[prevKey] = prev

	res, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to set offer price: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *productRepository) ClearOffer(ctx context.Context, productID, offerID string) error {
	p, err := m.Get(ctx, productID)
	if err != nil {
		return err
	}
	prev, ok := p.PrevOfferPrice[offerID]
	if !ok {
		return nil
	}

	update := bson.M{
		"$set":   bson.M{"offer_price": prev, "updated_at": time.Now()},
		"$unset": bson.M{prevOfferKey(offerID): ""},
	}
	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": productID}, update); err != nil {
		return fmt.Errorf("failed to restore offer price: %w", err)
	}
	return nil
}

func prevOfferKey(offerID string) string {
	return "prev_offer_price." + offerID
}

func (m *productRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

