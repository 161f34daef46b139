package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/helden/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type couponRepository struct {
	collection *mongo.Collection
}

func NewCouponRepository(db *mongo.Database) CouponRepository {
	return &couponRepository{collection: db.Collection(couponsCollection)}
}

func (m *couponRepository) Create(ctx context.Context, coupon *domain.Coupon) error {
	now := time.Now()
	coupon.Code = strings.ToUpper(coupon.Code)
	coupon.CreatedAt, coupon.UpdatedAt = now, now

	if _, err := m.collection.InsertOne(ctx, coupon); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCouponExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (m *couponRepository) Get(ctx context.Context, id string) (*domain.Coupon, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *couponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return m.findOne(ctx, bson.M{"code": strings.ToUpper(code)})
}

func (m *couponRepository) findOne(ctx context.Context, filter bson.M) (*domain.Coupon, error) {
	var c domain.Coupon
	if err := m.collection.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &c, nil
}

func (m *couponRepository) List(ctx context.Context) ([]*domain.Coupon, error) {
	return m.find(ctx, bson.M{})
}

func (m *couponRepository) ListUsable(ctx context.Context, now time.Time) ([]*domain.Coupon, error) {
	return m.find(ctx, usableFilter(now))
}

func (m *couponRepository) find(ctx context.Context, filter bson.M) ([]*domain.Coupon, error) {
	opts := options.Find().SetSort(bson.D{{Key: "valid_upto", Value: 1}})
	cur, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	coupons := make([]*domain.Coupon, 0)
	if err := cur.All(ctx, &coupons); err != nil {
		return nil, fmt.Errorf("failed to decode coupons: %w", err)
	}
	return coupons, nil
}

func (m *couponRepository) Update(ctx context.Context, coupon *domain.Coupon) error {
	coupon.Code = strings.ToUpper(coupon.Code)
	coupon.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"code":           coupon.Code,
		"valid_from":     coupon.ValidFrom,
		"valid_upto":     coupon.ValidUpto,
		"discount_type":  coupon.DiscountType,
		"discount_value": coupon.DiscountValue,
		"min_price":      coupon.MinPrice,
		"max_discount":   coupon.MaxDiscount,
		"coupon_count":   coupon.CouponCount,
		"active":         coupon.Active,
		"updated_at":     coupon.UpdatedAt,
	}}
	res, err := m.collection.UpdateOne(ctx, bson.M{"_id": coupon.ID}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCouponExists
		}
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (m *couponRepository) Delete(ctx context.Context, id string) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (m *couponRepository) Redeem(ctx context.Context, id string, now time.Time) error {
	filter := usableFilter(now)
	filter["_id"] = id

	update := bson.M{
		"$inc": bson.M{"coupon_count": -1},
		"$set": bson.M{"updated_at": now},
	}
	res, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to redeem coupon: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrCouponExhausted
	}
	return nil
}

func (m *couponRepository) Release(ctx context.Context, id string) error {
	update := bson.M{
		"$inc": bson.M{"coupon_count": 1},
		"$set": bson.M{"updated_at": time.Now()},
	}
	res, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to release coupon: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func usableFilter(now time.Time) bson.M {
	return bson.M{
		"active":       true,
		"coupon_count": bson.M{"$gt": 0},
		"valid_from":   bson.M{"$lte": now},
		"valid_upto":   bson.M{"$gte": now},
	}
}

func (m *couponRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create coupon indexes: %w", err)
	}
	return nil
}
