package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("wallets")}
}

// Credit makes sure the wallet exists, then applies $inc and $push in one
// update guarded by the reference. A guarded miss on an existing wallet means
// the reference was already applied.
func (m *MongoRepository) Credit(ctx context.Context, userID string, tx domain.WalletTransaction) error {
	if err := m.ensureWallet(ctx, userID, tx.CreatedAt); err != nil {
		return err
	}

	filter := bson.M{"user_id": userID}
	if tx.Reference != "" {
		filter["transactions.reference"] = bson.M{"$ne": tx.Reference}
	}

	// newest first, so pages can be sliced from the front
	prepend := bson.M{
		"$each":     []domain.WalletTransaction{tx},
		"$position": 0,
	}
	update := bson.M{
		"$inc":  bson.M{"balance": tx.Signed()},
		"$push": bson.M{"transactions": prepend},
		"$set":  bson.M{"updated_at": tx.CreatedAt},
	}

	res, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrDuplicateReference
	}
	return nil
}

// ensureWallet creates an empty wallet for userID if there is none.
// Two racing inserts collide on the unique user_id index; the loser finds the
// winner's document, so the collision is not an error.
func (m *MongoRepository) ensureWallet(ctx context.Context, userID string, at time.Time) error {
	update := bson.M{"$setOnInsert": bson.M{
		"balance":      0.0,
		"transactions": bson.A{},
		"created_at":   at,
		"updated_at":   at,
	}}
	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

type walletPageDoc struct {
	Balance      float64                    `bson:"balance"`
	Total        int                        `bson:"total"`
	Transactions []domain.WalletTransaction `bson:"transactions"`
}

func (m *MongoRepository) Page(ctx context.Context, userID string, page, limit int) (*domain.WalletPage, error) {
	page, limit = normalizePage(page, limit)

	skip := (page - 1) * limit
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$project", Value: bson.M{
			"balance":      1,
			"total":        bson.M{"$size": "$transactions"},
			"transactions": bson.M{"$slice": bson.A{"$transactions", skip, limit}},
		}}},
	}

	cur, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	var docs []walletPageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode wallet: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrWalletNotFound
	}

	doc := docs[0]
	txs := doc.Transactions
	if txs == nil {
		txs = []domain.WalletTransaction{}
	}
	return &domain.WalletPage{
		Balance:      doc.Balance,
		Transactions: txs,
		TotalPages:   totalPages(doc.Total, limit),
		CurrentPage:  page,
	}, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create wallet indexes: %w", err)
	}
	return nil
}
