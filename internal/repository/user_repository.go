package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/helden/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// userRepository reads the address book from the user profiles owned by the account service.
type userRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{collection: db.Collection(usersCollection)}
}

func (m *userRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "email": 1, "address": 1})
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}
