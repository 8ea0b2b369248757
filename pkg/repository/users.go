package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoRepository) users() *mongo.Collection {
	return m.database.Collection(usersCollection)
}

func (m *MongoRepository) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.CartData == nil {
		user.CartData = map[string]int{}
	}
	user.CreatedAt, user.UpdatedAt = now, now

	if _, err := m.users().InsertOne(ctx, user); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user models.User
	err = m.users().FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.CartData == nil {
		user.CartData = map[string]int{}
	}
	return &user, nil
}

func (m *MongoRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := m.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// SetUserRole writes role and returns the updated user.
func (m *MongoRepository) SetUserRole(ctx context.Context, id, role string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err = m.users().FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"role": role, "updatedAt": time.Now().UTC()},
	}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("set user role: %w", err)
	}
	return &user, nil
}

func (m *MongoRepository) ClearCart(ctx context.Context, userID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return ErrUserNotFound
	}

	res, err := m.users().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"cartData": bson.M{}, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddCartItem increments the quantity of itemID by one and returns the
// resulting cart.
func (m *MongoRepository) AddCartItem(ctx context.Context, userID, itemID string) (map[string]int, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	err = m.users().FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{
		"$inc": bson.M{"cartData." + itemID: 1},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return user.CartData, nil
}

// RemoveCartItem decrements the quantity of itemID, dropping the key when it
// reaches zero.
func (m *MongoRepository) RemoveCartItem(ctx context.Context, userID, itemID string) (map[string]int, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	key := "cartData." + itemID
	now := time.Now().UTC()

	res, err := m.users().UpdateOne(ctx,
		bson.M{"_id": oid, key: bson.M{"$gt": 1}},
		bson.M{"$inc": bson.M{key: -1}, "$set": bson.M{"updatedAt": now}})
	if err != nil {
		return nil, fmt.Errorf("decrement cart item: %w", err)
	}

	if res.MatchedCount == 0 {
		res, err = m.users().UpdateOne(ctx,
			bson.M{"_id": oid, key: bson.M{"$exists": true}},
			bson.M{"$unset": bson.M{key: ""}, "$set": bson.M{"updatedAt": now}})
		if err != nil {
			return nil, fmt.Errorf("remove cart item: %w", err)
		}
	}

	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrCartItemNotFound
	}
	return user.CartData, nil
}
