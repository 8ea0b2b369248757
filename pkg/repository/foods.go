package repository

import (
	"context"
	"fmt"

	"github.com/example/foodorder/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoRepository) ListFoods(ctx context.Context) ([]models.Food, error) {
	collection := m.database.Collection(foodsCollection)

	cursor, err := collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	defer cursor.Close(ctx)

	foods := make([]models.Food, 0)
	if err := cursor.All(ctx, &foods); err != nil {
		return nil, fmt.Errorf("decode foods: %w", err)
	}
	return foods, nil
}

func (m *MongoRepository) CreateFood(ctx context.Context, food *models.Food) error {
	if food.ID.IsZero() {
		food.ID = primitive.NewObjectID()
	}
	if _, err := m.database.Collection(foodsCollection).InsertOne(ctx, food); err != nil {
		return fmt.Errorf("insert food: %w", err)
	}
	return nil
}

func (m *MongoRepository) DeleteFood(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrFoodNotFound
	}

	res, err := m.database.Collection(foodsCollection).DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrFoodNotFound
	}
	return nil
}
