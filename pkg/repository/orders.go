package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/foodorder/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoRepository) orders() *mongo.Collection {
	return m.database.Collection(ordersCollection)
}

func (m *MongoRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	if _, err := m.orders().InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	var order models.Order
	err = m.orders().FindOne(ctx, bson.M{"_id": oid}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// PatchOrder applies patch in one update-pipeline round trip. A conditional
// status is resolved server-side with $cond against the stored status, so a
// concurrent patch can never observe a half-applied document.
func (m *MongoRepository) PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (*models.Order, error) {
	if patch.Empty() {
		return m.GetOrder(ctx, id)
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	set := bson.D{}
	if patch.Payment != nil {
		set = append(set, bson.E{Key: "payment", Value: *patch.Payment})
	}
	if patch.Status != nil {
		status := bson.D{{Key: "$literal", Value: string(*patch.Status)}}
		if patch.StatusIf != nil {
			set = append(set, bson.E{Key: "status", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$status", bson.D{{Key: "$literal", Value: string(*patch.StatusIf)}}}}},
				status,
				"$status",
			}}}})
		} else {
			set = append(set, bson.E{Key: "status", Value: status})
		}
	}

	update := mongo.Pipeline{{{Key: "$set", Value: set}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err = m.orders().FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("patch order: %w", err)
	}
	return &order, nil
}

// ListOrders returns one page of orders, newest first, and the total number
// of orders matching the filter.
func (m *MongoRepository) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := m.orders().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(filter.Skip)
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	orders, err := m.findOrders(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (m *MongoRepository) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}})
	return m.findOrders(ctx, bson.M{"userId": userID}, opts)
}

func (m *MongoRepository) findOrders(ctx context.Context, query bson.M, opts *options.FindOptions) ([]models.Order, error) {
	cursor, err := m.orders().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}
