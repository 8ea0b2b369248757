package service

import (
	"context"
	"strings"

	"github.com/example/foodorder/pkg/models"
	"go.uber.org/zap"
)

type FoodInput struct {
	Name        string
	Description string
	Price       float64
	Category    string
	Image       string
}

type FoodService struct {
	store  FoodStore
	roles  AdminChecker
	logger *zap.Logger
}

func NewFoodService(store FoodStore, roles AdminChecker, logger *zap.Logger) *FoodService {
	return &FoodService{store: store, roles: roles, logger: logger.Named("foods")}
}

func (s *FoodService) ListFoods(ctx context.Context) ([]models.Food, error) {
	return s.store.ListFoods(ctx)
}

func (s *FoodService) AddFood(ctx context.Context, callerID string, in FoodInput) (*models.Food, error) {
	if !s.roles.IsAdmin(ctx, callerID) {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, validationError("name is required")
	}
	if in.Price < 0 {
		return nil, validationError("price must not be negative")
	}

	food := &models.Food{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Image:       in.Image,
	}
	if err := s.store.CreateFood(ctx, food); err != nil {
		s.logger.Error("Failed to add food", zap.String("name", food.Name), zap.Error(err))
		return nil, translate(err)
	}
	s.logger.Info("Food added", zap.String("food_id", food.ID.Hex()), zap.String("name", food.Name))
	return food, nil
}

func (s *FoodService) RemoveFood(ctx context.Context, callerID, id string) error {
	if !s.roles.IsAdmin(ctx, callerID) {
		return ErrForbidden
	}
	if err := s.store.DeleteFood(ctx, id); err != nil {
		return translate(err)
	}
	s.logger.Info("Food removed", zap.String("food_id", id))
	return nil
}
