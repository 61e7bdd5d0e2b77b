package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yuxzhang97/storefront/internal/errs"
	"github.com/yuxzhang97/storefront/internal/models"
	"github.com/yuxzhang97/storefront/internal/service/catalog"
)

// ItemInput is one (product, quantity) pair to snapshot into an order.
type ItemInput struct {
	ProductID uint `json:"product_id"`
	Quantity  uint `json:"quantity"`
}

// Service converts line items into immutable orders. It never reads or
// touches the live cart: callers wanting checkout semantics pass the cart's
// current contents and clear the cart themselves.
type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Service
}

func NewService(db *gorm.DB, cat *catalog.Service) *Service {
	return &Service{DB: db, Catalog: cat}
}

// Add snapshots the given items into a new order with a server-assigned
// creation time. Every referenced product must exist.
func (s *Service) Add(ctx context.Context, userID uint, items []ItemInput) (*models.Order, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", errs.ErrInvalidArgument)
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %d must be at least 1", errs.ErrInvalidArgument, it.ProductID)
		}
		if err := s.Catalog.Exists(ctx, it.ProductID); err != nil {
			return nil, err
		}
	}

	order := models.Order{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		snapshots := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			snapshots = append(snapshots, models.OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}
		if err := tx.Create(&snapshots).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		order.Items = snapshots
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return &order, nil
}

// ByID returns one order with its item snapshots.
func (s *Service) ByID(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return &o, nil
}

// ByUser returns the user's orders, newest first.
func (s *Service) ByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}
	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *Service) userExists(ctx context.Context, userID uint) error {
	var count int64
	if err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check user %d: %w", userID, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: user %d", errs.ErrNotFound, userID)
	}
	return nil
}
