package catalog

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yuxzhang97/storefront/internal/errs"
	"github.com/yuxzhang97/storefront/internal/models"
)

// Service is the read side of the product catalog. The cart and order
// services use it to validate product references.
type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

func (s *Service) All(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	var items []models.Product
	if err := s.DB.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return items, total, nil
}

func (s *Service) ByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.DB.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %d", errs.ErrNotFound, id)
		}
		return nil, fmt.Errorf("load product %d: %w", id, err)
	}
	return &product, nil
}

// Exists reports errs.ErrNotFound when the product id does not resolve.
func (s *Service) Exists(ctx context.Context, id uint) error {
	var count int64
	if err := s.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check product %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: product %d", errs.ErrNotFound, id)
	}
	return nil
}
