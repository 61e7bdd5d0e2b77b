package cart

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yuxzhang97/storefront/internal/errs"
	"github.com/yuxzhang97/storefront/internal/models"
	"github.com/yuxzhang97/storefront/internal/service/catalog"
)

// Line is one cart entry with its product details resolved.
type Line struct {
	Product  models.Product `json:"product"`
	Quantity uint           `json:"quantity"`
}

// Service owns the per-user cart state. Every mutation is a single atomic
// SQL expression keyed by (user_id, product_id), so concurrent requests for
// the same user cannot lose updates.
type Service struct {
	DB      *gorm.DB
	Catalog *catalog.Service
}

func NewService(db *gorm.DB, cat *catalog.Service) *Service {
	return &Service{DB: db, Catalog: cat}
}

var cartConflict = clause.OnConflict{
	Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
}

// Add increments the line for productID by one, inserting it with quantity 1
// when absent. Repeat calls keep growing the quantity.
func (s *Service) Add(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	if err := s.validateRefs(ctx, userID, productID); err != nil {
		return nil, err
	}

	upsert := cartConflict
	upsert.DoUpdates = clause.Assignments(map[string]interface{}{
		"quantity": gorm.Expr("cart_items.quantity + 1"),
	})

	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: 1}
	if err := s.DB.WithContext(ctx).Clauses(upsert).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	return s.line(ctx, userID, productID)
}

// SetQuantity sets the line quantity outright, creating the line when
// absent. Quantities below one are rejected, removal goes through Remove.
func (s *Service) SetQuantity(ctx context.Context, userID, productID, quantity uint) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1, got %d", errs.ErrInvalidArgument, quantity)
	}
	if err := s.validateRefs(ctx, userID, productID); err != nil {
		return nil, err
	}

	upsert := cartConflict
	upsert.DoUpdates = clause.Assignments(map[string]interface{}{"quantity": quantity})

	item := models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	if err := s.DB.WithContext(ctx).Clauses(upsert).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("set cart quantity: %w", err)
	}

	return s.line(ctx, userID, productID)
}

// Minus decrements an existing line by one. A line already at quantity 1 is
// left untouched and the call fails, deleting a line is Remove's job.
func (s *Service) Minus(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}

	res := s.DB.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("user_id = ? AND product_id = ? AND quantity > 1", userID, productID).
		UpdateColumn("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("decrement cart line: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return s.line(ctx, userID, productID)
	}

	// Nothing matched: either the line is absent or it sits at the floor.
	// The follow-up read is a separate statement, so a Remove landing in
	// between turns an at-floor line into NotFound. That outcome matches
	// the serialization Remove then Minus, so no transaction is needed.
	if _, err := s.line(ctx, userID, productID); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: cart line for product %d is at quantity 1, remove it instead", errs.ErrInvalidState, productID)
}

// Remove deletes the line for productID. An absent line is a no-op.
func (s *Service) Remove(ctx context.Context, userID, productID uint) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	return nil
}

// Clear empties the user's cart unconditionally.
func (s *Service) Clear(ctx context.Context, userID uint) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItem{}).Error; err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Get returns the cart with product details resolved, in insertion order.
func (s *Service) Get(ctx context.Context, userID uint) ([]Line, error) {
	if err := s.userExists(ctx, userID); err != nil {
		return nil, err
	}

	var items []models.CartItem
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	lines := make([]Line, 0, len(items))
	if len(items) == 0 {
		return lines, nil
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("resolve cart products: %w", err)
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			// Product removed from the catalog after it entered the cart.
			p = models.Product{ID: it.ProductID}
		}
		lines = append(lines, Line{Product: p, Quantity: it.Quantity})
	}
	return lines, nil
}

func (s *Service) validateRefs(ctx context.Context, userID, productID uint) error {
	if err := s.userExists(ctx, userID); err != nil {
		return err
	}
	return s.Catalog.Exists(ctx, productID)
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

func (s *Service) line(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: cart line for product %d", errs.ErrNotFound, productID)
		}
		return nil, fmt.Errorf("load cart line: %w", err)
	}
	return &item, nil
}
