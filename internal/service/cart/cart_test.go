package cart

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yuxzhang97/storefront/internal/errs"
	"github.com/yuxzhang97/storefront/internal/models"
	"github.com/yuxzhang97/storefront/internal/service/catalog"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Product{}, &models.CartItem{}))
	return db
}

func newTestService(t *testing.T) (*Service, *gorm.DB, models.User, models.Product) {
	t.Helper()
	db := newTestDB(t)

	user := models.User{Email: "shopper@example.com", FirstName: "Test", LastName: "Shopper", Role: "user"}
	require.NoError(t, db.Create(&user).Error)

	product := models.Product{Name: "Keyboard", Description: "mechanical", Price: 59.9, Category: "peripherals"}
	require.NoError(t, db.Create(&product).Error)

	cat := catalog.NewService(db)
	return NewService(db, cat), db, user, product
}

func cartLines(t *testing.T, db *gorm.DB, userID uint) []models.CartItem {
	t.Helper()
	var items []models.CartItem
	require.NoError(t, db.Where("user_id = ?", userID).Order("id ASC").Find(&items).Error)
	return items
}

func TestAddTwiceYieldsSingleLineQuantityTwo(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	item, err := svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), item.Quantity)

	item, err = svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, uint(2), item.Quantity)

	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, product.ID, lines[0].ProductID)
	require.Equal(t, uint(2), lines[0].Quantity)
}

func TestAddUnknownUserOrProduct(t *testing.T) {
	svc, _, user, product := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID+100, product.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.Add(ctx, user.ID, product.ID+100)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMinusAtFloorFailsAndLeavesCartUnchanged(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)

	_, err = svc.Minus(ctx, user.ID, product.ID)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, uint(1), lines[0].Quantity)
}

func TestMinusMissingLine(t *testing.T) {
	svc, _, user, product := newTestService(t)

	_, err := svc.Minus(context.Background(), user.ID, product.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRemoveAbsentLineIsNoop(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, user.ID, product.ID))

	other := models.Product{Name: "Mouse", Description: "wireless", Price: 25}
	require.NoError(t, db.Create(&other).Error)
	_, err := svc.Add(ctx, user.ID, other.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, user.ID, product.ID))
	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, other.ID, lines[0].ProductID)
}

func TestSetQuantityLastWriteWins(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	item, err := svc.SetQuantity(ctx, user.ID, product.ID, 5)
	require.NoError(t, err)
	require.Equal(t, uint(5), item.Quantity)

	item, err = svc.SetQuantity(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint(2), item.Quantity)

	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, uint(2), lines[0].Quantity)
}

func TestSetQuantityRejectsBelowOne(t *testing.T) {
	svc, _, user, product := newTestService(t)

	_, err := svc.SetQuantity(context.Background(), user.ID, product.ID, 0)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestClearEmptiesCart(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetQuantity(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, user.ID))
	require.Empty(t, cartLines(t, db, user.ID))

	// Clearing an already empty cart is fine.
	require.NoError(t, svc.Clear(ctx, user.ID))
}

func TestGetResolvesProductDetails(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	other := models.Product{Name: "Monitor", Description: "27 inch", Price: 219, Category: "displays"}
	require.NoError(t, db.Create(&other).Error)

	_, err := svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)
	_, err = svc.SetQuantity(ctx, user.ID, other.ID, 2)
	require.NoError(t, err)

	lines, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "Keyboard", lines[0].Product.Name)
	require.Equal(t, uint(1), lines[0].Quantity)
	require.Equal(t, "Monitor", lines[1].Product.Name)
	require.Equal(t, uint(2), lines[1].Quantity)
}

func TestGetUnknownUser(t *testing.T) {
	svc, _, user, _ := newTestService(t)

	_, err := svc.Get(context.Background(), user.ID+100)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAddMinusScenario(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	require.Empty(t, cartLines(t, db, user.ID))

	_, err := svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), cartLines(t, db, user.ID)[0].Quantity)

	_, err = svc.Add(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, uint(2), cartLines(t, db, user.ID)[0].Quantity)

	item, err := svc.Minus(ctx, user.ID, product.ID)
	require.NoError(t, err)
	require.Equal(t, uint(1), item.Quantity)

	_, err = svc.Minus(ctx, user.ID, product.ID)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, uint(1), lines[0].Quantity)
}

func TestConcurrentAddLosesNoUpdates(t *testing.T) {
	svc, db, user, product := newTestService(t)
	ctx := context.Background()

	const n = 25
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := svc.Add(ctx, user.ID, product.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	lines := cartLines(t, db, user.ID)
	require.Len(t, lines, 1)
	require.Equal(t, uint(n), lines[0].Quantity)
}
