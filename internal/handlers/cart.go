package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuxzhang97/storefront/internal/mykafka"
	"github.com/yuxzhang97/storefront/internal/service/cart"
	"github.com/yuxzhang97/storefront/internal/service/order"
)

type CartHandler struct {
	Cart     *cart.Service
	Orders   *order.Service
	Producer *mykafka.Producer
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func productIDParam(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("productID"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	lines, err := h.Cart.Get(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, lines)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item, err := h.Cart.Add(c.Request().Context(), userID, req.ProductID)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) UpdateCartItem(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	item, err := h.Cart.SetQuantity(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_updated",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) MinusFromCart(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	item, err := h.Cart.Minus(c.Request().Context(), userID, productID)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_decremented",
		"userID":    userID,
		"productID": productID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveCartItem(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	if err := h.Cart.Remove(c.Request().Context(), userID, productID); err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	if err := h.Cart.Clear(c.Request().Context(), userID); err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return c.NoContent(http.StatusNoContent)
}

// Checkout is the explicit two-step orchestration: snapshot the cart's
// current lines into an order, then clear the cart. Order creation itself
// never touches the cart.
func (h *CartHandler) Checkout(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	lines, err := h.Cart.Get(ctx, userID)
	if err != nil {
		return httpError(err)
	}
	if len(lines) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no items in cart")
	}

	items := make([]order.ItemInput, 0, len(lines))
	for _, l := range lines {
		items = append(items, order.ItemInput{ProductID: l.Product.ID, Quantity: l.Quantity})
	}

	o, err := h.Orders.Add(ctx, userID, items)
	if err != nil {
		return httpError(err)
	}
	if err := h.Cart.Clear(ctx, userID); err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": o.ID,
	})
	return c.JSON(http.StatusCreated, o)
}
