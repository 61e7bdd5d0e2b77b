package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/yuxzhang97/storefront/internal/mykafka"
	"github.com/yuxzhang97/storefront/internal/service/order"
)

type OrderHandler struct {
	Orders   *order.Service
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// CreateOrder snapshots caller-supplied items. It deliberately leaves the
// cart alone, checkout from the cart goes through CartHandler.Checkout.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	var req struct {
		Items []order.ItemInput `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	o, err := h.Orders.Add(c.Request().Context(), userID, req.Items)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": o.ID,
	})
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	userID, err := userIDFrom(c)
	if err != nil {
		return err
	}

	orders, err := h.Orders.ByUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}
