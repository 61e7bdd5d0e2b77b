package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/yuxzhang97/storefront/internal/handlers"
	"github.com/yuxzhang97/storefront/internal/service/token"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CartHandler    *handlers.CartHandler
	OrderHandler   *handlers.OrderHandler
	SearchHandler  *handlers.SearchHandler
	TokenService   *token.Service
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)
	v1.POST("/auth/google", d.AuthHandler.GoogleSignIn)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	admin := v1.Group("/admin", d.TokenService.AutoRefreshMiddlewareAdmin)
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)

	auth := v1.Group("", d.TokenService.AutoRefreshMiddleware)
	auth.GET("/users/me", d.AuthHandler.Me)

	auth.GET("/cart", d.CartHandler.GetCart)
	auth.POST("/cart/items", d.CartHandler.AddToCart)
	auth.PUT("/cart/items", d.CartHandler.UpdateCartItem)
	auth.POST("/cart/items/:productID/minus", d.CartHandler.MinusFromCart)
	auth.DELETE("/cart/items/:productID", d.CartHandler.RemoveCartItem)
	auth.DELETE("/cart", d.CartHandler.ClearCart)
	auth.POST("/cart/order", d.CartHandler.Checkout)

	auth.POST("/orders", d.OrderHandler.CreateOrder)
	auth.GET("/orders", d.OrderHandler.GetOrders)
}
