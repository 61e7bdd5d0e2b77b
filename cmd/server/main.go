package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/yuxzhang97/storefront/internal/config"
	"github.com/yuxzhang97/storefront/internal/es"
	"github.com/yuxzhang97/storefront/internal/googleauth"
	"github.com/yuxzhang97/storefront/internal/handlers"
	"github.com/yuxzhang97/storefront/internal/logging"
	"github.com/yuxzhang97/storefront/internal/mykafka"
	"github.com/yuxzhang97/storefront/internal/service/cart"
	"github.com/yuxzhang97/storefront/internal/service/catalog"
	"github.com/yuxzhang97/storefront/internal/service/identity"
	"github.com/yuxzhang97/storefront/internal/service/order"
	"github.com/yuxzhang97/storefront/internal/service/token"
	httpserver "github.com/yuxzhang97/storefront/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)
	refreshSecret := []byte(configuration.REFRESH_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		topics := []string{"user_events", "cart_events", "product_events", "order_events"}
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS}, topics)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("KAFKA_ADDRESS not set, event publishing disabled")
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	catalogSvc := catalog.NewService(db)
	cartSvc := cart.NewService(db, catalogSvc)
	orderSvc := order.NewService(db, catalogSvc)
	tokenSvc := &token.Service{DB: db, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
	google := googleauth.NewClient(configuration.GOOGLE_USERINFO_URL, configuration.GOOGLE_TIMEOUT)
	identitySvc := identity.NewService(db, google, tokenSvc)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		AuthHandler:    &handlers.AuthHandler{Identity: identitySvc, Tokens: tokenSvc, Producer: prod},
		ProductHandler: &handlers.ProductHandler{Catalog: catalogSvc, Producer: prod, ES: esClient, Index: configuration.ES_INDEX},
		CartHandler:    &handlers.CartHandler{Cart: cartSvc, Orders: orderSvc, Producer: prod},
		OrderHandler:   &handlers.OrderHandler{Orders: orderSvc, Producer: prod},
		SearchHandler:  handlers.NewSearchHandler(esClient, configuration.ES_INDEX),
		TokenService:   tokenSvc,
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "err", err)
		}
	} else {
		logger.Error("db handle error", "err", err)
	}

	if err := prod.Close(); err != nil {
		logger.Error("kafka close error", "err", err)
	}

	logger.Info("shutdown complete")
}
