package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/cartling/go-shop-api/internal/config"
	"github.com/cartling/go-shop-api/internal/handler"
	"github.com/cartling/go-shop-api/internal/middleware"
	"github.com/cartling/go-shop-api/internal/repository"
	"github.com/cartling/go-shop-api/internal/service"
	"github.com/cartling/go-shop-api/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	paymentRepo := repository.NewPaymentRepository(dbPool)
	notificationRepo := repository.NewNotificationRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, redisClient, cfg.JWT.Secret, cfg.JWT.Expiration)
	categorySvc := service.NewCategoryService(categoryRepo)
	productSvc := service.NewProductService(productRepo, categoryRepo, redisClient, cfg.Cache.ProductListTTL)
	cartSvc := service.NewCartService(cartRepo, productRepo)
	orderSvc := service.NewOrderService(orderRepo, cartRepo, productRepo, amqpCh)
	paymentSvc := service.NewPaymentService(paymentRepo, orderRepo, service.RandomGateway{})

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	categoryH := handler.NewCategoryHandler(categorySvc)
	productH := handler.NewProductHandler(productSvc)
	cartH := handler.NewCartHandler(cartSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	paymentH := handler.NewPaymentHandler(paymentSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Worker
	notificationWorker := worker.NewNotificationWorker(
		amqpCh, orderRepo, userRepo, notificationRepo, redisClient, &worker.LogNotifier{Log: log}, log,
	)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	authMW := middleware.AuthMiddleware(cfg.JWT.Secret, authSvc)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.POST("/logout", authMW, authH.Logout)
		auth.GET("/me", authMW, authH.Me)

		categories := v1.Group("/categories", authMW)
		categories.GET("", categoryH.List)
		categories.GET("/:id", categoryH.GetByID)

		categoriesAdmin := categories.Group("", middleware.AdminOnly())
		categoriesAdmin.POST("", categoryH.Create)
		categoriesAdmin.PUT("/:id", categoryH.Update)
		categoriesAdmin.DELETE("/:id", categoryH.Delete)

		products := v1.Group("/products", authMW)
		products.GET("", productH.List)
		products.GET("/:id", productH.GetByID)

		productsAdmin := products.Group("", middleware.AdminOnly())
		productsAdmin.POST("", productH.Create)
		productsAdmin.PUT("/:id", productH.Update)
		productsAdmin.DELETE("/:id", productH.Delete)

		cart := v1.Group("/cart", authMW, middleware.CustomerOnly())
		cart.GET("", cartH.GetCart)
		cart.POST("", cartH.AddItem)
		cart.PUT("/:id", cartH.UpdateItem)
		cart.DELETE("/:id", cartH.DeleteItem)

		orders := v1.Group("/orders", authMW)
		orders.POST("", middleware.CustomerOnly(), middleware.CheckStock(cartRepo), orderH.PlaceOrder)
		orders.GET("", middleware.CustomerOnly(), orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)
		orders.PUT("/:id/status", middleware.AdminOnly(), orderH.UpdateStatus)
		orders.POST("/:id/payment", middleware.CustomerOnly(), paymentH.CreatePayment)

		payments := v1.Group("/payments", authMW, middleware.CustomerOnly())
		payments.GET("/:id", paymentH.GetPayment)
	}

	if err := notificationWorker.Start(ctx); err != nil {
		log.Error("start notification worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	notificationWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
