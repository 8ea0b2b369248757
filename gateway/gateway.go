package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/example/foodorder/pkg/events"
	"github.com/example/foodorder/pkg/models"
	"github.com/example/foodorder/pkg/payment"
	"github.com/example/foodorder/pkg/repository"
	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type OrderAPI interface {
	PlaceOrder(ctx context.Context, in service.PlaceOrderInput) (*service.PlaceOrderResult, error)
	ConfirmPayment(ctx context.Context, orderID string, success bool, source service.ConfirmSource) (*models.Order, error)
	HandleWebhook(ctx context.Context, evt *payment.WebhookEvent) (*models.Order, error)
	UpdateOrder(ctx context.Context, callerID, orderID string, in service.UpdateOrderInput) (*models.Order, error)
	ListOrders(ctx context.Context, callerID string, q service.ListOrdersQuery) (*service.OrderPage, error)
	ListMyOrders(ctx context.Context, callerID string) ([]models.Order, error)
	GetOrder(ctx context.Context, callerID, orderID string) (*models.Order, error)
	OrderHistory(ctx context.Context, callerID, orderID string, limit int64) ([]*repository.AuditLog, error)
}

type CartAPI interface {
	GetCart(ctx context.Context, userID string) (map[string]int, error)
	AddToCart(ctx context.Context, userID, itemID string) (map[string]int, error)
	RemoveFromCart(ctx context.Context, userID, itemID string) (map[string]int, error)
	ClearCart(ctx context.Context, userID string) error
}

type FoodAPI interface {
	ListFoods(ctx context.Context) ([]models.Food, error)
	AddFood(ctx context.Context, callerID string, in service.FoodInput) (*models.Food, error)
	RemoveFood(ctx context.Context, callerID, id string) error
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type WebhookParser interface {
	Parse(payload []byte, signature string) (*payment.WebhookEvent, error)
}

type EventSource interface {
	Subscribe(sink events.Sink) *events.Subscription
	Unsubscribe(s *events.Subscription)
}

type Deps struct {
	Orders   OrderAPI
	Carts    CartAPI
	Foods    FoodAPI
	Tokens   TokenVerifier
	Webhooks WebhookParser
	Events   EventSource
}

type Gateway struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	deps   Deps
}

func NewGateway(cfg *config.Config, logger *zap.Logger, deps Deps) *Gateway {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config: cfg,
		logger: logger,
		router: router,
		deps:   deps,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := g.authMiddleware()

	v1 := g.router.Group("/api/v1")
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", auth, g.placeOrder)
			orders.GET("", auth, g.listOrders)
			orders.GET("/verify", g.verifyOrder)
			orders.POST("/verify", g.verifyOrder)
			orders.POST("/webhook", g.webhook)
			orders.GET("/mine", auth, g.myOrders)
			orders.GET("/stream", auth, g.streamOrders)
			orders.GET("/:id", auth, g.getOrder)
			orders.PATCH("/:id", auth, g.updateOrder)
			orders.GET("/:id/history", auth, g.orderHistory)
		}

		cart := v1.Group("/cart", auth)
		{
			cart.GET("", g.getCart)
			cart.POST("/add", g.addToCart)
			cart.POST("/remove", g.removeFromCart)
			cart.POST("/clear", g.clearCart)
		}

		foods := v1.Group("/foods")
		{
			foods.GET("", g.listFoods)
			foods.POST("", auth, g.addFood)
			foods.DELETE("/:id", auth, g.removeFood)
		}
	}

	if g.config.Gateway.Swagger {
		g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Server returns the HTTP server for the gateway. It has no WriteTimeout;
// order streams stay open for the life of the client.
func (g *Gateway) Server() *http.Server {
	return &http.Server{
		Addr:              g.config.Gateway.Addr(),
		Handler:           g.router,
		ReadHeaderTimeout: g.config.Gateway.ReadHeaderTimeout,
	}
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ctxRequestID)),
		)
	}
}
