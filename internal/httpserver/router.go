package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopcore/internal/domain"
	"shopcore/internal/service/cart"
	"shopcore/internal/service/order"
	"shopcore/internal/service/payment"
)

type tokenVerifier interface {
	Verify(raw string) (string, error)
}

type orderService interface {
	Create(ctx context.Context, in order.CreateInput) (*domain.Order, error)
	Get(ctx context.Context, callerID, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, callerID, id string, to domain.OrderStatus) (*domain.Order, error)
	ListMine(ctx context.Context, userID string, skip, limit int) ([]domain.Order, error)
	ListForShop(ctx context.Context, callerID, shopID string, status *domain.OrderStatus, skip, limit int) ([]domain.Order, error)
}

type paymentService interface {
	Initiate(ctx context.Context, in payment.InitiateInput) (*payment.PaymentResult, error)
	Get(ctx context.Context, callerID, paymentID string) (*domain.Payment, error)
	ListForOrder(ctx context.Context, callerID, orderID string) ([]domain.Payment, error)
	Refund(ctx context.Context, in payment.RefundInput) (*payment.RefundResult, error)
	UpdateStatus(ctx context.Context, callerID, paymentID string, to domain.PaymentStatus, details json.RawMessage) (*domain.Payment, error)
}

type cartService interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Add(ctx context.Context, userID string, in cart.AddInput) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (*domain.Cart, error)
	Remove(ctx context.Context, userID, lineID string) error
	Clear(ctx context.Context, userID string) error
}

type catalogue interface {
	ListAvailable(ctx context.Context, shopID string) ([]domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
}

type webhookQueue interface {
	Enqueue(ctx context.Context, provider domain.PaymentProvider, body []byte, headers http.Header) (string, error)
}

// Deps groups the services the router exposes.
type Deps struct {
	Orders      orderService
	Payments    paymentService
	Cart        cartService
	Products    catalogue
	Webhooks    webhookQueue
	Tokens      tokenVerifier
	CORSOrigins []string
}

func (d Deps) validate() error {
	switch {
	case d.Orders == nil, d.Payments == nil, d.Cart == nil, d.Products == nil:
		return errors.New("httpserver: services are required")
	case d.Webhooks == nil:
		return errors.New("httpserver: webhook queue is required")
	case d.Tokens == nil:
		return errors.New("httpserver: token verifier is required")
	}
	return nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, db Pinger, deps Deps) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestID(), requestLogger(logger), gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", headerRequestID},
			ExposeHeaders:    []string{headerRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(logger, dbCheck(db)))

	h := &handlers{deps: deps, logger: logger}
	api := router.Group("/api/v1")

	// Provider callbacks carry their own signatures.
	api.POST("/payments/webhook/:provider", h.paymentWebhook)
	api.GET("/shops/:id/products", h.listProducts)
	api.GET("/products/:id", h.getProduct)

	authed := api.Group("", authMiddleware(deps.Tokens))

	authed.POST("/orders", h.createOrder)
	authed.GET("/orders/my", h.listMyOrders)
	authed.GET("/orders/:id", h.getOrder)
	authed.PUT("/orders/:id/status", h.updateOrderStatus)
	authed.GET("/orders/:id/payments", h.listOrderPayments)
	authed.GET("/shops/:id/orders", h.listShopOrders)

	authed.POST("/payments/create/:order_id", h.initiatePayment)
	authed.GET("/payments/:id", h.getPayment)
	authed.PUT("/payments/:id/status", h.updatePaymentStatus)
	authed.POST("/payments/:id/refund", h.refundPayment)

	authed.GET("/cart", h.getCart)
	authed.POST("/cart/items", h.addCartItem)
	authed.PUT("/cart/items/:id", h.updateCartItem)
	authed.DELETE("/cart/items/:id", h.removeCartItem)
	authed.DELETE("/cart", h.clearCart)

	return router, nil
}
