package server

import (
	"context"
	"log/slog"
	"net/http"

	"marketplace-orders/internal/handler"
	appmiddleware "marketplace-orders/internal/middleware"
	"marketplace-orders/internal/repository"
	"marketplace-orders/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

type Deps struct {
	DB             *gorm.DB
	UnitOfWork     repository.UnitOfWork
	OrderService   service.OrderService
	Verifier       service.PaymentVerifier
	WebhookService service.WebhookService
	JWTSecret      string
	Log            *slog.Logger
}

type Server struct {
	echo           *echo.Echo
	db             *gorm.DB
	uow            repository.UnitOfWork
	jwtSecret      string
	orderHandler   *handler.OrderHandler
	paymentHandler *handler.PaymentHandler
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.ErrorHandler(deps.Log)

	e.Use(requestLogger(deps.Log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:           e,
		db:             deps.DB,
		uow:            deps.UnitOfWork,
		jwtSecret:      deps.JWTSecret,
		orderHandler:   handler.NewOrderHandler(deps.OrderService),
		paymentHandler: handler.NewPaymentHandler(deps.Verifier, deps.WebhookService),
	}

	s.setupRoutes()
	return s
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("err", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	})
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.health)

	// -------- orders --------
	orders := api.Group("/orders", appmiddleware.AuthMiddleware(s.jwtSecret))
	orders.POST("", s.orderHandler.CreateOrder)
	orders.GET("", s.orderHandler.ListOrders)
	orders.GET("/:id", s.orderHandler.GetOrder)
	orders.PATCH("/:id/status", s.orderHandler.UpdateStatus, appmiddleware.RequireRole("admin", "seller"))
	orders.POST("/:id/cancel", s.orderHandler.CancelOrder)

	// -------- payments --------
	payments := api.Group("/payments")
	payments.POST("/create-order", s.paymentHandler.CreatePaymentOrder, appmiddleware.AuthMiddleware(s.jwtSecret))
	payments.POST("/verify", s.paymentHandler.VerifyPayment, appmiddleware.AuthMiddleware(s.jwtSecret))

	// -------- gateway callbacks, authenticated by signature --------
	payments.POST("/webhook", s.paymentHandler.Webhook)
}

func (s *Server) health(c echo.Context) error {
	status := http.StatusOK
	body := map[string]string{
		"status":     "ok",
		"database":   "ok",
		"unitOfWork": s.uow.Mode(),
	}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request().Context())
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = err.Error()
	}

	return c.JSON(status, body)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
