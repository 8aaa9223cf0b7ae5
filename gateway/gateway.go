// Package gateway wires the HTTP surface: routing, request parsing and
// validation, authorization middleware, and the error-to-status mapping.
// Business rules live in pkg/service; nothing here touches the database.
package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/service"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type Server struct {
	config  *config.Config
	logger  *zap.Logger
	router  *gin.Engine
	auth    *auth.Service
	users   *service.UserService
	catalog *service.CatalogService
	orders  *service.OrderService
}

func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	authSvc *auth.Service,
	users *service.UserService,
	catalog *service.CatalogService,
	orders *service.OrderService,
) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	s := &Server{
		config:  cfg,
		logger:  logger,
		router:  router,
		auth:    authSvc,
		users:   users,
		catalog: catalog,
		orders:  orders,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.router.Group("/api/v1")
	{
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/signup", s.signUp)
			authRoutes.POST("/login", s.login)
			authRoutes.POST("/logout", s.requireAuth(), s.logout)
			authRoutes.GET("/profile", s.requireAuth(), s.profile)
		}

		users := v1.Group("/users", s.requireAuth())
		{
			users.GET("", s.listUsers)
			users.GET("/:id", s.getUser)
			users.PATCH("/:id", s.updateUser)
			users.DELETE("/:id", s.requireAdmin(), s.deleteUser)
			users.PATCH("/:id/promote", s.requireAdmin(), s.promoteUser)
			users.GET("/:id/cart", s.getCart)
			users.POST("/cart/:id", s.addToCart)
			users.DELETE("/:id/cart/:productId", s.removeFromCart)
		}

		products := v1.Group("/products")
		{
			products.GET("", s.listProducts)
			products.GET("/:id", s.getProduct)
			products.POST("", s.requireAuth(), s.requireAdmin(), s.createProduct)
			products.PATCH("/:id", s.requireAuth(), s.requireAdmin(), s.updateProduct)
			products.DELETE("/:id", s.requireAuth(), s.requireAdmin(), s.deleteProduct)
		}

		categories := v1.Group("/categories")
		{
			categories.GET("", s.listCategories)
			categories.GET("/:id", s.getCategory)
			categories.POST("", s.requireAuth(), s.requireAdmin(), s.createCategory)
			categories.PATCH("/:id", s.requireAuth(), s.requireAdmin(), s.updateCategory)
			categories.DELETE("/:id", s.requireAuth(), s.requireAdmin(), s.deleteCategory)
		}

		orders := v1.Group("/orders", s.requireAuth())
		{
			orders.POST("", s.createOrder)
			orders.GET("", s.listOrders)
			orders.GET("/:id", s.getOrder)
			orders.PATCH("/:id", s.updateOrderStatus)
			orders.PATCH("/status/:id", s.updateOrderStatus)
			orders.DELETE("/:id", s.requireAdmin(), s.deleteOrder)
			orders.POST("/checkout/:id", s.checkout)
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// writeError maps the service error taxonomy onto HTTP statuses. Internal
// details are logged, never returned to the client.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := err.Error()

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindEmptyCart:
		status = http.StatusBadRequest
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindInsufficientStock:
		status = http.StatusUnprocessableEntity
	default:
		s.logger.Error("Internal error",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		message = "internal error"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
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
		)
	}
}
