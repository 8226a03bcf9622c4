package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/thanhnp/utxo-graph/internal/api/handlers"
	"github.com/thanhnp/utxo-graph/internal/api/middleware"
	"github.com/thanhnp/utxo-graph/internal/ledger"
)

// HealthChecker reports whether the backing store can serve requests
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Router wraps the Gin router with handlers
type Router struct {
	engine         *gin.Engine
	log            zerolog.Logger
	health         HealthChecker
	txHandler      *handlers.TxHandler
	addressHandler *handlers.AddressHandler
	spendHandler   *handlers.SpendHandler
}

// NewRouter creates a new Router with all handlers
func NewRouter(l *ledger.Ledger, health HealthChecker, log zerolog.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)

	r := &Router{
		engine:         gin.New(),
		log:            log.With().Str("component", "api").Logger(),
		health:         health,
		txHandler:      handlers.NewTxHandler(l),
		addressHandler: handlers.NewAddressHandler(l),
		spendHandler:   handlers.NewSpendHandler(l),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// setupMiddleware configures middleware
func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery(r.log))
	r.engine.Use(middleware.Logger(r.log))
	r.engine.Use(middleware.CORS())
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	// Health check
	r.engine.GET("/health", func(c *gin.Context) {
		if err := r.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.engine.Group("/api/v1")
	{
		v1.POST("/coinbase", r.txHandler.CreateCoinbase)

		// Transaction routes
		v1.GET("/transactions/:hash", r.txHandler.Get)

		// Address routes
		addresses := v1.Group("/addresses/:address")
		addresses.Use(middleware.ValidateAddress())
		{
			addresses.GET("/balance", r.addressHandler.GetBalance)
			addresses.GET("/unspent", r.addressHandler.GetUnspent)
		}

		// Spend routes
		spends := v1.Group("/spends")
		{
			spends.POST("/prepare", r.spendHandler.Prepare)
			spends.POST("/submit", r.spendHandler.Submit)
		}
	}
}

// Engine returns the underlying Gin engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
