package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)                      // Health check endpoint
	v1.GET("/donations/:owner", h.Donations)         // Reconciled donation feed
	v1.GET("/transactions/:address", h.Transactions) // Classified ledger movements
	v1.GET("/balances/:address", h.BalancesList)     // Aggregated SOL + token holdings
	v1.GET("/tipjar/:owner", h.TipJar)               // On-chain tip jar state

	// AI endpoints with rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/ask", h.AIAsk) // Natural language to SQL endpoint

	// Token registry CRUD endpoints
	tokenGroup := v1.Group("/tokens")
	tokenGroup.GET("", h.TokensList)            // List all registry entries
	tokenGroup.POST("", h.TokensUpsert)         // Create new entry
	tokenGroup.GET("/:mint", h.TokensGet)       // Get specific entry
	tokenGroup.PUT("/:mint", h.TokensUpdate)    // Update existing entry
	tokenGroup.DELETE("/:mint", h.TokensDelete) // Delete entry

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
