package web

import (
	"net/http"
	"time"

	"notesync/auth"
	"notesync/web/api"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// CorsMiddleware handles CORS headers for cross-origin requests
func CorsMiddleware(c rweb.Context) error {
	c.Response().SetHeader("Access-Control-Allow-Origin", "*")
	c.Response().SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Response().SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")

	// Handle preflight OPTIONS requests
	if c.Request().Method() == "OPTIONS" {
		c.SetStatus(http.StatusOK)
		return nil
	}

	return c.Next()
}

// JWTAuthMiddleware validates a bearer token if one is present and records
// its subject in the context. It never blocks: handlers decide whether a
// subject is required for the user in the path.
func JWTAuthMiddleware(c rweb.Context) error {
	token := auth.BearerToken(c.Request().Header("Authorization"))
	if token == "" {
		c.Set(api.CtxAuthenticated, false)
		return c.Next()
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		// Don't log every invalid token attempt
		c.Set(api.CtxAuthenticated, false)
		return c.Next()
	}

	c.Set(api.CtxSubject, claims.Subject)
	c.Set(api.CtxAuthenticated, true)
	return c.Next()
}

// SecurityHeadersMiddleware adds security headers to responses
func SecurityHeadersMiddleware(c rweb.Context) error {
	c.Response().SetHeader("X-Content-Type-Options", "nosniff")
	c.Response().SetHeader("X-Frame-Options", "DENY")
	c.Response().SetHeader("Referrer-Policy", "no-referrer")
	c.Response().SetHeader("Content-Security-Policy", "default-src 'none'")
	return c.Next()
}

// LoggingMiddleware logs every request with its duration
func LoggingMiddleware(c rweb.Context) error {
	start := time.Now()

	err := c.Next()

	logger.Debug("Request completed",
		"method", c.Request().Method(),
		"path", c.Request().Path(),
		"duration", time.Since(start),
		"error", err,
	)
	return err
}
